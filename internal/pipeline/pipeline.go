// Package pipeline turns raw listing tables into model-ready frames and maps
// classifier output back to price-tier labels. All operations are pure
// functions of their input and the configuration captured by New.
package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"listing_price/internal/config"
	"listing_price/internal/domain"
	"listing_price/internal/frame"
)

// Column names the pipeline relies on.
const (
	ColBathroomsText = "bathrooms_text"
	ColBathrooms     = "bathrooms"
	ColPrice         = "price"
	ColCategory      = "category"
	ColAmenities     = "amenities"
	ColRoomType      = "room_type"
	ColNeighbourhood = "neighbourhood"
)

type Pipeline struct {
	columnsToUse    []string
	columnsToRename map[string]string
	targetRegex     *regexp.Regexp
	targetInt       bool
	minPrice        float64
	bins            []float64
	amenities       []string
	amenityColumns  map[string]string
	roomType        map[string]int
	neighbourhood   map[string]int
	roomTypeInv     map[int]string
	neighInv        map[int]string
	categoryNames   []string
}

// New copies everything it needs out of cfg.
func New(cfg config.PreprocessingSection) (*Pipeline, error) {
	re, err := regexp.Compile(cfg.TargetRegex)
	if err != nil {
		return nil, fmt.Errorf("target_regex: %w", err)
	}
	for i := 1; i < len(cfg.BinsCategories); i++ {
		if cfg.BinsCategories[i] <= cfg.BinsCategories[i-1] {
			return nil, fmt.Errorf("bins_categories must be strictly increasing")
		}
	}
	if len(cfg.BinsCategories) < 2 {
		return nil, fmt.Errorf("bins_categories needs at least two edges")
	}
	p := &Pipeline{
		columnsToUse:    append([]string(nil), cfg.ColumnsToUse...),
		columnsToRename: make(map[string]string, len(cfg.ColumnsToRename)),
		targetRegex:     re,
		targetInt:       cfg.TargetDtype == "int" || cfg.TargetDtype == "int64",
		minPrice:        cfg.MinPrice,
		bins:            append([]float64(nil), cfg.BinsCategories...),
		amenities:       append([]string(nil), cfg.AmenitiesToDrop...),
		amenityColumns:  make(map[string]string, len(cfg.AmenityColumns)),
		roomType:        make(map[string]int, len(cfg.CategoricalMapping.RoomType)),
		neighbourhood:   make(map[string]int, len(cfg.CategoricalMapping.Neighbourhood)),
		roomTypeInv:     make(map[int]string, len(cfg.CategoricalMapping.RoomType)),
		neighInv:        make(map[int]string, len(cfg.CategoricalMapping.Neighbourhood)),
		categoryNames:   append([]string(nil), cfg.CategoryNames...),
	}
	for k, v := range cfg.ColumnsToRename {
		p.columnsToRename[k] = v
	}
	for k, v := range cfg.AmenityColumns {
		p.amenityColumns[k] = v
	}
	for k, v := range cfg.CategoricalMapping.RoomType {
		p.roomType[k] = v
		p.roomTypeInv[v] = k
	}
	for k, v := range cfg.CategoricalMapping.Neighbourhood {
		p.neighbourhood[k] = v
		p.neighInv[v] = k
	}
	log.Info().
		Int("columns", len(p.columnsToUse)).
		Int("bins", len(p.bins)).
		Msg("preprocessing pipeline initialized")
	return p, nil
}

// Clean runs the offline cleaning stages in their fixed order. Column
// selection happens before row dropping, so only configured columns decide
// whether a row survives.
func (p *Pipeline) Clean(f frame.Frame, mapCategorical bool) (frame.Frame, error) {
	log.Info().Int("rows", f.Len()).Msg("starting data cleaning")
	var err error
	if f, err = p.DeriveNumericBathrooms(f); err != nil {
		return frame.Frame{}, err
	}
	if f, err = p.SelectColumns(f); err != nil {
		return frame.Frame{}, err
	}
	if f, err = p.RenameColumns(f); err != nil {
		return frame.Frame{}, err
	}
	f = p.DropIncompleteRows(f)
	log.Debug().Int("rows", f.Len()).Msg("after drop incomplete")
	if f, err = p.ExtractAndCastPrice(f); err != nil {
		return frame.Frame{}, err
	}
	if f, err = p.FilterMinimumPrice(f); err != nil {
		return frame.Frame{}, err
	}
	log.Debug().Int("rows", f.Len()).Msg("after price filter")
	if f, err = p.CategorizePrice(f); err != nil {
		return frame.Frame{}, err
	}
	if f, err = p.EncodeAmenities(f); err != nil {
		return frame.Frame{}, err
	}
	if mapCategorical {
		if f, err = p.MapCategoricalFeatures(f); err != nil {
			return frame.Frame{}, err
		}
	}
	log.Info().Int("rows", f.Len()).Msg("data cleaning completed")
	return f, nil
}

func (p *Pipeline) SelectColumns(f frame.Frame) (frame.Frame, error) {
	return f.Select(p.columnsToUse...)
}

func (p *Pipeline) RenameColumns(f frame.Frame) (frame.Frame, error) {
	return f.Rename(p.columnsToRename)
}

func (p *Pipeline) DropIncompleteRows(f frame.Frame) frame.Frame {
	return f.DropIncomplete()
}

// DeriveNumericBathrooms parses the leading token of bathrooms_text ("1.5 baths")
// into bathrooms. Anything unparseable, NaN included, becomes missing; it never
// fails on data.
func (p *Pipeline) DeriveNumericBathrooms(f frame.Frame) (frame.Frame, error) {
	src, err := f.Column(ColBathroomsText)
	if err != nil {
		return frame.Frame{}, err
	}
	out := make([]frame.Value, len(src))
	for i, v := range src {
		out[i] = bathroomsFromText(v)
	}
	f, err = f.Set(ColBathrooms, out)
	if err != nil {
		return frame.Frame{}, err
	}
	return f.Drop(ColBathroomsText), nil
}

func bathroomsFromText(v frame.Value) frame.Value {
	s, ok := v.Text()
	if !ok {
		return frame.Null()
	}
	tok, _, _ := strings.Cut(s, " ")
	n, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(n) {
		return frame.Null()
	}
	return frame.Num(n)
}

// ExtractAndCastPrice pulls the numeric part out of a currency string. The
// first capture group is used when the pattern has one, thousands separators
// are stripped, and the result is cast to the configured dtype. A record that
// does not match becomes missing and is removed by the price filter.
func (p *Pipeline) ExtractAndCastPrice(f frame.Frame) (frame.Frame, error) {
	src, err := f.Column(ColPrice)
	if err != nil {
		return frame.Frame{}, err
	}
	out := make([]frame.Value, len(src))
	for i, v := range src {
		out[i] = p.castPrice(v)
	}
	return f.Set(ColPrice, out)
}

func (p *Pipeline) castPrice(v frame.Value) frame.Value {
	if x, ok := v.Float(); ok {
		return frame.Num(p.truncate(x))
	}
	s, ok := v.Text()
	if !ok {
		return frame.Null()
	}
	m := p.targetRegex.FindStringSubmatch(s)
	if m == nil {
		return frame.Null()
	}
	raw := m[0]
	if len(m) > 1 {
		raw = m[1]
	}
	raw = strings.ReplaceAll(raw, ",", "")
	// int dtype truncates "150.00" like a float-to-int cast
	x, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return frame.Null()
	}
	return frame.Num(p.truncate(x))
}

func (p *Pipeline) truncate(x float64) float64 {
	if p.targetInt {
		return float64(int64(x))
	}
	return x
}

// FilterMinimumPrice keeps rows with price >= min_price. Missing prices go too.
func (p *Pipeline) FilterMinimumPrice(f frame.Frame) (frame.Frame, error) {
	prices, err := f.Column(ColPrice)
	if err != nil {
		return frame.Frame{}, err
	}
	return f.Filter(func(i int) bool {
		x, ok := prices[i].Float()
		return ok && x >= p.minPrice
	}), nil
}

// CategorizePrice assigns bin i when bins[i] < price <= bins[i+1]. Prices at
// or below the first edge or above the last get a missing category.
func (p *Pipeline) CategorizePrice(f frame.Frame) (frame.Frame, error) {
	prices, err := f.Column(ColPrice)
	if err != nil {
		return frame.Frame{}, err
	}
	out := make([]frame.Value, len(prices))
	for i, v := range prices {
		x, ok := v.Float()
		if !ok {
			continue
		}
		if c, ok := p.Bin(x); ok {
			out[i] = frame.Num(float64(c))
		}
	}
	return f.Set(ColCategory, out)
}

// Bin returns the category index of price, or false when it falls outside
// (bins[0], bins[len-1]].
func (p *Pipeline) Bin(price float64) (int, bool) {
	last := len(p.bins) - 1
	if !(price > p.bins[0] && price <= p.bins[last]) {
		return 0, false
	}
	// first edge >= price closes the bin
	i := sort.SearchFloat64s(p.bins, price)
	return i - 1, true
}

// EncodeAmenities adds one 0/1 column per configured amenity by exact
// substring match, then drops the raw amenities text.
func (p *Pipeline) EncodeAmenities(f frame.Frame) (frame.Frame, error) {
	src, err := f.Column(ColAmenities)
	if err != nil {
		return frame.Frame{}, err
	}
	for _, amenity := range p.amenities {
		col := make([]frame.Value, len(src))
		for i, v := range src {
			s, ok := v.Text()
			if !ok {
				continue
			}
			if strings.Contains(s, amenity) {
				col[i] = frame.Num(1)
			} else {
				col[i] = frame.Num(0)
			}
		}
		if f, err = f.Set(p.AmenityColumn(amenity), col); err != nil {
			return frame.Frame{}, err
		}
	}
	return f.Drop(ColAmenities), nil
}

// AmenityColumn names the indicator column of amenity: the amenity_columns
// override when set, else the amenity with spaces replaced by underscores.
func (p *Pipeline) AmenityColumn(amenity string) string {
	if c, ok := p.amenityColumns[amenity]; ok {
		return c
	}
	return strings.ReplaceAll(amenity, " ", "_")
}

// MapCategoricalFeatures replaces room_type and neighbourhood labels with their
// codes. A label without a code fails the whole call.
func (p *Pipeline) MapCategoricalFeatures(f frame.Frame) (frame.Frame, error) {
	var err error
	if f, err = mapColumn(f, ColRoomType, p.roomType); err != nil {
		return frame.Frame{}, err
	}
	return mapColumn(f, ColNeighbourhood, p.neighbourhood)
}

func mapColumn(f frame.Frame, name string, table map[string]int) (frame.Frame, error) {
	src, err := f.Column(name)
	if err != nil {
		return frame.Frame{}, err
	}
	out := make([]frame.Value, len(src))
	for i, v := range src {
		s, ok := v.Text()
		if !ok {
			return frame.Frame{}, &domain.UnknownCategoryError{Column: name, Value: v.String()}
		}
		code, ok := table[s]
		if !ok {
			return frame.Frame{}, &domain.UnknownCategoryError{Column: name, Value: s}
		}
		out[i] = frame.Num(float64(code))
	}
	return f.Set(name, out)
}

// CategoryName maps a trained class index to its price-tier label.
func (p *Pipeline) CategoryName(class int) (string, error) {
	if class < 0 || class >= len(p.categoryNames) {
		return "", &domain.UnknownClassError{Class: class}
	}
	return p.categoryNames[class], nil
}

// CategoryNames is the full label set, in class order.
func (p *Pipeline) CategoryNames() []string { return append([]string(nil), p.categoryNames...) }

func (p *Pipeline) RoomTypeLabel(code int) (string, bool) {
	s, ok := p.roomTypeInv[code]
	return s, ok
}

func (p *Pipeline) NeighbourhoodLabel(code int) (string, bool) {
	s, ok := p.neighInv[code]
	return s, ok
}

// RoomTypes and Neighbourhoods list the accepted labels, sorted.
func (p *Pipeline) RoomTypes() []string { return keys(p.roomType) }

func (p *Pipeline) Neighbourhoods() []string { return keys(p.neighbourhood) }

func keys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
