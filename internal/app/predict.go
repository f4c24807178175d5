package app

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"listing_price/internal/adapters/observability"
	"listing_price/internal/domain"
	"listing_price/internal/frame"
	"listing_price/internal/pipeline"
)

// PredictOptions are the optional collaborators of PredictionService.
type PredictOptions struct {
	Cache    domain.Cache // nil disables caching
	CacheTTL time.Duration
	ModelID  string // part of every cache key
	MaxBatch int
}

// PredictionService maps API listings to the predictor and back. It holds no
// mutable state and is safe for concurrent use.
type PredictionService struct {
	pipe   *pipeline.Pipeline
	model  domain.Predictor
	schema *Schema
	opts   PredictOptions
}

func NewPredictionService(p *pipeline.Pipeline, m domain.Predictor, opts PredictOptions) *PredictionService {
	return &PredictionService{
		pipe:   p,
		model:  m,
		schema: NewSchema(p.Neighbourhoods(), p.RoomTypes(), opts.MaxBatch),
		opts:   opts,
	}
}

// Decode parses and validates a request body; see Schema.Decode. Rejected
// bodies are counted like any other prediction outcome.
func (s *PredictionService) Decode(r io.Reader) (Request, error) {
	req, shape, err := s.schema.decode(r)
	if err != nil {
		outcome := "error"
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			outcome = "invalid"
		}
		observability.ObservePredict(shape, outcome, nil)
		log.Warn().Err(err).Str("shape", shape).Msg("request rejected")
	}
	return req, err
}

// Predict validates req, runs categorical mapping, feature selection and the
// predictor, and pairs every label with its input id in input order.
func (s *PredictionService) Predict(ctx context.Context, req Request) (Response, error) {
	shape := "single"
	if _, ok := req.(BatchRequest); ok {
		shape = "batch"
	}
	log.Info().Str("shape", shape).Msg("prediction request received")

	if err := s.schema.Validate(req); err != nil {
		observability.ObservePredict(shape, "invalid", nil)
		log.Warn().Err(err).Msg("validation error")
		return nil, err
	}

	listings := req.listings()
	labels, err := s.labels(ctx, listings)
	if err != nil {
		observability.ObservePredict(shape, "error", nil)
		log.Error().Err(err).Str("shape", shape).Int("n", len(listings)).Msg("prediction failed")
		return nil, err
	}
	observability.ObservePredict(shape, "ok", labels)

	results := make([]domain.Prediction, len(listings))
	for i, l := range listings {
		results[i] = domain.Prediction{ID: l.ID, PriceCategory: labels[i]}
	}
	if shape == "batch" {
		log.Info().Int("n", len(results)).Msg("batch prediction completed")
		return BatchResponse{Results: results}, nil
	}
	log.Info().Msg("individual prediction completed")
	return SingleResponse(results[0]), nil
}

func (s *PredictionService) labels(ctx context.Context, listings []domain.Listing) ([]string, error) {
	f, err := toFrame(listings)
	if err != nil {
		return nil, err
	}
	if f, err = s.pipe.MapCategoricalFeatures(f); err != nil {
		return nil, err
	}
	m, err := f.Matrix(s.model.FeatureNames())
	if err != nil {
		return nil, err
	}

	classes := make([]int, len(m.Rows))
	keys := make([]string, len(m.Rows))
	for i, row := range m.Rows {
		keys[i] = s.cacheKey(row)
	}
	hits := make([]bool, len(m.Rows))
	if s.opts.Cache != nil {
		dst := make([]any, len(classes))
		for i := range classes {
			dst[i] = &classes[i]
		}
		if got, err := s.opts.Cache.GetMany(ctx, keys, dst); err != nil {
			log.Warn().Err(err).Msg("prediction cache get failed")
			clear(classes)
		} else {
			hits = got
		}
	}

	miss := domain.FeatureMatrix{Columns: m.Columns}
	var missIdx []int
	for i, row := range m.Rows {
		if !hits[i] {
			missIdx = append(missIdx, i)
			miss.Rows = append(miss.Rows, row)
		}
	}

	if len(missIdx) > 0 {
		preds, err := s.model.Predict(ctx, miss)
		if err != nil {
			return nil, fmt.Errorf("predict: %w", err)
		}
		if len(preds) != len(missIdx) {
			return nil, fmt.Errorf("predictor returned %d classes for %d rows", len(preds), len(missIdx))
		}
		fresh := make(map[string]any, len(missIdx))
		for j, i := range missIdx {
			classes[i] = preds[j]
			fresh[keys[i]] = preds[j]
		}
		if s.opts.Cache != nil {
			if err := s.opts.Cache.SetMany(ctx, fresh, int(s.opts.CacheTTL.Seconds())); err != nil {
				log.Warn().Err(err).Msg("prediction cache set failed")
			}
		}
	}

	out := make([]string, len(classes))
	for i, c := range classes {
		if out[i], err = s.pipe.CategoryName(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// cacheKey hashes the model id and the exact feature values.
func (s *PredictionService) cacheKey(row []float64) string {
	h := sha1.New()
	h.Write([]byte(s.opts.ModelID))
	var b [8]byte
	for _, x := range row {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
		h.Write(b[:])
	}
	return "pred:" + hex.EncodeToString(h.Sum(nil))
}

// toFrame lays listings out in input order under the column names the
// pipeline and the model features use.
func toFrame(ls []domain.Listing) (frame.Frame, error) {
	n := len(ls)
	cols := map[string][]frame.Value{}
	order := []string{"id", pipeline.ColNeighbourhood, pipeline.ColRoomType, "accommodates", pipeline.ColBathrooms,
		"bedrooms", "beds", "tv", "elevator", "internet", "latitude", "longitude"}
	for _, c := range order {
		cols[c] = make([]frame.Value, n)
	}
	for i, l := range ls {
		cols["id"][i] = frame.Num(float64(l.ID))
		cols[pipeline.ColNeighbourhood][i] = frame.Str(l.Neighbourhood)
		cols[pipeline.ColRoomType][i] = frame.Str(l.RoomType)
		cols["accommodates"][i] = frame.Num(float64(l.Accommodates))
		cols[pipeline.ColBathrooms][i] = frame.Num(l.Bathrooms)
		cols["bedrooms"][i] = frame.Num(float64(l.Bedrooms))
		cols["beds"][i] = frame.Num(float64(l.Beds))
		cols["tv"][i] = frame.Num(float64(l.TV))
		cols["elevator"][i] = frame.Num(float64(l.Elevator))
		cols["internet"][i] = frame.Num(float64(l.Internet))
		cols["latitude"][i] = frame.Num(l.Latitude)
		cols["longitude"][i] = frame.Num(l.Longitude)
	}
	f := frame.New(n)
	var err error
	for _, c := range order {
		if f, err = f.Set(c, cols[c]); err != nil {
			return frame.Frame{}, err
		}
	}
	return f, nil
}
