package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"listing_price/internal/domain"
)

// Request is either a SingleRequest or a BatchRequest.
type Request interface {
	listings() []domain.Listing
}

type SingleRequest struct{ Listing domain.Listing }

type BatchRequest struct{ Listings []domain.Listing }

func (r SingleRequest) listings() []domain.Listing { return []domain.Listing{r.Listing} }

func (r BatchRequest) listings() []domain.Listing { return r.Listings }

// Response is either a SingleResponse or a BatchResponse.
type Response interface {
	predictions() []domain.Prediction
}

type SingleResponse domain.Prediction

type BatchResponse struct {
	Results []domain.Prediction `json:"results"`
}

func (r SingleResponse) predictions() []domain.Prediction { return []domain.Prediction{domain.Prediction(r)} }

func (r BatchResponse) predictions() []domain.Prediction { return r.Results }

// listingInput is the wire schema of one listing. Pointers tell an absent
// field apart from a zero value.
type listingInput struct {
	ID            *int64   `json:"id" validate:"required"`
	Neighbourhood *string  `json:"neighbourhood" validate:"required,neighbourhood"`
	RoomType      *string  `json:"room_type" validate:"required,room_type"`
	Accommodates  *int     `json:"accommodates" validate:"required,gte=1"`
	Bathrooms     *float64 `json:"bathrooms" validate:"required,gte=0"`
	Bedrooms      *int     `json:"bedrooms" validate:"required,gte=1"`
	Beds          *int     `json:"beds" validate:"required,gte=1"`
	TV            *int     `json:"tv" validate:"required,gte=0,lte=1"`
	Elevator      *int     `json:"elevator" validate:"required,gte=0,lte=1"`
	Internet      *int     `json:"internet" validate:"required,gte=0,lte=1"`
	Latitude      *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude     *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func (in listingInput) listing() domain.Listing {
	return domain.Listing{
		ID:            *in.ID,
		Neighbourhood: *in.Neighbourhood,
		RoomType:      *in.RoomType,
		Accommodates:  *in.Accommodates,
		Bathrooms:     *in.Bathrooms,
		Bedrooms:      *in.Bedrooms,
		Beds:          *in.Beds,
		TV:            *in.TV,
		Elevator:      *in.Elevator,
		Internet:      *in.Internet,
		Latitude:      *in.Latitude,
		Longitude:     *in.Longitude,
	}
}

func inputOf(l domain.Listing) listingInput {
	return listingInput{
		ID: &l.ID, Neighbourhood: &l.Neighbourhood, RoomType: &l.RoomType,
		Accommodates: &l.Accommodates, Bathrooms: &l.Bathrooms, Bedrooms: &l.Bedrooms, Beds: &l.Beds,
		TV: &l.TV, Elevator: &l.Elevator, Internet: &l.Internet,
		Latitude: &l.Latitude, Longitude: &l.Longitude,
	}
}

// Schema validates listings against the field constraints and the configured
// neighbourhood and room-type label sets.
type Schema struct {
	v              *validator.Validate
	neighbourhoods []string
	roomTypes      []string
	maxBatch       int
}

func NewSchema(neighbourhoods, roomTypes []string, maxBatch int) *Schema {
	s := &Schema{v: validator.New(), neighbourhoods: neighbourhoods, roomTypes: roomTypes, maxBatch: maxBatch}

	// JSON tag names in error messages
	s.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = s.v.RegisterValidation("neighbourhood", oneOf(neighbourhoods))
	_ = s.v.RegisterValidation("room_type", oneOf(roomTypes))
	return s
}

func oneOf(allowed []string) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}

// Decode parses and validates a request body. A body with a "data" key is a
// batch; anything else is a single listing. Unknown fields are rejected and
// a batch is all-or-nothing.
func (s *Schema) Decode(r io.Reader) (Request, error) {
	req, _, err := s.decode(r)
	return req, err
}

// decode also reports the request shape seen: single, batch, or unknown when
// the body is not a JSON object.
func (s *Schema) decode(r io.Reader) (Request, string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, "unknown", err
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, "unknown", &domain.ValidationError{Msg: "request body must be a JSON object", Fields: map[string]string{"body": err.Error()}}
	}
	if _, ok := top["data"]; !ok {
		l, err := s.decodeListing(body, "")
		if err != nil {
			return nil, "single", err
		}
		return SingleRequest{Listing: l}, "single", nil
	}

	var batch struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := strictUnmarshal(body, &batch); err != nil {
		return nil, "batch", decodeError(err, "")
	}
	if err := s.checkBatchSize(len(batch.Data)); err != nil {
		return nil, "batch", err
	}
	out := BatchRequest{Listings: make([]domain.Listing, 0, len(batch.Data))}
	for i, raw := range batch.Data {
		l, err := s.decodeListing(raw, fmt.Sprintf("data[%d].", i))
		if err != nil {
			return nil, "batch", err
		}
		out.Listings = append(out.Listings, l)
	}
	return out, "batch", nil
}

func (s *Schema) checkBatchSize(n int) error {
	if n == 0 {
		return &domain.ValidationError{Msg: "validation failed", Fields: map[string]string{"data": "must contain at least one listing"}}
	}
	if s.maxBatch > 0 && n > s.maxBatch {
		return &domain.ValidationError{Msg: "validation failed", Fields: map[string]string{"data": fmt.Sprintf("must not exceed %d listings", s.maxBatch)}}
	}
	return nil
}

func (s *Schema) decodeListing(raw []byte, prefix string) (domain.Listing, error) {
	var in listingInput
	if err := strictUnmarshal(raw, &in); err != nil {
		return domain.Listing{}, decodeError(err, prefix)
	}
	if err := s.validate(in, prefix); err != nil {
		return domain.Listing{}, err
	}
	return in.listing(), nil
}

// Validate checks already-decoded requests, e.g. ones built in Go.
func (s *Schema) Validate(req Request) error {
	ls := req.listings()
	_, batch := req.(BatchRequest)
	if batch {
		if err := s.checkBatchSize(len(ls)); err != nil {
			return err
		}
	}
	for i, l := range ls {
		prefix := ""
		if batch {
			prefix = fmt.Sprintf("data[%d].", i)
		}
		if err := s.validate(inputOf(l), prefix); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) validate(in listingInput, prefix string) error {
	err := s.v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[prefix+e.Field()] = s.friendlyMessage(e)
	}
	return &domain.ValidationError{Msg: "validation failed", Fields: fields}
}

func (s *Schema) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "neighbourhood":
		return "must be one of: " + strings.Join(s.neighbourhoods, ", ")
	case "room_type":
		return "must be one of: " + strings.Join(s.roomTypes, ", ")
	default:
		return "is invalid"
	}
}

func strictUnmarshal(b []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// decodeError turns encoding/json failures into field-level validation errors.
func decodeError(err error, prefix string) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &domain.ValidationError{Msg: "validation failed", Fields: map[string]string{prefix + typeErr.Field: "must be of type " + typeErr.Type.String()}}
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return &domain.ValidationError{Msg: "validation failed", Fields: map[string]string{prefix + strings.Trim(name, `"`): "is not permitted"}}
	}
	field := strings.TrimSuffix(prefix, ".")
	if field == "" {
		field = "body"
	}
	return &domain.ValidationError{Msg: "malformed JSON", Fields: map[string]string{field: err.Error()}}
}
