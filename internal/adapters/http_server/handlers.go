package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"listing_price/internal/app"
	"listing_price/internal/domain"
)

const welcome = "Welcome to the listing price category API. POST listings to /predict."

// Predictor is the application surface the handlers need.
type Predictor interface {
	Decode(r io.Reader) (app.Request, error)
	Predict(ctx context.Context, req app.Request) (app.Response, error)
}

type Handlers struct {
	Svc          Predictor
	Auth         app.Authenticator
	APIKeyHeader string
	MaxBodyBytes int64
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/", h.root)
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(h.Auth, h.APIKeyHeader))
		r.Post("/predict", h.predict)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeProblem(w http.ResponseWriter, p problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func (h *Handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": welcome})
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if h.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	req, err := h.Svc.Decode(body)
	if err != nil {
		h.fail(w, err)
		return
	}
	resp, err := h.Svc.Predict(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail maps application errors to HTTP problems. Only validation details
// reach the client; everything else gets a generic message.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &verr):
		writeProblem(w, problem{Title: "Unprocessable Entity", Status: http.StatusUnprocessableEntity, Detail: verr.Msg, Errors: verr.Fields})
	case errors.As(err, &tooLarge):
		writeProblem(w, problem{Title: "Request Entity Too Large", Status: http.StatusRequestEntityTooLarge, Detail: "request body too large"})
	default:
		log.Error().Err(err).Msg("prediction request failed")
		writeProblem(w, problem{Title: "Internal Server Error", Status: http.StatusInternalServerError, Detail: "an internal error occurred"})
	}
}
