// internal/adapters/modelserver/client.go
package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"listing_price/internal/adapters/observability"
	"listing_price/internal/domain"
)

// Client is a Predictor backed by a remote model server. It never retries:
// a failed call is reported to the caller as is.
type Client struct {
	base     string
	hc       *http.Client
	key      string
	rl       *rate.Limiter
	features []string
}

func New(base, key string, rps int, features []string) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("model server base URL is required")
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("feature list is required")
	}
	if rps <= 0 {
		rps = 20
	}
	return &Client{
		base:     strings.TrimRight(base, "/"),
		hc:       &http.Client{Timeout: 10 * time.Second},
		key:      key,
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
		features: slices.Clone(features),
	}, nil
}

func (c *Client) FeatureNames() []string { return slices.Clone(c.features) }

type predictRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type predictResponse struct {
	Classes []int `json:"classes"`
}

// Ping checks the server knows the model; 404 maps to ErrModelNotFound.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/model", nil)
	if err != nil {
		return err
	}
	return c.do(req, "model", nil)
}

func (c *Client) Predict(ctx context.Context, m domain.FeatureMatrix) ([]int, error) {
	if !slices.Equal(m.Columns, c.features) {
		return nil, fmt.Errorf("%w: got %v, want %v", domain.ErrFeatureMismatch, m.Columns, c.features)
	}
	if len(m.Rows) == 0 {
		return []int{}, nil
	}
	body, err := json.Marshal(predictRequest{Columns: m.Columns, Rows: m.Rows})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out predictResponse
	if err := c.do(req, "predict", &out); err != nil {
		return nil, err
	}
	if len(out.Classes) != len(m.Rows) {
		return nil, fmt.Errorf("model server returned %d classes for %d rows", len(out.Classes), len(m.Rows))
	}
	return out.Classes, nil
}

// do performs one rate-limited request and decodes a 2xx body into out.
func (c *Client) do(req *http.Request, endpoint string, out any) error {
	if err := c.rl.Wait(req.Context()); err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "listing-price/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("modelserver", endpoint, 0, time.Since(start))
		if req.Context().Err() != nil {
			return req.Context().Err()
		}
		return err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("modelserver", endpoint, resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return fmt.Errorf("%w: remote %s", domain.ErrModelNotFound, c.base)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: model server returned %d", domain.ErrUnauthorized, resp.StatusCode)
	default:
		// read a small error body for diagnostics
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("model server status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
