//go:build integration || !unit

package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	server "listing_price/internal/adapters/http_server"
	"listing_price/internal/adapters/model"
	"listing_price/internal/adapters/observability"
	redisad "listing_price/internal/adapters/redis"
	"listing_price/internal/app"
	"listing_price/internal/config"
	"listing_price/internal/domain"
	"listing_price/internal/pipeline"
)

const root = "../.."

const listing = `{"id":1001,"neighbourhood":"Brooklyn","room_type":"Entire home/apt","accommodates":4,"bathrooms":2.0,"bedrooms":1,"beds":2,"tv":1,"elevator":1,"internet":0,"latitude":40.71383,"longitude":-73.9658}`

// newStack wires the shipped configuration, model artifact and a miniredis
// cache behind the real router.
func newStack(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	b, err := config.LoadBundle(filepath.Join(root, "config"))
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	p, err := pipeline.New(b.Preprocessing.Preprocessing)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	forest, err := model.Load(b.API.ModelToUse, b.Model.Features)
	if err != nil {
		t.Fatalf("model.Load: %v", err)
	}

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0, "lp:")
	t.Cleanup(func() { _ = cache.Close() })

	svc := app.NewPredictionService(p, forest, app.PredictOptions{
		Cache: cache, CacheTTL: time.Minute, ModelID: forest.ID(), MaxBatch: b.API.MaxBatchSize,
	})
	srv := server.New(5 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(observability.InitRegistry()))
	srv.MountHandlers(&server.Handlers{
		Svc: svc, Auth: app.NewAuthenticator("token"), APIKeyHeader: b.API.APIKeyHeader, MaxBodyBytes: 1 << 20,
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, mr
}

func predict(t *testing.T, ts *httptest.Server, body string) (int, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/predict", strings.NewReader(body))
	req.Header.Set("X-API-Key", "token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	return resp.StatusCode, raw
}

func TestHTTP_EndToEnd_SingleThenCached(t *testing.T) {
	ts, mr := newStack(t)

	status, body := predict(t, ts, listing)
	if status != http.StatusOK {
		t.Fatalf("status = %d body=%s", status, body)
	}
	var first domain.Prediction
	if err := json.Unmarshal(body, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	labels := map[string]bool{"Low": true, "Medium": true, "High": true, "Very High": true}
	if first.ID != 1001 || !labels[first.PriceCategory] {
		t.Fatalf("unexpected prediction %+v", first)
	}
	if n := len(mr.Keys()); n != 1 {
		t.Fatalf("expected one cached row, got %d", n)
	}

	_, body = predict(t, ts, listing)
	var second domain.Prediction
	_ = json.Unmarshal(body, &second)
	if second != first {
		t.Fatalf("cached prediction differs: %+v vs %+v", second, first)
	}
}

func TestHTTP_EndToEnd_BatchAndMetrics(t *testing.T) {
	ts, _ := newStack(t)

	ids := []string{"1", "2", "3"}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strings.Replace(listing, `"id":1001`, `"id":`+id, 1)
	}
	status, body := predict(t, ts, `{"data":[`+strings.Join(parts, ",")+`]}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d body=%s", status, body)
	}
	var out struct {
		Results []domain.Prediction `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i, r := range out.Results {
		if r.ID != int64(i+1) {
			t.Fatalf("result %d has id %d", i, r.ID)
		}
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
}
