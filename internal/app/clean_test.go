package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"

	"listing_price/internal/app"
	"listing_price/internal/domain"
	"listing_price/internal/frame"
	"listing_price/internal/pipeline"
)

type memStore struct {
	mu      sync.Mutex
	in      map[string]frame.Frame
	written map[string]frame.Frame
}

func (s *memStore) ReadFrame(path string) (frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.in[path]
	if !ok {
		return frame.Frame{}, os.ErrNotExist
	}
	return f, nil
}

func (s *memStore) WriteFrame(path string, f frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written == nil {
		s.written = map[string]frame.Frame{}
	}
	s.written[path] = f
	return nil
}

type fakeCleanRepo struct{ rows []domain.CleanListing }

func (r *fakeCleanRepo) UpsertCleanListings(ctx context.Context, rows []domain.CleanListing) error {
	r.rows = append(r.rows, rows...)
	return nil
}

func (r *fakeCleanRepo) CountCleanListings(ctx context.Context) (int, error) { return len(r.rows), nil }

var rawHeader = []string{
	"id", "neighbourhood_group_cleansed", "room_type", "accommodates", "bathrooms_text",
	"bedrooms", "beds", "amenities", "price", "latitude", "longitude",
}

func rawFrame(t *testing.T, rows ...[]string) frame.Frame {
	t.Helper()
	f, err := frame.FromRecords(rawHeader, rows)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return f
}

func TestCleanService_Run(t *testing.T) {
	p, err := pipeline.New(testPreprocessing())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	store := &memStore{in: map[string]frame.Frame{
		"raw/a.csv": rawFrame(t,
			[]string{"1", "Brooklyn", "Private room", "2", "1 bath", "1", "1", `["Internet", "TV"]`, "$75.00", "40.7", "-73.9"},
			[]string{"2", "Queens", "Private room", "2", "Half-bath", "1", "1", `[]`, "$80.00", "40.7", "-73.9"},
		),
		"raw/b.csv": rawFrame(t,
			[]string{"3", "Manhattan", "Entire home/apt", "4", "2 baths", "2", "3", `["Elevator"]`, "$1,250.00", "40.7", "-73.9"},
			[]string{"4", "Bronx", "Shared room", "1", "1 shared bath", "1", "1", `[]`, "$5.00", "40.8", "-73.8"},
		),
	}}
	repo := &fakeCleanRepo{}
	svc := app.NewCleanService(p, store, app.CleanOptions{Workers: 2, MapCategorical: true, Repo: repo})

	rep, err := svc.Run(context.Background(), []string{"raw/a.csv", "raw/b.csv"}, "clean/out.csv")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Files != 2 || rep.Read != 4 || rep.Kept != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}

	out, ok := store.written["clean/out.csv"]
	if !ok || out.Len() != 2 {
		t.Fatalf("clean output not written: %+v", store.written)
	}
	nb, _ := out.Column("neighbourhood")
	if x, _ := nb[0].Float(); x != 1 {
		t.Fatalf("expected Brooklyn encoded as 1, got %v", nb[0])
	}
	for _, c := range []string{"tv", "elevator", "internet"} {
		if !out.Has(c) {
			t.Fatalf("missing amenity column %q in %v", c, out.Columns())
		}
	}

	if len(repo.rows) != 2 {
		t.Fatalf("stored %d rows, want 2", len(repo.rows))
	}
	first, second := repo.rows[0], repo.rows[1]
	if first.Source != "a.csv" || first.Row != 0 || first.Price != 75 || first.Category == nil || *first.Category != 0 {
		t.Fatalf("unexpected first row %+v", first)
	}
	if second.Source != "b.csv" || second.Price != 1250 || *second.Category != 3 {
		t.Fatalf("unexpected second row %+v", second)
	}
	var cols map[string]any
	if err := json.Unmarshal(first.Columns, &cols); err != nil {
		t.Fatalf("columns json: %v", err)
	}
	if _, ok := cols["price"]; ok {
		t.Fatalf("price must not be duplicated in columns: %v", cols)
	}
	if cols["tv"] != float64(1) || cols["elevator"] != float64(0) {
		t.Fatalf("unexpected amenity flags %v", cols)
	}
}

func TestCleanService_FailingInputWritesNothing(t *testing.T) {
	p, _ := pipeline.New(testPreprocessing())
	store := &memStore{in: map[string]frame.Frame{
		"raw/a.csv": rawFrame(t, []string{"1", "Brooklyn", "Private room", "2", "1 bath", "1", "1", `[]`, "$75.00", "40.7", "-73.9"}),
	}}
	svc := app.NewCleanService(p, store, app.CleanOptions{})

	_, err := svc.Run(context.Background(), []string{"raw/a.csv", "raw/missing.csv"}, "clean/out.csv")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if len(store.written) != 0 {
		t.Fatalf("nothing should be written on failure")
	}
}
