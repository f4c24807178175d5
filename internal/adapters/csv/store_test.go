package csvad_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	csvad "listing_price/internal/adapters/csv"
	"listing_price/internal/domain"
	"listing_price/internal/frame"
)

func TestRead_QuotedFieldsAndMissing(t *testing.T) {
	in := "id,amenities,price\n1,\"[\"\"TV\"\", \"\"Wifi\"\"]\",\"$1,250.00\"\n2,,$80.00\n"
	f, err := csvad.Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("rows = %d, want 2", f.Len())
	}
	a, _ := f.Column("amenities")
	if s, _ := a[0].Text(); s != `["TV", "Wifi"]` {
		t.Fatalf("unexpected amenities %q", s)
	}
	if !a[1].IsMissing() {
		t.Fatalf("empty cell should be missing")
	}
	p, _ := f.Column("price")
	if s, _ := p[0].Text(); s != "$1,250.00" {
		t.Fatalf("unexpected price %q", s)
	}
}

func TestRead_NATokensAreMissing(t *testing.T) {
	in := "id,beds,bathrooms_text\n1,N/A,NaN\n2,2,1 bath\n"
	f, err := csvad.Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	beds, _ := f.Column("beds")
	baths, _ := f.Column("bathrooms_text")
	if !beds[0].IsMissing() || !baths[0].IsMissing() {
		t.Fatalf("NA tokens should be missing: beds=%v baths=%v", beds[0], baths[0])
	}
	if beds[1].IsMissing() || baths[1].IsMissing() {
		t.Fatalf("row 2 should be complete")
	}
	if got := f.DropIncomplete().Len(); got != 1 {
		t.Fatalf("DropIncomplete kept %d rows, want 1", got)
	}
}

func TestRead_Empty(t *testing.T) {
	if _, err := csvad.Read(strings.NewReader("")); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestStore_WriteThenRead(t *testing.T) {
	f := frame.New(2)
	f, _ = f.Set("neighbourhood", []frame.Value{frame.Str("Brooklyn"), frame.Str("Queens")})
	f, _ = f.Set("price", []frame.Value{frame.Num(75.5), frame.Null()})

	path := filepath.Join(t.TempDir(), "clean", "out.csv")
	var s csvad.Store
	if err := s.WriteFrame(path, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	g, err := s.ReadFrame(path)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	header, rows := g.Records()
	if strings.Join(header, ",") != "neighbourhood,price" {
		t.Fatalf("unexpected header %v", header)
	}
	if rows[0][1] != "75.5" || rows[1][1] != "" || rows[1][0] != "Queens" {
		t.Fatalf("unexpected rows %v", rows)
	}
}
