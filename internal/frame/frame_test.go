package frame_test

import (
	"errors"
	"math"
	"testing"

	"listing_price/internal/domain"
	"listing_price/internal/frame"
)

func TestFromRecords_EmptyCellIsMissing(t *testing.T) {
	f, err := frame.FromRecords([]string{"a", "b"}, [][]string{{"x", ""}, {"", "2"}})
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	a, _ := f.Column("a")
	b, _ := f.Column("b")
	if a[0].IsMissing() || !a[1].IsMissing() || !b[0].IsMissing() || b[1].IsMissing() {
		t.Fatalf("unexpected cells: a=%v b=%v", a, b)
	}
	if got := f.DropIncomplete().Len(); got != 0 {
		t.Fatalf("expected every row dropped, kept %d", got)
	}
}

func TestFromRecords_ShortRow(t *testing.T) {
	_, err := frame.FromRecords([]string{"a", "b"}, [][]string{{"x"}})
	if !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestOperationsDoNotMutateReceiver(t *testing.T) {
	f, _ := frame.FromRecords([]string{"a", "b"}, [][]string{{"1", "2"}, {"3", "4"}})

	g, err := f.Set("a", []frame.Value{frame.Num(9), frame.Num(9)})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = f.Drop("b")
	_, _ = f.Rename(map[string]string{"a": "z"})

	a, _ := f.Column("a")
	if s, _ := a[0].Text(); s != "1" {
		t.Fatalf("receiver mutated: a[0]=%v", a[0])
	}
	if got := f.Columns(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("receiver columns changed: %v", got)
	}
	ga, _ := g.Column("a")
	if x, _ := ga[0].Float(); x != 9 {
		t.Fatalf("Set result wrong: %v", ga[0])
	}
}

func TestSelectKeepsRequestedOrder(t *testing.T) {
	f, _ := frame.FromRecords([]string{"a", "b", "c"}, [][]string{{"1", "2", "3"}})
	g, err := f.Select("c", "a")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if cols := g.Columns(); len(cols) != 2 || cols[0] != "c" || cols[1] != "a" {
		t.Fatalf("unexpected columns %v", cols)
	}
	if _, err := f.Select("a", "nope"); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestRenameCollision(t *testing.T) {
	f, _ := frame.FromRecords([]string{"a", "b"}, [][]string{{"1", "2"}})
	if _, err := f.Rename(map[string]string{"a": "b"}); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestMatrix(t *testing.T) {
	f := frame.New(2)
	f, _ = f.Set("x", []frame.Value{frame.Num(1), frame.Num(2)})
	f, _ = f.Set("y", []frame.Value{frame.Num(3), frame.Str("four")})

	if _, err := f.Matrix([]string{"x", "y"}); !errors.Is(err, domain.ErrDataFormat) {
		t.Fatalf("expected ErrDataFormat, got %v", err)
	}
	m, err := f.Matrix([]string{"x"})
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if len(m.Rows) != 2 || m.Rows[1][0] != 2 || m.Columns[0] != "x" {
		t.Fatalf("unexpected matrix %+v", m)
	}
}

func TestRecords(t *testing.T) {
	f := frame.New(2)
	f, _ = f.Set("price", []frame.Value{frame.Num(75.5), frame.Null()})
	header, rows := f.Records()
	if header[0] != "price" || rows[0][0] != "75.5" || rows[1][0] != "" {
		t.Fatalf("unexpected records %v %v", header, rows)
	}
}

func TestConcat(t *testing.T) {
	a, _ := frame.FromRecords([]string{"x", "y"}, [][]string{{"1", "2"}})
	b, _ := frame.FromRecords([]string{"y", "x"}, [][]string{{"4", "3"}, {"6", "5"}})
	c, err := frame.Concat(a, b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	header, rows := c.Records()
	if c.Len() != 3 || header[0] != "x" || rows[1][0] != "3" || rows[2][1] != "6" {
		t.Fatalf("unexpected concat %v %v", header, rows)
	}

	d, _ := frame.FromRecords([]string{"x"}, [][]string{{"1"}})
	if _, err := frame.Concat(a, d); !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestFromRecords_NATokensAreMissing(t *testing.T) {
	f, err := frame.FromRecords([]string{"a"}, [][]string{{"N/A"}, {"NaN"}, {"null"}, {"<NA>"}, {"Brooklyn"}})
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	a, _ := f.Column("a")
	for i := 0; i < 4; i++ {
		if !a[i].IsMissing() {
			t.Errorf("row %d: %q should be missing", i, a[i].String())
		}
	}
	if a[4].IsMissing() {
		t.Fatalf("plain text read as missing")
	}
}

func TestNum_NaNIsMissing(t *testing.T) {
	if !frame.Num(math.NaN()).IsMissing() {
		t.Fatalf("NaN should be missing")
	}
	if frame.Num(math.Inf(1)).IsMissing() {
		t.Fatalf("+Inf is a number")
	}
}
