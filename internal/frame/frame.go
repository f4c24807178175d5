// Package frame is a small column-oriented table used by the preprocessing
// pipeline. Every operation returns a new Frame; receivers are never mutated,
// so a Frame can be shared across goroutines once built.
package frame

import (
	"fmt"
	"math"
	"strconv"

	"listing_price/internal/domain"
)

type Kind uint8

const (
	Missing Kind = iota
	String
	Number
)

// Value is one cell: a string, a number, or missing.
type Value struct {
	kind Kind
	s    string
	f    float64
}

func Null() Value { return Value{} }

func Str(s string) Value { return Value{kind: String, s: s} }

// Num wraps a number; NaN is stored as missing.
func Num(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: Number, f: f}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsMissing() bool { return v.kind == Missing }

// Text returns the string payload; ok is false for non-strings.
func (v Value) Text() (string, bool) { return v.s, v.kind == String }

// Float returns the numeric payload; ok is false for non-numbers.
func (v Value) Float() (float64, bool) { return v.f, v.kind == Number }

// Any converts the cell to string | float64 | nil.
func (v Value) Any() any {
	switch v.kind {
	case String:
		return v.s
	case Number:
		return v.f
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case String:
		return v.s
	case Number:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	}
	return ""
}

// Frame holds equally sized named columns in insertion order.
type Frame struct {
	names []string
	cols  map[string][]Value
	n     int
}

func New(n int) Frame {
	return Frame{cols: map[string][]Value{}, n: n}
}

// naTokens are the cell texts read as missing, matching pandas read_csv defaults.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNA reports whether s is read as a missing cell.
func IsNA(s string) bool {
	_, ok := naTokens[s]
	return ok
}

// FromRecords builds a frame of string cells. Empty strings and the usual NA
// spellings ("NA", "N/A", "NaN", "null", ...) are missing.
func FromRecords(header []string, rows [][]string) (Frame, error) {
	f := New(len(rows))
	for j, name := range header {
		if _, dup := f.cols[name]; dup {
			return Frame{}, fmt.Errorf("%w: duplicate column %q", domain.ErrSchema, name)
		}
		col := make([]Value, len(rows))
		for i, r := range rows {
			if j >= len(r) {
				return Frame{}, fmt.Errorf("%w: row %d has %d fields, header has %d", domain.ErrSchema, i, len(r), len(header))
			}
			if !IsNA(r[j]) {
				col[i] = Str(r[j])
			}
		}
		f.names = append(f.names, name)
		f.cols[name] = col
	}
	return f, nil
}

func (f Frame) Len() int { return f.n }

func (f Frame) Columns() []string { return append([]string(nil), f.names...) }

func (f Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns a copy of the named column.
func (f Frame) Column(name string) ([]Value, error) {
	c, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: column %q not found", domain.ErrSchema, name)
	}
	return append([]Value(nil), c...), nil
}

func (f Frame) clone() Frame {
	out := Frame{names: append([]string(nil), f.names...), cols: make(map[string][]Value, len(f.cols)), n: f.n}
	for k, v := range f.cols {
		out.cols[k] = v
	}
	return out
}

// Set adds or replaces a column. New columns go last.
func (f Frame) Set(name string, col []Value) (Frame, error) {
	if len(col) != f.n {
		return Frame{}, fmt.Errorf("%w: column %q has %d rows, frame has %d", domain.ErrSchema, name, len(col), f.n)
	}
	out := f.clone()
	if _, ok := out.cols[name]; !ok {
		out.names = append(out.names, name)
	}
	out.cols[name] = append([]Value(nil), col...)
	return out, nil
}

// Drop removes columns; absent names are ignored.
func (f Frame) Drop(names ...string) Frame {
	out := f.clone()
	for _, name := range names {
		if _, ok := out.cols[name]; !ok {
			continue
		}
		delete(out.cols, name)
		for i, n := range out.names {
			if n == name {
				out.names = append(out.names[:i:i], out.names[i+1:]...)
				break
			}
		}
	}
	return out
}

// Select projects to names, in that order.
func (f Frame) Select(names ...string) (Frame, error) {
	out := New(f.n)
	var missing []string
	for _, name := range names {
		c, ok := f.cols[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if _, dup := out.cols[name]; dup {
			continue
		}
		out.names = append(out.names, name)
		out.cols[name] = c
	}
	if len(missing) > 0 {
		return Frame{}, fmt.Errorf("%w: columns not found: %v", domain.ErrSchema, missing)
	}
	return out, nil
}

// Rename applies old -> new; names not present are ignored.
func (f Frame) Rename(mapping map[string]string) (Frame, error) {
	out := New(f.n)
	for _, name := range f.names {
		to := name
		if m, ok := mapping[name]; ok {
			to = m
		}
		if _, dup := out.cols[to]; dup {
			return Frame{}, fmt.Errorf("%w: rename produces duplicate column %q", domain.ErrSchema, to)
		}
		out.names = append(out.names, to)
		out.cols[to] = f.cols[name]
	}
	return out, nil
}

// Filter keeps the rows for which keep returns true, preserving order.
func (f Frame) Filter(keep func(i int) bool) Frame {
	idx := make([]int, 0, f.n)
	for i := 0; i < f.n; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out := New(len(idx))
	for _, name := range f.names {
		src := f.cols[name]
		col := make([]Value, len(idx))
		for j, i := range idx {
			col[j] = src[i]
		}
		out.names = append(out.names, name)
		out.cols[name] = col
	}
	return out
}

// DropIncomplete removes every row with a missing value in any column.
func (f Frame) DropIncomplete() Frame {
	return f.Filter(func(i int) bool {
		for _, name := range f.names {
			if f.cols[name][i].IsMissing() {
				return false
			}
		}
		return true
	})
}

// Concat stacks frames with identical column sets; column order follows the
// first frame.
func Concat(frames ...Frame) (Frame, error) {
	if len(frames) == 0 {
		return New(0), nil
	}
	first := frames[0]
	n := 0
	for k, f := range frames {
		if len(f.names) != len(first.names) {
			return Frame{}, fmt.Errorf("%w: frame %d has %d columns, want %d", domain.ErrSchema, k, len(f.names), len(first.names))
		}
		for _, name := range first.names {
			if !f.Has(name) {
				return Frame{}, fmt.Errorf("%w: frame %d lacks column %q", domain.ErrSchema, k, name)
			}
		}
		n += f.n
	}
	out := New(n)
	for _, name := range first.names {
		col := make([]Value, 0, n)
		for _, f := range frames {
			col = append(col, f.cols[name]...)
		}
		out.names = append(out.names, name)
		out.cols[name] = col
	}
	return out, nil
}

// Row returns row i as column -> value.
func (f Frame) Row(i int) map[string]Value {
	out := make(map[string]Value, len(f.names))
	for _, name := range f.names {
		out[name] = f.cols[name][i]
	}
	return out
}

// Records renders the frame as a header plus string rows (missing -> "").
func (f Frame) Records() ([]string, [][]string) {
	rows := make([][]string, f.n)
	for i := range rows {
		r := make([]string, len(f.names))
		for j, name := range f.names {
			r[j] = f.cols[name][i].String()
		}
		rows[i] = r
	}
	return f.Columns(), rows
}

// Matrix extracts columns as a numeric matrix. Every cell must be a number.
func (f Frame) Matrix(columns []string) (domain.FeatureMatrix, error) {
	m := domain.FeatureMatrix{Columns: append([]string(nil), columns...), Rows: make([][]float64, f.n)}
	for i := range m.Rows {
		m.Rows[i] = make([]float64, len(columns))
	}
	for j, name := range columns {
		c, ok := f.cols[name]
		if !ok {
			return domain.FeatureMatrix{}, fmt.Errorf("%w: feature column %q not found", domain.ErrSchema, name)
		}
		for i, v := range c {
			x, ok := v.Float()
			if !ok {
				return domain.FeatureMatrix{}, fmt.Errorf("%w: feature %q row %d is not numeric", domain.ErrDataFormat, name, i)
			}
			m.Rows[i][j] = x
		}
	}
	return m, nil
}
