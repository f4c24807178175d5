package csvad

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"listing_price/internal/domain"
	"listing_price/internal/frame"
)

// Store reads and writes frames as comma-separated files with a header row.
type Store struct{}

func (Store) ReadFrame(path string) (frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return frame.Frame{}, err
	}
	defer fh.Close()
	return Read(fh)
}

// Read parses CSV from r. Empty cells become missing values.
func Read(r io.Reader) (frame.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return frame.Frame{}, fmt.Errorf("%w: empty file", domain.ErrSchema)
	}
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: %v", domain.ErrDataFormat, err)
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: %v", domain.ErrDataFormat, err)
	}
	return frame.FromRecords(header, rows)
}

// WriteFrame writes f to path, creating parent directories.
func (Store) WriteFrame(path string, f frame.Frame) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(fh, f); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

func Write(w io.Writer, f frame.Frame) error {
	header, rows := f.Records()
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
