package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"listing_price/internal/adapters/observability"
	"listing_price/internal/domain"
	"listing_price/internal/frame"
	"listing_price/internal/pipeline"
)

// FrameStore reads and writes tables.
type FrameStore interface {
	ReadFrame(path string) (frame.Frame, error)
	WriteFrame(path string, f frame.Frame) error
}

type CleanOptions struct {
	Workers        int
	MapCategorical bool
	Repo           domain.CleanListingRepository // nil skips the database
}

type CleanReport struct {
	Files  int
	Read   int
	Kept   int
	Output string
}

// CleanService runs the offline cleaning pipeline over raw listing files.
type CleanService struct {
	pipe  *pipeline.Pipeline
	store FrameStore
	opts  CleanOptions
}

func NewCleanService(p *pipeline.Pipeline, store FrameStore, opts CleanOptions) *CleanService {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &CleanService{pipe: p, store: store, opts: opts}
}

type cleaned struct {
	source string
	read   int
	f      frame.Frame
	err    error
}

// Run cleans every input, concatenates the results in input order and writes
// them to output. Any failing input fails the run and nothing is written.
func (s *CleanService) Run(ctx context.Context, inputs []string, output string) (CleanReport, error) {
	if len(inputs) == 0 {
		return CleanReport{}, fmt.Errorf("no input files")
	}
	results := make([]cleaned, len(inputs))
	sem := semaphore.NewWeighted(int64(s.opts.Workers))
	var wg sync.WaitGroup

	for i, path := range inputs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = cleaned{source: path, err: err}
			break
		}
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = s.cleanFile(path)
		}(i, path)
	}
	wg.Wait()

	var errs []error
	frames := make([]frame.Frame, 0, len(results))
	rep := CleanReport{Files: len(inputs), Output: output}
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.source, r.err))
			continue
		}
		rep.Read += r.read
		rep.Kept += r.f.Len()
		frames = append(frames, r.f)
	}
	if err := errors.Join(errs...); err != nil {
		return CleanReport{}, err
	}

	out, err := frame.Concat(frames...)
	if err != nil {
		return CleanReport{}, err
	}
	if err := s.store.WriteFrame(output, out); err != nil {
		return CleanReport{}, fmt.Errorf("write %s: %w", output, err)
	}
	observability.ObserveClean(rep.Read, rep.Kept)
	log.Info().Str("output", output).Int("read", rep.Read).Int("kept", rep.Kept).Msg("data saved")

	if s.opts.Repo != nil {
		var rows []domain.CleanListing
		for _, r := range results {
			ls, err := toCleanListings(filepath.Base(r.source), r.f)
			if err != nil {
				return CleanReport{}, err
			}
			rows = append(rows, ls...)
		}
		if err := s.opts.Repo.UpsertCleanListings(ctx, rows); err != nil {
			return CleanReport{}, fmt.Errorf("store clean listings: %w", err)
		}
		log.Info().Int("rows", len(rows)).Msg("clean listings stored")
	}
	return rep, nil
}

func (s *CleanService) cleanFile(path string) cleaned {
	raw, err := s.store.ReadFrame(path)
	if err != nil {
		return cleaned{source: path, err: err}
	}
	f, err := s.pipe.Clean(raw, s.opts.MapCategorical)
	if err != nil {
		return cleaned{source: path, err: err}
	}
	log.Debug().Str("file", path).Int("read", raw.Len()).Int("kept", f.Len()).Msg("file cleaned")
	return cleaned{source: path, read: raw.Len(), f: f}
}

func toCleanListings(source string, f frame.Frame) ([]domain.CleanListing, error) {
	out := make([]domain.CleanListing, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		row := f.Row(i)
		price, ok := row[pipeline.ColPrice].Float()
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d has no numeric price", domain.ErrDataFormat, source, i)
		}
		cl := domain.CleanListing{Source: source, Row: i, Price: price}
		if c, ok := row[pipeline.ColCategory].Float(); ok {
			cat := int(c)
			cl.Category = &cat
		}
		rest := make(map[string]any, len(row))
		for k, v := range row {
			if k == pipeline.ColPrice || k == pipeline.ColCategory {
				continue
			}
			rest[k] = v.Any()
		}
		b, err := json.Marshal(rest)
		if err != nil {
			return nil, err
		}
		cl.Columns = b
		out = append(out, cl)
	}
	return out, nil
}
