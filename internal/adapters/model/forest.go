// Package model loads a pre-trained tree ensemble exported as JSON and serves
// predictions from it. The artifact is produced by the training tooling; this
// package only reads it.
package model

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/rs/zerolog/log"

	"listing_price/internal/domain"
)

// Node is a split when Feature >= 0 (x[Feature] <= Threshold goes Left) and a
// leaf otherwise, with Value holding per-class weights.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

type artifact struct {
	Type     string   `json:"type"`
	Features []string `json:"features"`
	Classes  []int    `json:"classes"`
	Trees    []Tree   `json:"trees"`
}

// Forest is immutable after Load and safe for concurrent use.
type Forest struct {
	id       string
	features []string
	classes  []int
	trees    []Tree
}

// Load reads the artifact at path and binds it to the configured feature
// order. A missing, unreadable or inconsistent artifact is ErrModelNotFound.
func Load(path string, features []string) (*Forest, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Error().Str("path", path).Msg("model file not found")
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrModelNotFound, path, err)
	}
	var a artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrModelNotFound, path, err)
	}
	if err := a.check(features); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrModelNotFound, path, err)
	}
	sum := sha1.Sum(b)
	id := hex.EncodeToString(sum[:8])
	log.Info().Str("path", path).Str("id", id).Int("trees", len(a.Trees)).Msg("model loaded")
	return &Forest{id: id, features: slices.Clone(features), classes: a.Classes, trees: a.Trees}, nil
}

func (a *artifact) check(features []string) error {
	if a.Type != "" && a.Type != "random_forest" {
		return fmt.Errorf("model type %q not supported", a.Type)
	}
	if len(features) == 0 {
		return errors.New("no features configured")
	}
	if len(a.Features) > 0 && !slices.Equal(a.Features, features) {
		return fmt.Errorf("artifact features %v differ from configured %v", a.Features, features)
	}
	if len(a.Classes) == 0 {
		return errors.New("no classes")
	}
	if len(a.Trees) == 0 {
		return errors.New("no trees")
	}
	for ti, t := range a.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				if len(n.Value) != len(a.Classes) {
					return fmt.Errorf("tree %d node %d: leaf has %d values, want %d", ti, ni, len(n.Value), len(a.Classes))
				}
				continue
			}
			if n.Feature >= len(features) {
				return fmt.Errorf("tree %d node %d: feature index %d out of range", ti, ni, n.Feature)
			}
			// children strictly after the parent rules out cycles
			for _, c := range []int{n.Left, n.Right} {
				if c <= ni || c >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d: bad child %d", ti, ni, c)
				}
			}
		}
	}
	return nil
}

// ID identifies the artifact content.
func (f *Forest) ID() string { return f.id }

func (f *Forest) FeatureNames() []string { return slices.Clone(f.features) }

// Predict averages the normalised leaf distributions of every tree and picks
// the heaviest class; ties go to the lower class index.
func (f *Forest) Predict(ctx context.Context, m domain.FeatureMatrix) ([]int, error) {
	if !slices.Equal(m.Columns, f.features) {
		return nil, fmt.Errorf("%w: got %v, want %v", domain.ErrFeatureMismatch, m.Columns, f.features)
	}
	out := make([]int, len(m.Rows))
	proba := make([]float64, len(f.classes))
	for i, row := range m.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != len(f.features) {
			return nil, fmt.Errorf("%w: row %d has %d values", domain.ErrFeatureMismatch, i, len(row))
		}
		clear(proba)
		for _, t := range f.trees {
			leaf := t.leaf(row)
			var sum float64
			for _, v := range leaf {
				sum += v
			}
			if sum == 0 {
				continue
			}
			for c, v := range leaf {
				proba[c] += v / sum
			}
		}
		best := 0
		for c := 1; c < len(proba); c++ {
			if proba[c] > proba[best] {
				best = c
			}
		}
		out[i] = f.classes[best]
	}
	return out, nil
}

func (t Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
