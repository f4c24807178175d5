// Package config resolves and parses the YAML documents that drive the
// preprocessing pipeline, the predictor and the API.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"listing_price/internal/domain"
)

// Candidates returns the search list for name: explicit dirs first, then the
// working directory, ./config, and the executable's directory and its parent.
func Candidates(name string, dirs ...string) []string {
	out := make([]string, 0, len(dirs)+4)
	for _, d := range dirs {
		if d != "" {
			out = append(out, filepath.Join(d, name))
		}
	}
	out = append(out, name, filepath.Join("config", name))
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		out = append(out, filepath.Join(dir, name), filepath.Join(filepath.Dir(dir), name))
	}
	return out
}

// Load parses the first existing candidate into dst and returns its path.
// A file that exists but fails to parse is an error, not a fall-through.
func Load(candidates []string, dst any) (string, error) {
	for _, p := range candidates {
		b, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
		if err := yaml.Unmarshal(b, dst); err != nil {
			return "", fmt.Errorf("parse %s: %w", p, err)
		}
		log.Debug().Str("path", p).Msg("config loaded")
		return p, nil
	}
	log.Error().Strs("searched", candidates).Msg("config file not found")
	return "", fmt.Errorf("%w; searched in:\n%s", domain.ErrConfigNotFound, strings.Join(candidates, "\n"))
}
