package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

const (
	PreprocessingFile = "config_preprocessing.yaml"
	ModelFile         = "config_model.yaml"
	APIFile           = "api.yaml"
)

type Paths struct {
	Raw   string `yaml:"raw"`
	Clean string `yaml:"clean"`
	Model string `yaml:"model"`
}

type CategoricalMapping struct {
	RoomType      map[string]int `yaml:"room_type"`
	Neighbourhood map[string]int `yaml:"neighbourhood"`
}

type PreprocessingSection struct {
	ColumnsToUse       []string           `yaml:"columns_to_use"`
	ColumnsToRename    map[string]string  `yaml:"columns_to_rename"`
	TargetRegex        string             `yaml:"target_regex"`
	TargetDtype        string             `yaml:"target_dtype"`
	MinPrice           float64            `yaml:"min_price"`
	BinsCategories     []float64          `yaml:"bins_categories"`
	AmenitiesToDrop    []string           `yaml:"amenities_to_drop"`
	AmenityColumns     map[string]string  `yaml:"amenity_columns"`
	CategoricalMapping CategoricalMapping `yaml:"categorical_mapping"`
	CategoryNames      []string           `yaml:"category_names"`
}

// Preprocessing is config_preprocessing.yaml.
type Preprocessing struct {
	Paths         Paths                `yaml:"paths"`
	Preprocessing PreprocessingSection `yaml:"preprocessing"`
}

func (c *Preprocessing) Validate() error {
	p := c.Preprocessing
	if len(p.ColumnsToUse) == 0 {
		return errors.New("preprocessing.columns_to_use is empty")
	}
	if _, err := regexp.Compile(p.TargetRegex); err != nil {
		return fmt.Errorf("preprocessing.target_regex: %w", err)
	}
	switch p.TargetDtype {
	case "float", "float64", "int", "int64":
	default:
		return fmt.Errorf("preprocessing.target_dtype %q not supported", p.TargetDtype)
	}
	if len(p.BinsCategories) < 2 {
		return errors.New("preprocessing.bins_categories needs at least two edges")
	}
	for i := 1; i < len(p.BinsCategories); i++ {
		if p.BinsCategories[i] <= p.BinsCategories[i-1] {
			return fmt.Errorf("preprocessing.bins_categories must be strictly increasing (index %d)", i)
		}
	}
	if n := len(p.BinsCategories) - 1; len(p.CategoryNames) != n {
		return fmt.Errorf("preprocessing.category_names has %d labels, bins define %d classes", len(p.CategoryNames), n)
	}
	if len(p.CategoricalMapping.RoomType) == 0 || len(p.CategoricalMapping.Neighbourhood) == 0 {
		return errors.New("preprocessing.categorical_mapping needs room_type and neighbourhood tables")
	}
	if err := injective("room_type", p.CategoricalMapping.RoomType); err != nil {
		return err
	}
	return injective("neighbourhood", p.CategoricalMapping.Neighbourhood)
}

// injective guards the code -> label inverse lookup.
func injective(name string, m map[string]int) error {
	seen := make(map[int]string, len(m))
	for label, code := range m {
		if other, ok := seen[code]; ok {
			return fmt.Errorf("preprocessing.categorical_mapping.%s: code %d used by %q and %q", name, code, other, label)
		}
		seen[code] = label
	}
	return nil
}

type ModelSection struct {
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
}

// Model is config_model.yaml.
type Model struct {
	Model    ModelSection `yaml:"model"`
	Seed     int          `yaml:"seed"`
	Features []string     `yaml:"features"`
	Target   string       `yaml:"target"`
	Paths    Paths        `yaml:"paths"`
}

func (c *Model) Validate() error {
	if len(c.Features) == 0 {
		return errors.New("features is empty")
	}
	seen := make(map[string]struct{}, len(c.Features))
	for _, f := range c.Features {
		if _, dup := seen[f]; dup {
			return fmt.Errorf("feature %q listed twice", f)
		}
		seen[f] = struct{}{}
	}
	if c.Model.Type != "random_forest" {
		return fmt.Errorf("model type %q not supported", c.Model.Type)
	}
	return nil
}

// API is api.yaml.
type API struct {
	ModelToUse   string `yaml:"model_to_use"`
	APIKeyHeader string `yaml:"api_key_header"`
	MaxBatchSize int    `yaml:"max_batch_size"`
}

func (c *API) Validate() error {
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = "X-API-Key"
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 1000
	}
	return nil
}

// Bundle is every document, loaded once at startup and read-only afterwards.
// Relative paths inside the documents are resolved against the project root
// of the document that names them, never the working directory.
type Bundle struct {
	Preprocessing Preprocessing
	Model         Model
	API           API
}

// LoadBundle resolves all three documents using Candidates(name, dirs...).
func LoadBundle(dirs ...string) (*Bundle, error) {
	b := &Bundle{}
	docs := []struct {
		name  string
		dst   interface{ Validate() error }
		paths []*string
	}{
		{PreprocessingFile, &b.Preprocessing, []*string{&b.Preprocessing.Paths.Raw, &b.Preprocessing.Paths.Clean}},
		{ModelFile, &b.Model, []*string{&b.Model.Paths.Model}},
		{APIFile, &b.API, []*string{&b.API.ModelToUse}},
	}
	for _, d := range docs {
		p, err := Load(Candidates(d.name, dirs...), d.dst)
		if err != nil {
			return nil, err
		}
		if err := d.dst.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		root := Root(p)
		for _, ref := range d.paths {
			*ref = resolve(root, *ref)
		}
	}
	return b, nil
}

// Root is the directory relative document paths start from: the document's
// directory, or its parent when the document sits in a "config" directory.
func Root(docPath string) string {
	dir := filepath.Dir(docPath)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if filepath.Base(dir) == "config" {
		return filepath.Dir(dir)
	}
	return dir
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
