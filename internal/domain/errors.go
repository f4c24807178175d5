package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrConfigNotFound  = errors.New("config not found")
	ErrSchema          = errors.New("schema error")
	ErrValidation      = errors.New("validation error")
	ErrDataFormat      = errors.New("data format error")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownClass    = errors.New("unknown class")
	ErrModelNotFound   = errors.New("model not found")
	ErrFeatureMismatch = errors.New("feature mismatch")
	ErrUnauthorized    = errors.New("unauthorized")
)

// ValidationError carries per-field messages keyed by JSON path (e.g. "data[1].tv").
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return e.Msg + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnknownCategoryError means a categorical value has no entry in its mapping table.
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q in column %q", e.Value, e.Column)
}

func (e *UnknownCategoryError) Is(target error) bool { return target == ErrUnknownCategory }

// UnknownClassError means the classifier produced a class with no label.
type UnknownClassError struct{ Class int }

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("unknown class %d", e.Class)
}

func (e *UnknownClassError) Is(target error) bool { return target == ErrUnknownClass }
