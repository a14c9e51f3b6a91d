package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchema           = errors.New("schema error")
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidHorizon   = errors.New("invalid horizon")
	ErrNotFound         = errors.New("model not found")
	ErrArtifactLoad     = errors.New("artifact load error")
)

// SchemaError means a required canonical column is absent after renaming.
type SchemaError struct {
	Source string
	Field  string
}

func (e *SchemaError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("schema: required column %q missing", e.Field)
	}
	return fmt.Sprintf("schema: %s: required column %q missing", e.Source, e.Field)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ParseError describes one dropped or degraded row. It is counted, never returned from a batch.
type ParseError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
}

// MissingParameterError lists absent key components of a query.
type MissingParameterError struct {
	Params []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("Missing %s parameter.", strings.Join(e.Params, ", "))
}

func (e *MissingParameterError) Is(target error) bool { return target == ErrMissingParameter }

// InvalidHorizonError rejects a non-positive or oversized horizon.
type InvalidHorizonError struct {
	Days int
	Max  int
}

func (e *InvalidHorizonError) Error() string {
	if e.Days > 0 && e.Max > 0 {
		return fmt.Sprintf("Number of days must be at most %d, got %d.", e.Max, e.Days)
	}
	return "Number of days must be a positive integer."
}

func (e *InvalidHorizonError) Is(target error) bool { return target == ErrInvalidHorizon }

// NotFoundError means the key is well formed but no model is loaded for it.
type NotFoundError struct {
	Key SeriesKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No model found for %s. Please train a model for this combination.", e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ArtifactLoadError wraps a per-file failure while building the registry.
type ArtifactLoadError struct {
	Name string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load artifact %s: %v", e.Name, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

func (e *ArtifactLoadError) Is(target error) bool { return target == ErrArtifactLoad }
