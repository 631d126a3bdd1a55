// Package convert defines the document-to-text conversion boundary.
// Binary format handling is delegated to converters; the engine consumes
// their output as plain text plus optional rendered page images and never
// parses layouts itself.
package convert

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned when no converter handles a file.
var ErrUnsupported = errors.New("unsupported document format")

// Result is the converted form of one document.
// Text may be empty for image-only formats, in which case PageImages
// carry rendered pages as data URIs for vision-based extraction.
type Result struct {
	Text       string
	PageCount  int
	PageImages []string
}

// Converter turns one document format into extractable content.
type Converter interface {
	// Supports reports whether this converter handles the file at path.
	Supports(path string) bool
	// Convert produces the extractable form of the file at path.
	Convert(ctx context.Context, path string) (*Result, error)
}

// Pipeline tries converters in registration order and applies the first
// that supports the file.
type Pipeline struct {
	converters []Converter
}

// NewPipeline creates a conversion pipeline over the given converters.
func NewPipeline(converters ...Converter) *Pipeline {
	return &Pipeline{converters: converters}
}

// Supports reports whether any registered converter handles path.
func (p *Pipeline) Supports(path string) bool {
	for _, c := range p.converters {
		if c.Supports(path) {
			return true
		}
	}
	return false
}

// Convert dispatches to the first converter that supports path.
func (p *Pipeline) Convert(ctx context.Context, path string) (*Result, error) {
	for _, c := range p.converters {
		if c.Supports(path) {
			return c.Convert(ctx, path)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}
