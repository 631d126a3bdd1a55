package evidence

import "errors"

// Domain errors for evidence extraction.
var (
	ErrExtraction = errors.New("evidence extraction failed")
	ErrUncited    = errors.New("snippet lacks a citation")
	ErrNotFound   = errors.New("evidence not found")
)
