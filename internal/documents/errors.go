package documents

import "errors"

// Domain errors for document operations.
var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicate    = errors.New("duplicate document content")
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	ErrUnreadable   = errors.New("file could not be read")
)
