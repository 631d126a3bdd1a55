package sessions

import "errors"

// Domain errors for session operations.
var (
	ErrNotFound      = errors.New("session not found")
	ErrCorrupted     = errors.New("session state corrupted")
	ErrLocked        = errors.New("session is locked")
	ErrInvalidSource = errors.New("invalid document source")
)
