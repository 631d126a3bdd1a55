package workflow

import "errors"

// Domain errors for workflow operations.
var (
	ErrUnknownStage     = errors.New("unknown workflow stage")
	ErrStageNotOptional = errors.New("stage cannot be skipped")
	ErrSessionLocked    = errors.New("session is completed and locked")
)
