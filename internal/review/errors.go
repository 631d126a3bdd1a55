package review

import (
	"errors"

	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/internal/workflow"
	"github.com/attestd/attest/pkg/oracle"
)

// ErrValidation rejects malformed requests before any work happens.
var ErrValidation = errors.New("invalid request")

// Remediation maps a failure to the action that resolves it. Unmapped
// errors return an empty string.
func Remediation(err error) string {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return "check the session id; list sessions to see what exists"
	case errors.Is(err, sessions.ErrCorrupted):
		return "session state on disk is damaged; restore the session directory from backup or delete and re-create it"
	case errors.Is(err, sessions.ErrLocked), errors.Is(err, workflow.ErrSessionLocked):
		return "the session is completed and locked; create a new session to continue reviewing"
	case errors.Is(err, methodology.ErrUnknownMethodology):
		return "install the methodology checklist YAML into the registry directory"
	case errors.Is(err, workflow.ErrUnknownStage):
		return "use one of the defined workflow stages"
	case errors.Is(err, workflow.ErrStageNotOptional):
		return "only optional stages can be skipped; complete this one instead"
	case errors.Is(err, documents.ErrDuplicate):
		return "this content is already attached to the session; the first occurrence is retained"
	case errors.Is(err, documents.ErrFileTooLarge):
		return "split the file or raise discovery.max_file_size"
	case errors.Is(err, oracle.ErrRateLimited), errors.Is(err, oracle.ErrTimeout), errors.Is(err, oracle.ErrTransport):
		return "the extraction service is unavailable; re-run extraction once it recovers"
	case errors.Is(err, oracle.ErrMalformed):
		return "the extraction service returned unusable output; re-run extraction or adjust the requirement's prompt hint"
	case errors.Is(err, ErrValidation):
		return "correct the request parameters and try again"
	default:
		return ""
	}
}
