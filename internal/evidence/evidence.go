// Package evidence implements the extraction engine: mapping checklist
// requirements to cited snippets drawn from classified documents through
// a cached, retried oracle call. Snippets are append-only; corrections
// supersede rather than mutate so the audit history survives.
package evidence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/attestd/attest/pkg/confidence"
)

// ExtractorVersion participates in the cache key. Bump it when prompt
// composition or response parsing changes, so stale entries miss.
const ExtractorVersion = "v3"

// Method records how a snippet was produced.
type Method string

// Snippet methods.
const (
	MethodAutomatic Method = "automatic"
	MethodManual    Method = "manual"
)

// Status tracks a snippet's audit state.
type Status string

// Snippet statuses.
const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
)

// Coverage states for one requirement.
const (
	CoverageCovered = "covered"
	CoveragePartial = "partial"
	CoverageMissing = "missing"
	CoverageFailed  = "extraction_failed"
)

// Snippet is one cited excerpt believed to satisfy a requirement.
type Snippet struct {
	ID            uuid.UUID           `json:"id"`
	RequirementID string              `json:"requirement_id"`
	DocumentID    uuid.UUID           `json:"document_id"`
	Field         string              `json:"field,omitempty"`
	Value         string              `json:"value,omitempty"`
	Page          int                 `json:"page,omitempty"`
	Section       string              `json:"section,omitempty"`
	Text          string              `json:"text"`
	Confidence    float64             `json:"confidence"`
	Level         confidence.Level    `json:"level"`
	Breakdown     []confidence.Factor `json:"breakdown"`
	Rationale     string              `json:"rationale"`
	Method        Method              `json:"method"`
	Status        Status              `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// NewSnippet constructs a snippet, rejecting any without a resolvable
// citation: an uncited snippet is invalid at creation, not at render
// time.
func NewSnippet(requirementID string, documentID uuid.UUID, text string, method Method) (*Snippet, error) {
	if requirementID == "" {
		return nil, fmt.Errorf("%w: missing requirement id", ErrUncited)
	}
	if documentID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing source document", ErrUncited)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty snippet text", ErrUncited)
	}

	return &Snippet{
		ID:            uuid.New(),
		RequirementID: requirementID,
		DocumentID:    documentID,
		Text:          text,
		Method:        method,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// RequirementResult is the extraction outcome for one checklist item.
type RequirementResult struct {
	RequirementID string    `json:"requirement_id"`
	Coverage      string    `json:"coverage"`
	Error         string    `json:"error,omitempty"`
	Snippets      []Snippet `json:"snippets"`
}

// Record is the persisted evidence state for a session.
type Record struct {
	ExtractorVersion string              `json:"extractor_version"`
	Requirements     []RequirementResult `json:"requirements"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Result returns the record entry for a requirement id.
func (r *Record) Result(requirementID string) (*RequirementResult, bool) {
	for i := range r.Requirements {
		if r.Requirements[i].RequirementID == requirementID {
			return &r.Requirements[i], true
		}
	}
	return nil, false
}

// coverage derives the requirement coverage state from its active
// snippets: any high-confidence snippet covers, anything else present is
// partial, nothing is missing.
func coverage(snippets []Snippet) string {
	if len(snippets) == 0 {
		return CoverageMissing
	}
	for _, s := range snippets {
		if s.Status == StatusActive && s.Level == confidence.LevelHigh {
			return CoverageCovered
		}
	}
	return CoveragePartial
}
