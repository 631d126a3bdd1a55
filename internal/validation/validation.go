// Package validation implements cross-document consistency checks over
// extracted evidence: date alignment, identity matching, identifier
// consistency, and area agreement. Thresholds come from the session's
// methodology, never from engine configuration. Checks degrade to a
// skipped result when their inputs are absent; only checks that actually
// ran can flag a submission for review.
package validation

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies one consistency check family.
type Kind string

// Check kinds.
const (
	KindDateAlignment         Kind = "date_alignment"
	KindIdentityMatch         Kind = "identity_match"
	KindIdentifierConsistency Kind = "identifier_consistency"
	KindAreaConsistency       Kind = "area_consistency"
)

// Status is the outcome of one check run.
type Status string

// Check outcomes.
const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
	StatusSkipped Status = "skipped"
)

// Input is one evidence value a check consumed, with its provenance.
type Input struct {
	Field      string    `json:"field"`
	Value      string    `json:"value"`
	DocumentID uuid.UUID `json:"document_id"`
}

// Result is the outcome of one check. Delta carries the measured
// difference (days, relative area difference); Similarity carries the
// best pairwise score for identity checks. Either may be zero when the
// check kind has no use for it.
type Result struct {
	ID               uuid.UUID `json:"id"`
	Kind             Kind      `json:"kind"`
	Inputs           []Input   `json:"inputs"`
	Delta            float64   `json:"delta,omitempty"`
	Similarity       float64   `json:"similarity,omitempty"`
	Status           Status    `json:"status"`
	FlaggedForReview bool      `json:"flagged_for_review"`
	Detail           string    `json:"detail"`
	RunAt            time.Time `json:"run_at"`
}

// Summary aggregates one validation run.
type Summary struct {
	Pass             int `json:"pass"`
	Warning          int `json:"warning"`
	Fail             int `json:"fail"`
	Skipped          int `json:"skipped"`
	FlaggedForReview int `json:"flagged_for_review"`
}

// Record is the persisted validation state for a session. A new run
// replaces the prior record wholesale.
type Record struct {
	Results []Result  `json:"results"`
	Summary Summary   `json:"summary"`
	RunAt   time.Time `json:"run_at"`
}

// Values indexes evidence inputs by field name, lowercased on load.
// Canonical names come from the extraction prompt's field glossary.
type Values map[string][]Input

// finalize stamps identity and review flags onto a freshly built result.
// Absent-input skips are informational, not review triggers.
func finalize(r Result) Result {
	r.ID = uuid.New()
	r.RunAt = time.Now().UTC()
	r.FlaggedForReview = r.Status == StatusWarning || r.Status == StatusFail
	return r
}

func summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			s.Pass++
		case StatusWarning:
			s.Warning++
		case StatusFail:
			s.Fail++
		case StatusSkipped:
			s.Skipped++
		}
		if r.FlaggedForReview {
			s.FlaggedForReview++
		}
	}
	return s
}
