// Package report assembles the findings report for a review session:
// project metadata, the document inventory, per-requirement evidence
// coverage with citations, cross-validation outcomes, and reviewer
// annotations. Reports render to markdown for humans or JSON for
// downstream tooling and land in the session's directory.
package report

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/evidence"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/internal/validation"
)

// Format selects the report rendering.
type Format string

// Report formats.
const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ErrUnknownFormat rejects formats outside the supported set.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat validates a string as a report format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatMarkdown, FormatJSON:
		return Format(s), nil
	default:
		return "", ErrUnknownFormat
	}
}

// DocumentEntry is one inventory line in the report.
type DocumentEntry struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	Label      string    `json:"label"`
	Method     string    `json:"method"`
	Confidence float64   `json:"confidence"`
	Size       string    `json:"size"`
	Pages      int       `json:"pages,omitempty"`
}

// CitationEntry is one snippet citation under a requirement.
type CitationEntry struct {
	DocumentID uuid.UUID `json:"document_id"`
	Document   string    `json:"document"`
	Page       int       `json:"page,omitempty"`
	Section    string    `json:"section,omitempty"`
	Excerpt    string    `json:"excerpt"`
	Confidence float64   `json:"confidence"`
	Level      string    `json:"level"`
	Method     string    `json:"method"`
}

// RequirementEntry is the coverage line for one checklist requirement.
type RequirementEntry struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Category  string          `json:"category"`
	Coverage  string          `json:"coverage"`
	Error     string          `json:"error,omitempty"`
	Citations []CitationEntry `json:"citations"`
}

// Report is the assembled findings document.
type Report struct {
	SessionID         uuid.UUID `json:"session_id"`
	ProjectName       string    `json:"project_name"`
	ExternalProjectID string    `json:"external_project_id,omitempty"`
	MethodologyID     string    `json:"methodology_id"`
	MethodologyName   string    `json:"methodology_name"`
	CreditingPeriod   string    `json:"crediting_period,omitempty"`
	GeneratedAt       time.Time `json:"generated_at"`

	Stats        sessions.SessionStats  `json:"stats"`
	Documents    []DocumentEntry        `json:"documents"`
	Duplicates   []documents.Duplicate  `json:"duplicates,omitempty"`
	FileErrors   []documents.FileError  `json:"file_errors,omitempty"`
	Requirements []RequirementEntry     `json:"requirements"`
	Validation   validation.Summary     `json:"validation"`
	Checks       []validation.Result    `json:"checks"`
	Annotations  []sessions.Annotation  `json:"annotations,omitempty"`
}

// active reports whether a snippet should appear as current evidence.
func active(s evidence.Snippet) bool {
	return s.Status == evidence.StatusActive
}
