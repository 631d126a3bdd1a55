// Package sessions implements the review session domain: the session
// model, its workflow progress, and a durable file-backed store with one
// directory per session. Each record category (session metadata, document
// inventory, evidence, validation results) persists as its own file so a
// corrupt record in one category never prevents reading the others.
package sessions

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus is the lifecycle state of one workflow stage.
type StageStatus string

// Stage statuses. Completed stages may be revisited (back to in_progress)
// but never return to pending.
const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusCompleted  StageStatus = "completed"
	StatusSkipped    StageStatus = "skipped"
)

// SourceKind tags a document source variant.
type SourceKind string

// Document source variants.
const (
	SourceUpload SourceKind = "upload"
	SourcePath   SourceKind = "path"
	SourceLink   SourceKind = "link"
)

// DocumentSource is a provenance record for attached documents. It never
// holds content, only how to locate it. Sources are append-only.
type DocumentSource struct {
	ID      uuid.UUID  `json:"id"`
	Kind    SourceKind `json:"kind"`
	Locator string     `json:"locator"`
	Label   string     `json:"label,omitempty"`
	AddedAt time.Time  `json:"added_at"`
}

// StageProgress tracks one stage's status and timing.
type StageProgress struct {
	Status      StageStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// WorkflowProgress maps stage id to progress. Only the workflow machine
// mutates it, through the store's merge semantics.
type WorkflowProgress map[string]StageProgress

// SessionStats summarizes review outcomes for quick display.
type SessionStats struct {
	DocumentsFound      int `json:"documents_found"`
	DuplicatesSkipped   int `json:"duplicates_skipped"`
	RequirementsCovered int `json:"requirements_covered"`
	RequirementsPartial int `json:"requirements_partial"`
	RequirementsMissing int `json:"requirements_missing"`
}

// Session is one review instance. ID is immutable once assigned.
type Session struct {
	ID                uuid.UUID        `json:"id"`
	ProjectName       string           `json:"project_name"`
	ExternalProjectID string           `json:"external_project_id,omitempty"`
	MethodologyID     string           `json:"methodology_id"`
	CreditingPeriod   string           `json:"crediting_period,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Locked            bool             `json:"locked"`
	Progress          WorkflowProgress `json:"workflow_progress"`
	Sources           []DocumentSource `json:"sources"`
	Stats             SessionStats     `json:"stats"`
}

// Merge applies overlay onto p. Only stages named in overlay change, and
// within a stage only non-zero fields overwrite, so concurrent updates to
// sibling stages never clobber each other.
func (p WorkflowProgress) Merge(overlay WorkflowProgress) {
	for stage, update := range overlay {
		current := p[stage]
		if update.Status != "" {
			current.Status = update.Status
		}
		if update.StartedAt != nil {
			current.StartedAt = update.StartedAt
		}
		if update.CompletedAt != nil {
			current.CompletedAt = update.CompletedAt
		}
		p[stage] = current
	}
}
