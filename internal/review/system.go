// Package review is the orchestration surface over the review engine:
// session lifecycle, stage transitions, and the end-to-end pipeline that
// carries a session from discovery through the findings report. Callers
// (the CLI, embedders) talk to this package; the domain packages never
// call each other directly.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/evidence"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/internal/report"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/internal/validation"
	"github.com/attestd/attest/internal/workflow"
)

// System wires the review engine's components behind one surface.
type System struct {
	store      sessions.Store
	registry   *methodology.Registry
	machine    *workflow.Machine
	discoverer *documents.Discoverer
	evidence   *evidence.Engine
	validator  *validation.Engine
	reporter   *report.Generator
	logger     *slog.Logger
}

// New assembles the review system.
func New(
	store sessions.Store,
	registry *methodology.Registry,
	machine *workflow.Machine,
	discoverer *documents.Discoverer,
	ev *evidence.Engine,
	validator *validation.Engine,
	reporter *report.Generator,
	logger *slog.Logger,
) *System {
	return &System{
		store:      store,
		registry:   registry,
		machine:    machine,
		discoverer: discoverer,
		evidence:   ev,
		validator:  validator,
		reporter:   reporter,
		logger:     logger.With("system", "review"),
	}
}

// CreateParams carries session creation inputs.
type CreateParams struct {
	ProjectName       string
	ExternalProjectID string
	MethodologyID     string
	CreditingPeriod   string
}

// CreateSession validates the parameters, creates the session, and opens
// the setup stage.
func (s *System) CreateSession(ctx context.Context, params CreateParams) (*sessions.Session, error) {
	if params.ProjectName == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if _, err := s.registry.Find(params.MethodologyID); err != nil {
		return nil, err
	}

	session := &sessions.Session{
		ProjectName:       params.ProjectName,
		ExternalProjectID: params.ExternalProjectID,
		MethodologyID:     params.MethodologyID,
		CreditingPeriod:   params.CreditingPeriod,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	if _, err := s.machine.Advance(ctx, session.ID, workflow.StageSetup); err != nil {
		return nil, err
	}
	return s.store.Find(ctx, session.ID)
}

// AddSource attaches a document source to the session. Sources are
// append-only provenance; attaching one never copies content.
func (s *System) AddSource(ctx context.Context, sessionID uuid.UUID, kind sessions.SourceKind, locator, label string) (*sessions.Session, error) {
	switch kind {
	case sessions.SourceUpload, sessions.SourcePath, sessions.SourceLink:
	default:
		return nil, fmt.Errorf("%w: %v", sessions.ErrInvalidSource, kind)
	}
	if locator == "" {
		return nil, fmt.Errorf("%w: source locator is required", ErrValidation)
	}

	return s.store.Mutate(ctx, sessionID, func(session *sessions.Session) error {
		if session.Locked {
			return fmt.Errorf("%w: %s", sessions.ErrLocked, sessionID)
		}
		for _, src := range session.Sources {
			if src.Kind == kind && src.Locator == locator {
				return fmt.Errorf("%w: source %s already attached", documents.ErrDuplicate, locator)
			}
		}
		session.Sources = append(session.Sources, sessions.DocumentSource{
			ID:      uuid.New(),
			Kind:    kind,
			Locator: locator,
			Label:   label,
			AddedAt: time.Now().UTC(),
		})
		return nil
	})
}

// Discover runs the discovery stage: advance, scan, complete. Unmet
// dependency warnings pass through to the caller.
func (s *System) Discover(ctx context.Context, sessionID uuid.UUID) (*documents.Inventory, []workflow.Warning, error) {
	warnings, err := s.machine.Advance(ctx, sessionID, workflow.StageDiscovery)
	if err != nil {
		return nil, nil, err
	}

	inv, err := s.discoverer.Discover(ctx, sessionID)
	if err != nil {
		return nil, warnings, err
	}

	if err := s.machine.Complete(ctx, sessionID, workflow.StageDiscovery); err != nil {
		return nil, warnings, err
	}
	return inv, warnings, nil
}

// Extract runs the extraction stage over every checklist requirement.
func (s *System) Extract(ctx context.Context, sessionID uuid.UUID) (*evidence.Record, []workflow.Warning, error) {
	warnings, err := s.machine.Advance(ctx, sessionID, workflow.StageExtraction)
	if err != nil {
		return nil, nil, err
	}

	record, err := s.evidence.ExtractAll(ctx, sessionID)
	if err != nil {
		return nil, warnings, err
	}

	if err := s.machine.Complete(ctx, sessionID, workflow.StageExtraction); err != nil {
		return nil, warnings, err
	}
	return record, warnings, nil
}

// ExtractRequirement re-runs extraction for a single requirement, merging
// its result into the persisted evidence record without touching sibling
// requirements. The extraction stage is re-entered but not auto-completed:
// a partial run is not a finished stage.
func (s *System) ExtractRequirement(ctx context.Context, sessionID uuid.UUID, requirementID string) (*evidence.RequirementResult, []workflow.Warning, error) {
	if requirementID == "" {
		return nil, nil, fmt.Errorf("%w: requirement id is required", ErrValidation)
	}

	warnings, err := s.machine.Advance(ctx, sessionID, workflow.StageExtraction)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.evidence.Extract(ctx, sessionID, requirementID)
	if err != nil {
		return nil, warnings, err
	}
	return result, warnings, nil
}

// Validate runs the cross-document validation stage.
func (s *System) Validate(ctx context.Context, sessionID uuid.UUID) (*validation.Record, []workflow.Warning, error) {
	warnings, err := s.machine.Advance(ctx, sessionID, workflow.StageValidation)
	if err != nil {
		return nil, nil, err
	}

	record, err := s.validator.Run(ctx, sessionID)
	if err != nil {
		return nil, warnings, err
	}

	if err := s.machine.Complete(ctx, sessionID, workflow.StageValidation); err != nil {
		return nil, warnings, err
	}
	return record, warnings, nil
}

// Report runs the report stage and returns the written file path.
func (s *System) Report(ctx context.Context, sessionID uuid.UUID, format report.Format) (string, []workflow.Warning, error) {
	warnings, err := s.machine.Advance(ctx, sessionID, workflow.StageReport)
	if err != nil {
		return "", nil, err
	}

	path, err := s.reporter.Generate(ctx, sessionID, format)
	if err != nil {
		return "", warnings, err
	}

	if err := s.machine.Complete(ctx, sessionID, workflow.StageReport); err != nil {
		return "", warnings, err
	}
	return path, warnings, nil
}

// Advance opens a stage directly, surfacing soft-gate warnings.
func (s *System) Advance(ctx context.Context, sessionID uuid.UUID, stage workflow.Stage) ([]workflow.Warning, error) {
	return s.machine.Advance(ctx, sessionID, stage)
}

// Complete marks a stage completed.
func (s *System) Complete(ctx context.Context, sessionID uuid.UUID, stage workflow.Stage) error {
	return s.machine.Complete(ctx, sessionID, stage)
}

// Skip marks an optional stage skipped.
func (s *System) Skip(ctx context.Context, sessionID uuid.UUID, stage workflow.Stage) error {
	return s.machine.Skip(ctx, sessionID, stage)
}

// Status describes where a session stands.
type Status struct {
	Session *sessions.Session `json:"session"`
	Next    workflow.Stage    `json:"next_recommended,omitempty"`
	Done    bool              `json:"done"`
}

// SessionStatus returns the session with its recommended next stage.
func (s *System) SessionStatus(ctx context.Context, sessionID uuid.UUID) (*Status, error) {
	session, err := s.store.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next, more := workflow.NextRecommended(session)
	return &Status{Session: session, Next: next, Done: !more}, nil
}

// ListSessions returns every stored session. Corruption anywhere
// surfaces as an error rather than a shortened list.
func (s *System) ListSessions(ctx context.Context) ([]sessions.Session, error) {
	return s.store.List(ctx)
}

// Annotate appends a reviewer note, optionally scoped to a stage.
func (s *System) Annotate(ctx context.Context, sessionID uuid.UUID, stage, author, text string) (*sessions.Annotation, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: annotation text is required", ErrValidation)
	}
	if stage != "" {
		if _, err := workflow.ParseStage(stage); err != nil {
			return nil, err
		}
	}

	record := &sessions.AnnotationRecord{}
	if _, err := s.store.LoadRecord(ctx, sessionID, sessions.RecordAnnotations, record); err != nil {
		return nil, err
	}

	note := sessions.Annotation{
		ID:        uuid.New(),
		Stage:     stage,
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	record.Annotations = append(record.Annotations, note)

	if err := s.store.SaveRecord(ctx, sessionID, sessions.RecordAnnotations, record); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "annotation added", "session", sessionID, "stage", stage)
	return &note, nil
}

// Reclassify applies a manual document classification correction.
func (s *System) Reclassify(ctx context.Context, sessionID, documentID uuid.UUID, label string) (*documents.Document, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", ErrValidation)
	}
	return s.discoverer.Reclassify(ctx, sessionID, documentID, label)
}

// OverrideEvidence records a manual snippet, superseding a prior one
// when supersedes is non-nil.
func (s *System) OverrideEvidence(
	ctx context.Context,
	sessionID uuid.UUID,
	requirementID string,
	documentID uuid.UUID,
	text string,
	page int,
	section string,
	supersedes uuid.UUID,
) (*evidence.Snippet, error) {
	return s.evidence.Override(ctx, sessionID, requirementID, documentID, text, page, section, supersedes)
}
