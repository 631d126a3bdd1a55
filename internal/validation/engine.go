package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/evidence"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/internal/sessions"
)

// Engine runs the registered checks over a session's extracted evidence
// and persists the outcome. Each run supersedes the prior record.
type Engine struct {
	store    sessions.Store
	registry *methodology.Registry
	checks   []Check
	logger   *slog.Logger
}

// NewEngine creates a validation engine. Passing no checks installs the
// default set.
func NewEngine(store sessions.Store, registry *methodology.Registry, logger *slog.Logger, checks ...Check) *Engine {
	if len(checks) == 0 {
		checks = DefaultChecks()
	}
	return &Engine{
		store:    store,
		registry: registry,
		checks:   checks,
		logger:   logger.With("system", "validation"),
	}
}

// Run executes every check against the session's active evidence and
// persists the resulting record.
func (e *Engine) Run(ctx context.Context, sessionID uuid.UUID) (*Record, error) {
	session, err := e.store.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Locked {
		return nil, fmt.Errorf("%w: %s", sessions.ErrLocked, sessionID)
	}

	checklist, err := e.registry.Find(session.MethodologyID)
	if err != nil {
		return nil, err
	}

	ev := &evidence.Record{}
	if _, err := e.store.LoadRecord(ctx, sessionID, sessions.RecordEvidence, ev); err != nil {
		return nil, err
	}

	values := collect(ev)

	record := &Record{RunAt: time.Now().UTC()}
	for _, check := range e.checks {
		record.Results = append(record.Results, check.Run(values, checklist.Thresholds)...)
	}
	record.Summary = summarize(record.Results)

	if err := e.store.SaveRecord(ctx, sessionID, sessions.RecordValidation, record); err != nil {
		return nil, err
	}

	e.logger.InfoContext(
		ctx, "validation complete",
		"session", sessionID,
		"pass", record.Summary.Pass,
		"warning", record.Summary.Warning,
		"fail", record.Summary.Fail,
		"skipped", record.Summary.Skipped,
	)
	return record, nil
}

// collect indexes the active snippets' structured values by field name.
// Superseded snippets are history and contribute nothing.
func collect(ev *evidence.Record) Values {
	values := make(Values)
	for _, result := range ev.Requirements {
		for _, s := range result.Snippets {
			if s.Status != evidence.StatusActive || s.Field == "" || s.Value == "" {
				continue
			}
			field := strings.ToLower(s.Field)
			values[field] = append(values[field], Input{
				Field:      field,
				Value:      s.Value,
				DocumentID: s.DocumentID,
			})
		}
	}
	return values
}
