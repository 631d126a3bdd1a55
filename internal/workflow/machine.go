package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/sessions"
)

// Warning describes an unmet soft dependency reported by Advance.
type Warning struct {
	Stage      Stage  `json:"stage"`
	Dependency Stage  `json:"dependency"`
	Message    string `json:"message"`
}

// Machine sequences stage transitions for sessions. All progress
// mutations go through the session store's per-session lock; nothing else
// writes workflow progress.
type Machine struct {
	store  sessions.Store
	logger *slog.Logger
}

// NewMachine creates a workflow machine over the given store.
func NewMachine(store sessions.Store, logger *slog.Logger) *Machine {
	return &Machine{
		store:  store,
		logger: logger.With("system", "workflow"),
	}
}

// Advance moves a stage to in_progress. Entry is always allowed; unmet
// dependencies come back as warnings for the caller to weigh. A completed
// stage may be revisited, but a stage never returns to pending.
func (m *Machine) Advance(ctx context.Context, sessionID uuid.UUID, stage Stage) ([]Warning, error) {
	var warnings []Warning

	session, err := m.store.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Locked {
		return nil, fmt.Errorf("%w: %s", ErrSessionLocked, sessionID)
	}

	for _, dep := range Dependencies(stage) {
		status := session.Progress[string(dep)].Status
		if status != sessions.StatusCompleted && status != sessions.StatusSkipped {
			warnings = append(warnings, Warning{
				Stage:      stage,
				Dependency: dep,
				Message:    fmt.Sprintf("stage %s expects %s to complete first (currently %s)", stage, dep, statusOrPending(status)),
			})
		}
	}

	now := time.Now().UTC()
	update := sessions.StageProgress{Status: sessions.StatusInProgress}
	if session.Progress[string(stage)].StartedAt == nil {
		update.StartedAt = &now
	}

	if _, err := m.store.UpdateProgress(ctx, sessionID, sessions.WorkflowProgress{
		string(stage): update,
	}); err != nil {
		return nil, err
	}

	m.logger.InfoContext(
		ctx, "stage advanced",
		"session", sessionID,
		"stage", stage,
		"warnings", len(warnings),
	)
	return warnings, nil
}

// Complete marks a stage completed. Completing the completion stage locks
// the session against further transitions.
func (m *Machine) Complete(ctx context.Context, sessionID uuid.UUID, stage Stage) error {
	now := time.Now().UTC()

	_, err := m.store.Mutate(ctx, sessionID, func(session *sessions.Session) error {
		if session.Locked {
			return fmt.Errorf("%w: %s", ErrSessionLocked, sessionID)
		}

		session.Progress.Merge(sessions.WorkflowProgress{
			string(stage): {Status: sessions.StatusCompleted, CompletedAt: &now},
		})

		if stage == StageCompletion {
			session.Locked = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "stage completed", "session", sessionID, "stage", stage)
	return nil
}

// Skip marks an optional stage skipped. Required stages cannot be
// skipped.
func (m *Machine) Skip(ctx context.Context, sessionID uuid.UUID, stage Stage) error {
	if !Optional(stage) {
		return fmt.Errorf("%w: %s", ErrStageNotOptional, stage)
	}

	now := time.Now().UTC()
	_, err := m.store.Mutate(ctx, sessionID, func(session *sessions.Session) error {
		if session.Locked {
			return fmt.Errorf("%w: %s", ErrSessionLocked, sessionID)
		}
		session.Progress.Merge(sessions.WorkflowProgress{
			string(stage): {Status: sessions.StatusSkipped, CompletedAt: &now},
		})
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "stage skipped", "session", sessionID, "stage", stage)
	return nil
}

// NextRecommended returns the lowest-order stage that is neither
// completed nor skipped. Guidance only; it enforces nothing. The second
// return is false when every stage is done.
func NextRecommended(session *sessions.Session) (Stage, bool) {
	for _, stage := range Stages() {
		status := session.Progress[string(stage)].Status
		if status != sessions.StatusCompleted && status != sessions.StatusSkipped {
			return stage, true
		}
	}
	return "", false
}

func statusOrPending(s sessions.StageStatus) sessions.StageStatus {
	if s == "" {
		return sessions.StatusPending
	}
	return s
}
