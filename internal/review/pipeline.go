package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/attestd/attest/internal/report"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/internal/validation"
	"github.com/attestd/attest/internal/workflow"
)

// State bag keys for the pipeline graph.
const (
	keySessionID  = "session_id"
	keyFormat     = "format"
	keyWarnings   = "warnings"
	keyValidation = "validation"
	keyReportPath = "report_path"
)

// Outcome summarizes one full pipeline run.
type Outcome struct {
	SessionID  uuid.UUID           `json:"session_id"`
	Warnings   []workflow.Warning  `json:"warnings,omitempty"`
	Validation validation.Summary  `json:"validation"`
	ReportPath string              `json:"report_path"`
	Stats      sessions.SessionStats `json:"stats"`
}

// Run drives a session through discovery, extraction, validation, and
// reporting as one state graph. Validation outcomes that flag the
// submission route through an annotation step before the report so the
// report always carries the review marker.
func (s *System) Run(ctx context.Context, sessionID uuid.UUID, format report.Format) (*Outcome, error) {
	if _, err := report.ParseFormat(string(format)); err != nil {
		return nil, err
	}

	graph, err := s.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initial := state.New(nil)
	initial = initial.Set(keySessionID, sessionID)
	initial = initial.Set(keyFormat, format)
	initial = initial.Set(keyWarnings, []workflow.Warning{})

	final, err := graph.Execute(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return s.extractOutcome(ctx, sessionID, final)
}

func (s *System) buildGraph() (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("attest-review")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	if err := graph.AddNode("discover", s.discoverNode()); err != nil {
		return nil, err
	}
	if err := graph.AddNode("extract", s.extractNode()); err != nil {
		return nil, err
	}
	if err := graph.AddNode("validate", s.validateNode()); err != nil {
		return nil, err
	}
	if err := graph.AddNode("flag", s.flagNode()); err != nil {
		return nil, err
	}
	if err := graph.AddNode("report", s.reportNode()); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("discover", "extract", nil); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("extract", "validate", nil); err != nil {
		return nil, err
	}

	// validate -> flag (when any check demands human attention)
	if err := graph.AddEdge("validate", "flag", flaggedForReview); err != nil {
		return nil, err
	}

	// validate -> report (clean run)
	if err := graph.AddEdge("validate", "report", state.Not(flaggedForReview)); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("flag", "report", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("discover"); err != nil {
		return nil, err
	}
	if err := graph.SetExitPoint("report"); err != nil {
		return nil, err
	}

	return graph, nil
}

func (s *System) discoverNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, st state.State) (state.State, error) {
		sessionID, err := stateSessionID(st)
		if err != nil {
			return st, fmt.Errorf("discover: %w", err)
		}

		_, warnings, err := s.Discover(ctx, sessionID)
		if err != nil {
			return st, fmt.Errorf("discover: %w", err)
		}

		return appendWarnings(st, warnings), nil
	})
}

func (s *System) extractNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, st state.State) (state.State, error) {
		sessionID, err := stateSessionID(st)
		if err != nil {
			return st, fmt.Errorf("extract: %w", err)
		}

		_, warnings, err := s.Extract(ctx, sessionID)
		if err != nil {
			return st, fmt.Errorf("extract: %w", err)
		}

		return appendWarnings(st, warnings), nil
	})
}

func (s *System) validateNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, st state.State) (state.State, error) {
		sessionID, err := stateSessionID(st)
		if err != nil {
			return st, fmt.Errorf("validate: %w", err)
		}

		record, warnings, err := s.Validate(ctx, sessionID)
		if err != nil {
			return st, fmt.Errorf("validate: %w", err)
		}

		st = appendWarnings(st, warnings)
		st = st.Set(keyValidation, record.Summary)
		return st, nil
	})
}

// flagNode annotates the session so the flagged state survives into the
// report and the session history.
func (s *System) flagNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, st state.State) (state.State, error) {
		sessionID, err := stateSessionID(st)
		if err != nil {
			return st, fmt.Errorf("flag: %w", err)
		}

		summary, _ := stateSummary(st)
		note := fmt.Sprintf(
			"validation flagged %d check(s) for human review (%d warning, %d fail)",
			summary.FlaggedForReview, summary.Warning, summary.Fail,
		)
		if _, err := s.Annotate(ctx, sessionID, string(workflow.StageValidation), "pipeline", note); err != nil {
			return st, fmt.Errorf("flag: %w", err)
		}

		return st, nil
	})
}

func (s *System) reportNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, st state.State) (state.State, error) {
		sessionID, err := stateSessionID(st)
		if err != nil {
			return st, fmt.Errorf("report: %w", err)
		}

		format := report.FormatMarkdown
		if val, ok := st.Get(keyFormat); ok {
			if f, ok := val.(report.Format); ok {
				format = f
			}
		}

		path, warnings, err := s.Report(ctx, sessionID, format)
		if err != nil {
			return st, fmt.Errorf("report: %w", err)
		}

		st = appendWarnings(st, warnings)
		st = st.Set(keyReportPath, path)
		return st, nil
	})
}

func (s *System) extractOutcome(ctx context.Context, sessionID uuid.UUID, st state.State) (*Outcome, error) {
	pathVal, ok := st.Get(keyReportPath)
	if !ok {
		return nil, fmt.Errorf("missing %s in final state", keyReportPath)
	}
	path, ok := pathVal.(string)
	if !ok {
		return nil, fmt.Errorf("%s is not string", keyReportPath)
	}

	summary, _ := stateSummary(st)

	var warnings []workflow.Warning
	if val, ok := st.Get(keyWarnings); ok {
		warnings, _ = val.([]workflow.Warning)
	}

	session, err := s.store.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		SessionID:  sessionID,
		Warnings:   warnings,
		Validation: summary,
		ReportPath: path,
		Stats:      session.Stats,
	}, nil
}

func flaggedForReview(st state.State) bool {
	summary, ok := stateSummary(st)
	return ok && summary.FlaggedForReview > 0
}

func stateSummary(st state.State) (validation.Summary, bool) {
	val, ok := st.Get(keyValidation)
	if !ok {
		return validation.Summary{}, false
	}
	summary, ok := val.(validation.Summary)
	return summary, ok
}

func stateSessionID(st state.State) (uuid.UUID, error) {
	val, ok := st.Get(keySessionID)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing %s in state", keySessionID)
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("%s is not uuid.UUID", keySessionID)
	}
	return id, nil
}

func appendWarnings(st state.State, warnings []workflow.Warning) state.State {
	if len(warnings) == 0 {
		return st
	}
	var existing []workflow.Warning
	if val, ok := st.Get(keyWarnings); ok {
		existing, _ = val.([]workflow.Warning)
	}
	return st.Set(keyWarnings, append(existing, warnings...))
}
