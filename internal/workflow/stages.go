// Package workflow implements the stage-orchestrated state machine that
// sequences a review session: a directed acyclic graph of stages with
// soft-gated entry, explicit completion, and forward-only status
// transitions. It is the only mutation surface for session progress.
package workflow

import (
	"encoding/json"
	"slices"
)

// Stage identifies one workflow stage.
type Stage string

// Review stages in recommended order.
const (
	StageSetup       Stage = "setup"
	StageDiscovery   Stage = "discovery"
	StageExtraction  Stage = "extraction"
	StageValidation  Stage = "validation"
	StageReport      Stage = "report"
	StageHumanReview Stage = "human_review"
	StageCompletion  Stage = "completion"
)

// ordered lists every stage in recommended execution order.
var ordered = []Stage{
	StageSetup,
	StageDiscovery,
	StageExtraction,
	StageValidation,
	StageReport,
	StageHumanReview,
	StageCompletion,
}

// dependencies maps each stage to the stages that should complete first.
// Entry is soft-gated: unmet dependencies produce warnings, not refusals.
var dependencies = map[Stage][]Stage{
	StageDiscovery:   {StageSetup},
	StageExtraction:  {StageDiscovery},
	StageValidation:  {StageExtraction},
	StageReport:      {StageValidation},
	StageHumanReview: {StageReport},
	StageCompletion:  {StageHumanReview},
}

// optional marks stages that may be skipped rather than completed.
var optional = map[Stage]bool{
	StageHumanReview: true,
}

// Stages returns every stage in recommended order.
func Stages() []Stage {
	return slices.Clone(ordered)
}

// Dependencies returns the stages that should complete before stage.
func Dependencies(stage Stage) []Stage {
	return slices.Clone(dependencies[stage])
}

// Optional reports whether stage may be skipped.
func Optional(stage Stage) bool {
	return optional[stage]
}

// ParseStage validates a string as a known stage.
// Returns ErrUnknownStage if the value is not recognized.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(ordered, v) {
		return "", ErrUnknownStage
	}
	return v, nil
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Stage(raw)
	if !slices.Contains(ordered, v) {
		return ErrUnknownStage
	}
	*s = v
	return nil
}
