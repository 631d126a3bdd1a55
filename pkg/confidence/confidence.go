// Package confidence implements the shared weighted-factor scoring model
// used by evidence extraction and cross-validation. Scores are always
// accompanied by a per-factor breakdown so human reviewers can see the
// rationale behind an aggregate value.
package confidence

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Level represents a categorical assessment of certainty.
type Level string

// Assessment levels.
const (
	LevelHigh   Level = "HIGH"
	LevelMedium Level = "MEDIUM"
	LevelLow    Level = "LOW"
)

const weightTolerance = 1e-9

// Standard factor names used by the extraction engine.
const (
	FactorCitation      = "citation_specificity"
	FactorRelevance     = "textual_relevance"
	FactorCorroboration = "cross_document_corroboration"
	FactorPrecedent     = "prior_precedent_alignment"
)

// Factor is one named contribution to an aggregate score.
// Weight and Score must both lie in [0,1].
type Factor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
}

// Assessment is the output of the model: the aggregate value, its
// qualitative level, and the full factor breakdown.
type Assessment struct {
	Value     float64  `json:"value"`
	Level     Level    `json:"level"`
	Breakdown []Factor `json:"breakdown"`
	Rationale string   `json:"rationale"`
}

// Model holds a validated weight configuration keyed by factor name.
// Weights are configuration, not call-site constants.
type Model struct {
	weights map[string]float64
}

// DefaultExtractionWeights returns the weight configuration used for
// evidence snippet scoring when none is supplied.
func DefaultExtractionWeights() map[string]float64 {
	return map[string]float64{
		FactorCitation:      0.35,
		FactorRelevance:     0.35,
		FactorCorroboration: 0.20,
		FactorPrecedent:     0.10,
	}
}

// NewModel validates the weight configuration: every weight in [0,1]
// and the total within tolerance of 1.
func NewModel(weights map[string]float64) (*Model, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("confidence model requires at least one weight")
	}

	total := 0.0
	for name, w := range weights {
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("weight %s = %v out of range [0,1]", name, w)
		}
		total += w
	}

	if math.Abs(total-1) > weightTolerance {
		return nil, fmt.Errorf("weights sum to %v, want 1", total)
	}

	cloned := make(map[string]float64, len(weights))
	for name, w := range weights {
		cloned[name] = w
	}

	return &Model{weights: cloned}, nil
}

// Score computes the weighted aggregate for the given factor scores.
// Every score must be in [0,1] and every name must be a configured
// factor; factors absent from scores contribute zero.
func (m *Model) Score(scores map[string]float64) (Assessment, error) {
	for name, s := range scores {
		if _, ok := m.weights[name]; !ok {
			return Assessment{}, fmt.Errorf("unknown factor %s", name)
		}
		if s < 0 || s > 1 {
			return Assessment{}, fmt.Errorf("factor %s score %v out of range [0,1]", name, s)
		}
	}

	names := make([]string, 0, len(m.weights))
	for name := range m.weights {
		names = append(names, name)
	}
	sort.Strings(names)

	value := 0.0
	breakdown := make([]Factor, 0, len(names))
	for _, name := range names {
		f := Factor{Name: name, Weight: m.weights[name], Score: scores[name]}
		value += f.Weight * f.Score
		breakdown = append(breakdown, f)
	}

	return Assessment{
		Value:     value,
		Level:     Classify(value),
		Breakdown: breakdown,
		Rationale: rationale(breakdown, value),
	}, nil
}

// Classify maps an aggregate value to its qualitative level:
// HIGH >= 0.8, MEDIUM in [0.5, 0.8), LOW < 0.5.
func Classify(value float64) Level {
	switch {
	case value >= 0.8:
		return LevelHigh
	case value >= 0.5:
		return LevelMedium
	default:
		return LevelLow
	}
}

func rationale(breakdown []Factor, value float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "aggregate %.2f", value)
	for _, f := range breakdown {
		fmt.Fprintf(&sb, "; %s %.2fx%.2f", f.Name, f.Score, f.Weight)
	}
	return sb.String()
}
