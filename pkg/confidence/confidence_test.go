package confidence_test

import (
	"math"
	"testing"

	"github.com/attestd/attest/pkg/confidence"
)

func TestNewModelValidation(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
		wantErr bool
	}{
		{
			"valid defaults",
			confidence.DefaultExtractionWeights(),
			false,
		},
		{
			"empty",
			nil,
			true,
		},
		{
			"sum below one",
			map[string]float64{"a": 0.5, "b": 0.3},
			true,
		},
		{
			"negative weight",
			map[string]float64{"a": -0.2, "b": 1.2},
			true,
		},
		{
			"single factor",
			map[string]float64{"only": 1.0},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := confidence.NewModel(tt.weights)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewModel() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	m, err := confidence.NewModel(confidence.DefaultExtractionWeights())
	if err != nil {
		t.Fatal(err)
	}

	scores := map[string]float64{
		confidence.FactorCitation:      0.9,
		confidence.FactorRelevance:     0.8,
		confidence.FactorCorroboration: 0.7,
		confidence.FactorPrecedent:     0.5,
	}

	first, err := m.Score(scores)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	second, err := m.Score(scores)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	if first.Value != second.Value || first.Level != second.Level {
		t.Errorf("Score() not deterministic: %v vs %v", first, second)
	}

	want := 0.9*0.35 + 0.8*0.35 + 0.7*0.20 + 0.5*0.10
	if math.Abs(first.Value-want) > 1e-9 {
		t.Errorf("Score() value = %v, want %v", first.Value, want)
	}
	if first.Value < 0 || first.Value > 1 {
		t.Errorf("Score() value %v out of [0,1]", first.Value)
	}
}

func TestScoreBreakdownPopulated(t *testing.T) {
	m, err := confidence.NewModel(confidence.DefaultExtractionWeights())
	if err != nil {
		t.Fatal(err)
	}

	a, err := m.Score(map[string]float64{confidence.FactorCitation: 1.0})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	if len(a.Breakdown) != 4 {
		t.Errorf("Breakdown length = %d, want 4", len(a.Breakdown))
	}
	if a.Rationale == "" {
		t.Error("Rationale is empty")
	}
	for _, r := range a.Rationale {
		if r > 127 {
			t.Errorf("Rationale contains non-ASCII rune %q", r)
			break
		}
	}
}

func TestScoreRejectsInvalidInput(t *testing.T) {
	m, err := confidence.NewModel(map[string]float64{"known": 1.0})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Score(map[string]float64{"unknown": 0.5}); err == nil {
		t.Error("Score() accepted unknown factor")
	}
	if _, err := m.Score(map[string]float64{"known": 1.5}); err == nil {
		t.Error("Score() accepted out-of-range score")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  confidence.Level
	}{
		{"high boundary", 0.8, confidence.LevelHigh},
		{"just below high", 0.7999, confidence.LevelMedium},
		{"medium boundary", 0.5, confidence.LevelMedium},
		{"just below medium", 0.4999, confidence.LevelLow},
		{"zero", 0, confidence.LevelLow},
		{"one", 1, confidence.LevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidence.Classify(tt.value); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
