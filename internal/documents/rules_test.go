package documents_test

import (
	"testing"

	"github.com/attestd/attest/internal/documents"
)

func TestClassifyPriorityGovernsNotRegistrationOrder(t *testing.T) {
	low := documents.PatternRule{
		RuleName:   "generic-report",
		Label:      "generic_report",
		Prio:       10,
		Confidence: 0.6,
		Patterns:   []string{"report"},
	}
	high := documents.PatternRule{
		RuleName:   "sampling-report",
		Label:      "sampling_report",
		Prio:       100,
		Confidence: 0.9,
		Patterns:   []string{"report"},
	}

	orders := map[string]*documents.Ruleset{
		"low registered first":  documents.NewRuleset(low, high),
		"high registered first": documents.NewRuleset(high, low),
	}

	for name, rs := range orders {
		t.Run(name, func(t *testing.T) {
			label, conf, method := rs.Classify(documents.Candidate{Filename: "sampling_report.txt"})
			if label != "sampling_report" {
				t.Errorf("label = %q, want sampling_report (priority must govern)", label)
			}
			if conf != 0.9 {
				t.Errorf("confidence = %v, want 0.9", conf)
			}
			if method != documents.MethodRule {
				t.Errorf("method = %q, want rule", method)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	rs := documents.NewRuleset(
		documents.PatternRule{RuleName: "a", Label: "label_a", Prio: 100, Confidence: 0.9, Patterns: []string{"plan"}},
		documents.PatternRule{RuleName: "b", Label: "label_b", Prio: 90, Confidence: 0.9, Patterns: []string{"plan"}},
	)

	label, _, _ := rs.Classify(documents.Candidate{Filename: "project_plan.pdf"})
	if label != "label_a" {
		t.Errorf("label = %q, want label_a (first match, not best match)", label)
	}
}

func TestClassifyNoMatchDefaults(t *testing.T) {
	rs := documents.DefaultRuleset()

	label, conf, method := rs.Classify(documents.Candidate{Filename: "mystery.bin"})
	if label != documents.LabelUnknown {
		t.Errorf("label = %q, want unknown", label)
	}
	if conf != 0.5 {
		t.Errorf("confidence = %v, want 0.5", conf)
	}
	if method != documents.MethodDefault {
		t.Errorf("method = %q, want default", method)
	}
}

func TestClassifyEqualPriorityTieBreaksByName(t *testing.T) {
	rs := documents.NewRuleset(
		documents.PatternRule{RuleName: "zeta", Label: "label_z", Prio: 50, Confidence: 0.7, Patterns: []string{"x"}},
		documents.PatternRule{RuleName: "alpha", Label: "label_a", Prio: 50, Confidence: 0.7, Patterns: []string{"x"}},
	)

	label, _, _ := rs.Classify(documents.Candidate{Filename: "x.txt"})
	if label != "label_a" {
		t.Errorf("label = %q, want label_a (name tie-break must be deterministic)", label)
	}
}

func TestDefaultRulesetLabels(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"project plan", "Willow_Creek_project_plan_v3.pdf", "project_plan"},
		{"sampling report", "baseline_sampling_2024.txt", "sampling_report"},
		{"lab results", "lab_results_batch_7.csv", "lab_results"},
		{"imagery", "satellite_capture_manifest.txt", "imagery"},
		{"land title", "certificate_of_title.pdf", "land_title"},
		{"monitoring", "annual_monitoring_2025.md", "monitoring_report"},
		{"spatial fallback", "boundary.geojson", "spatial_data"},
		{"tabular fallback", "measurements.csv", "tabular_data"},
	}

	rs := documents.DefaultRuleset()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, _, _ := rs.Classify(documents.Candidate{Filename: tt.filename})
			if label != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.filename, label, tt.want)
			}
		})
	}
}

func TestExtensionRuleCaseInsensitive(t *testing.T) {
	rs := documents.DefaultRuleset()
	label, _, _ := rs.Classify(documents.Candidate{Filename: "BOUNDARY.GEOJSON"})
	if label != "spatial_data" {
		t.Errorf("label = %q, want spatial_data", label)
	}
}
