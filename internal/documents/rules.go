package documents

import (
	"path/filepath"
	"sort"
	"strings"
)

// Candidate carries what a classification rule may inspect: the file's
// location and, when conversion has already run, its extracted text.
type Candidate struct {
	Path     string
	Filename string
	Text     string
}

// Rule is one classification rule. Rules are evaluated strictly in
// descending-priority order and the first match wins, so priority is part
// of the classification contract. New document types are new rule
// registrations, never edits to existing rules.
type Rule interface {
	Name() string
	Priority() int
	// Matches reports whether the candidate is this rule's type, along
	// with the label and confidence to assign on a match.
	Matches(c Candidate) (bool, string, float64)
}

// Ruleset is an ordered, open registry of classification rules.
type Ruleset struct {
	rules []Rule
}

// NewRuleset creates a registry from the given rules. Evaluation order is
// descending priority with rule name as a deterministic tie-break;
// registration order never matters.
func NewRuleset(rules ...Rule) *Ruleset {
	rs := &Ruleset{}
	for _, r := range rules {
		rs.Register(r)
	}
	return rs
}

// Register adds a rule to the registry.
func (rs *Ruleset) Register(r Rule) {
	rs.rules = append(rs.rules, r)
	sort.SliceStable(rs.rules, func(i, j int) bool {
		if rs.rules[i].Priority() != rs.rules[j].Priority() {
			return rs.rules[i].Priority() > rs.rules[j].Priority()
		}
		return rs.rules[i].Name() < rs.rules[j].Name()
	})
}

// Classify runs the registry against a candidate. When no rule matches,
// the document is LabelUnknown with a fixed 0.5 confidence and the
// default method.
func (rs *Ruleset) Classify(c Candidate) (string, float64, Method) {
	for _, r := range rs.rules {
		if ok, label, conf := r.Matches(c); ok {
			return label, conf, MethodRule
		}
	}
	return LabelUnknown, 0.5, MethodDefault
}

// PatternRule matches when any of its lowercase substrings appears in the
// candidate filename.
type PatternRule struct {
	RuleName   string
	Label      string
	Prio       int
	Confidence float64
	Patterns   []string
}

func (r PatternRule) Name() string  { return r.RuleName }
func (r PatternRule) Priority() int { return r.Prio }

func (r PatternRule) Matches(c Candidate) (bool, string, float64) {
	name := strings.ToLower(c.Filename)
	for _, p := range r.Patterns {
		if strings.Contains(name, p) {
			return true, r.Label, r.Confidence
		}
	}
	return false, "", 0
}

// ExtensionRule matches on the candidate's file extension.
type ExtensionRule struct {
	RuleName   string
	Label      string
	Prio       int
	Confidence float64
	Extensions []string
}

func (r ExtensionRule) Name() string  { return r.RuleName }
func (r ExtensionRule) Priority() int { return r.Prio }

func (r ExtensionRule) Matches(c Candidate) (bool, string, float64) {
	ext := strings.ToLower(filepath.Ext(c.Filename))
	for _, e := range r.Extensions {
		if ext == e {
			return true, r.Label, r.Confidence
		}
	}
	return false, "", 0
}

// DefaultRuleset returns the built-in rules for compliance submissions.
// Filename patterns outrank extension fallbacks.
func DefaultRuleset() *Ruleset {
	return NewRuleset(
		PatternRule{
			RuleName:   "project-plan",
			Label:      "project_plan",
			Prio:       100,
			Confidence: 0.9,
			Patterns:   []string{"project_plan", "project-plan", "plan of management"},
		},
		PatternRule{
			RuleName:   "sampling-report",
			Label:      "sampling_report",
			Prio:       100,
			Confidence: 0.9,
			Patterns:   []string{"sampling", "soil_sample", "soil-sample"},
		},
		PatternRule{
			RuleName:   "lab-results",
			Label:      "lab_results",
			Prio:       100,
			Confidence: 0.9,
			Patterns:   []string{"lab_result", "lab-result", "laboratory", "assay"},
		},
		PatternRule{
			RuleName:   "imagery-manifest",
			Label:      "imagery",
			Prio:       100,
			Confidence: 0.85,
			Patterns:   []string{"imagery", "satellite", "aerial"},
		},
		PatternRule{
			RuleName:   "land-title",
			Label:      "land_title",
			Prio:       100,
			Confidence: 0.9,
			Patterns:   []string{"title", "deed", "tenure"},
		},
		PatternRule{
			RuleName:   "monitoring-report",
			Label:      "monitoring_report",
			Prio:       90,
			Confidence: 0.85,
			Patterns:   []string{"monitoring", "audit"},
		},
		ExtensionRule{
			RuleName:   "spatial-data",
			Label:      "spatial_data",
			Prio:       50,
			Confidence: 0.7,
			Extensions: []string{".shp", ".geojson", ".kml"},
		},
		ExtensionRule{
			RuleName:   "tabular-data",
			Label:      "tabular_data",
			Prio:       40,
			Confidence: 0.6,
			Extensions: []string{".csv"},
		},
	)
}
