package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/attestd/attest/internal/evidence"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/pkg/formatting"
)

// Check is one consistency rule run over extracted evidence values. The
// registry is open: embedders may add checks beyond the built-in four.
type Check interface {
	Kind() Kind
	Run(values Values, t methodology.Thresholds) []Result
}

// DefaultChecks returns the built-in check set over the canonical
// evidence fields the extraction prompt names.
func DefaultChecks() []Check {
	return []Check{
		DateAlignment{FieldA: evidence.FieldSamplingDate, FieldB: evidence.FieldImageryDate},
		IdentityMatch{Field: evidence.FieldLandholderName},
		IdentifierConsistency{Field: evidence.FieldProjectID},
		AreaConsistency{Field: evidence.FieldAreaHa},
	}
}

// DateAlignment verifies that two date fields fall within the
// methodology's drift window. The boundary is inclusive: a delta equal
// to the limit passes.
type DateAlignment struct {
	FieldA string
	FieldB string
}

func (DateAlignment) Kind() Kind { return KindDateAlignment }

func (c DateAlignment) Run(values Values, t methodology.Thresholds) []Result {
	a, inputsA := parseDates(values[c.FieldA])
	b, inputsB := parseDates(values[c.FieldB])

	if len(a) == 0 || len(b) == 0 {
		missing := c.FieldA
		if len(a) > 0 {
			missing = c.FieldB
		}
		return []Result{finalize(Result{
			Kind:   c.Kind(),
			Status: StatusSkipped,
			Detail: fmt.Sprintf("no %s evidence available", missing),
		})}
	}

	worst := 0
	var worstA, worstB time.Time
	for _, da := range a {
		for _, db := range b {
			delta := deltaDays(da, db)
			if delta >= worst {
				worst, worstA, worstB = delta, da, db
			}
		}
	}

	status := StatusPass
	if worst > t.MaxDateDriftDays {
		status = StatusFail
	}

	return []Result{finalize(Result{
		Kind:   c.Kind(),
		Inputs: append(inputsA, inputsB...),
		Delta:  float64(worst),
		Status: status,
		Detail: fmt.Sprintf(
			"%s %s vs %s %s: %d days apart (limit %d)",
			c.FieldA, worstA.Format(time.DateOnly),
			c.FieldB, worstB.Format(time.DateOnly),
			worst, t.MaxDateDriftDays,
		),
	})}
}

// IdentityMatch verifies that every mention of a person or entity refers
// to the same party. An exact surname match lifts abbreviated forms like
// "T. Mitchell" over the threshold; the worst pairwise similarity
// governs the outcome.
type IdentityMatch struct {
	Field string
}

func (IdentityMatch) Kind() Kind { return KindIdentityMatch }

func (c IdentityMatch) Run(values Values, t methodology.Thresholds) []Result {
	inputs := values[c.Field]
	if len(inputs) < 2 {
		return []Result{finalize(Result{
			Kind:   c.Kind(),
			Inputs: inputs,
			Status: StatusSkipped,
			Detail: fmt.Sprintf("fewer than two %s mentions to compare", c.Field),
		})}
	}

	worst := 1.0
	var pairA, pairB string
	boosted := false
	for i := 0; i < len(inputs); i++ {
		for j := i + 1; j < len(inputs); j++ {
			sim, lifted := identitySimilarity(inputs[i].Value, inputs[j].Value, t.IdentityThreshold)
			if sim <= worst {
				worst, pairA, pairB, boosted = sim, inputs[i].Value, inputs[j].Value, lifted
			}
		}
	}

	status := StatusFail
	switch {
	case worst >= t.IdentityThreshold:
		status = StatusPass
	case worst >= t.IdentityThreshold-t.IdentityWarningBand:
		status = StatusWarning
	}

	detail := fmt.Sprintf("%q vs %q: similarity %.2f (threshold %.2f)", pairA, pairB, worst, t.IdentityThreshold)
	if boosted {
		detail += ", surname match applied"
	}

	return []Result{finalize(Result{
		Kind:       c.Kind(),
		Inputs:     inputs,
		Similarity: worst,
		Status:     status,
		Detail:     detail,
	})}
}

// IdentifierConsistency verifies that an identifier carries one value
// across the corpus. Agreement below the corroboration floor warns
// rather than passes; any conflict fails with the majority value
// reported as primary.
type IdentifierConsistency struct {
	Field string
}

func (IdentifierConsistency) Kind() Kind { return KindIdentifierConsistency }

func (c IdentifierConsistency) Run(values Values, t methodology.Thresholds) []Result {
	inputs := values[c.Field]
	if len(inputs) == 0 {
		return []Result{finalize(Result{
			Kind:   c.Kind(),
			Status: StatusSkipped,
			Detail: fmt.Sprintf("no %s evidence available", c.Field),
		})}
	}

	counts := make(map[string]int)
	display := make(map[string]string)
	var order []string
	for _, in := range inputs {
		norm := formatting.NormalizeIdentifier(in.Value)
		if norm == "" {
			continue
		}
		if counts[norm] == 0 {
			order = append(order, norm)
			display[norm] = in.Value
		}
		counts[norm]++
	}
	if len(order) == 0 {
		return []Result{finalize(Result{
			Kind:   c.Kind(),
			Status: StatusSkipped,
			Detail: fmt.Sprintf("no usable %s values", c.Field),
		})}
	}

	primary := order[0]
	for _, norm := range order {
		if counts[norm] > counts[primary] {
			primary = norm
		}
	}

	switch {
	case len(order) > 1:
		others := make([]string, 0, len(order)-1)
		for _, norm := range order {
			if norm != primary {
				others = append(others, display[norm])
			}
		}
		return []Result{finalize(Result{
			Kind:   c.Kind(),
			Inputs: inputs,
			Status: StatusFail,
			Detail: fmt.Sprintf(
				"%s conflict: primary %q (%d mentions) disagrees with %s",
				c.Field, display[primary], counts[primary], strings.Join(others, ", "),
			),
		})}
	case counts[primary] < t.MinCorroboration:
		return []Result{finalize(Result{
			Kind:   c.Kind(),
			Inputs: inputs,
			Status: StatusWarning,
			Detail: fmt.Sprintf(
				"%s %q consistent but only %d mentions (want %d)",
				c.Field, display[primary], counts[primary], t.MinCorroboration,
			),
		})}
	default:
		return []Result{finalize(Result{
			Kind:   c.Kind(),
			Inputs: inputs,
			Status: StatusPass,
			Detail: fmt.Sprintf("%s %q corroborated by %d mentions", c.Field, display[primary], counts[primary]),
		})}
	}
}

// AreaConsistency verifies that stated areas agree within the
// methodology's relative tolerance: |a-b| / max(a,b) < tolerance.
type AreaConsistency struct {
	Field string
}

func (AreaConsistency) Kind() Kind { return KindAreaConsistency }

func (c AreaConsistency) Run(values Values, t methodology.Thresholds) []Result {
	areas, inputs := parseAreas(values[c.Field])
	if len(areas) < 2 {
		return []Result{finalize(Result{
			Kind:   c.Kind(),
			Inputs: inputs,
			Status: StatusSkipped,
			Detail: fmt.Sprintf("fewer than two %s values to compare", c.Field),
		})}
	}

	worst := 0.0
	var worstA, worstB float64
	for i := 0; i < len(areas); i++ {
		for j := i + 1; j < len(areas); j++ {
			diff := relativeDiff(areas[i], areas[j])
			if diff >= worst {
				worst, worstA, worstB = diff, areas[i], areas[j]
			}
		}
	}

	status := StatusPass
	if worst >= t.AreaTolerance {
		status = StatusFail
	}

	return []Result{finalize(Result{
		Kind:   c.Kind(),
		Inputs: inputs,
		Delta:  worst,
		Status: status,
		Detail: fmt.Sprintf(
			"%.4g vs %.4g: relative difference %.4f (tolerance %.4f)",
			worstA, worstB, worst, t.AreaTolerance,
		),
	})}
}

var dateLayouts = []string{
	time.DateOnly,
	"2 January 2006",
	"January 2, 2006",
	"02/01/2006",
}

func parseDates(inputs []Input) ([]time.Time, []Input) {
	var dates []time.Time
	var used []Input
	for _, in := range inputs {
		value := strings.TrimSpace(in.Value)
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, value); err == nil {
				dates = append(dates, d)
				used = append(used, in)
				break
			}
		}
	}
	return dates, used
}

func deltaDays(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func parseAreas(inputs []Input) ([]float64, []Input) {
	var areas []float64
	var used []Input
	for _, in := range inputs {
		value := strings.TrimSpace(in.Value)
		end := 0
		for end < len(value) && (unicode.IsDigit(rune(value[end])) || value[end] == '.') {
			end++
		}
		if end == 0 {
			continue
		}
		if a, err := strconv.ParseFloat(value[:end], 64); err == nil && a > 0 {
			areas = append(areas, a)
			used = append(used, in)
		}
	}
	return areas, used
}

func relativeDiff(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(a, b)
}

// identitySimilarity scores two name mentions in [0,1]. The base score
// is normalized edit distance; an exact surname match lifts the score
// just over the threshold so initialed forms pass without outscoring
// genuine full matches.
func identitySimilarity(a, b string, threshold float64) (float64, bool) {
	fa, fb := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	sim := editSimilarity(fa, fb)

	if sa, sb := surname(fa), surname(fb); sa != "" && sa == sb && sim < threshold {
		lifted := math.Min(threshold+0.01, 1)
		return lifted, true
	}
	return sim, false
}

func surname(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimFunc(fields[len(fields)-1], unicode.IsPunct)
}

func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
