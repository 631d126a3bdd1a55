package report_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/evidence"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/internal/report"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/internal/validation"
)

func seedSession(t *testing.T) (*report.Generator, sessions.Store, *sessions.Session) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store, err := sessions.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}

	registry, err := methodology.NewRegistry(&methodology.Checklist{
		ID:      "soil-carbon-v1.2.2",
		Name:    "Soil Carbon",
		Version: "1.2.2",
		Requirements: []methodology.Requirement{
			{ID: "SC-01", Text: "Baseline sampling dates are documented", Category: "sampling"},
			{ID: "SC-02", Text: "Land tenure is evidenced", Category: "tenure"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	session := &sessions.Session{
		ProjectName:   "Willow Creek",
		MethodologyID: "soil-carbon-v1.2.2",
	}
	if err := store.Create(ctx, session); err != nil {
		t.Fatal(err)
	}

	docID := uuid.New()
	if err := store.SaveRecord(ctx, session.ID, sessions.RecordDocuments, &documents.Inventory{
		Documents: []documents.Document{{
			ID:        docID,
			SessionID: session.ID,
			Filename:  "sampling_report.txt",
			Label:     "sampling_report",
			Method:    documents.MethodRule,
			SizeBytes: 2048,
		}},
	}); err != nil {
		t.Fatal(err)
	}

	if err := store.SaveRecord(ctx, session.ID, sessions.RecordEvidence, &evidence.Record{
		Requirements: []evidence.RequirementResult{{
			RequirementID: "SC-01",
			Coverage:      evidence.CoverageCovered,
			Snippets: []evidence.Snippet{
				{
					ID:            uuid.New(),
					RequirementID: "SC-01",
					DocumentID:    docID,
					Text:          "baseline sampling completed on 2024-03-15",
					Page:          3,
					Section:       "Field Campaign",
					Confidence:    0.86,
					Level:         "HIGH",
					Method:        evidence.MethodAutomatic,
					Status:        evidence.StatusActive,
				},
				{
					ID:            uuid.New(),
					RequirementID: "SC-01",
					DocumentID:    docID,
					Text:          "stale excerpt",
					Method:        evidence.MethodAutomatic,
					Status:        evidence.StatusSuperseded,
				},
			},
		}},
	}); err != nil {
		t.Fatal(err)
	}

	if err := store.SaveRecord(ctx, session.ID, sessions.RecordValidation, &validation.Record{
		Results: []validation.Result{{
			ID:     uuid.New(),
			Kind:   validation.KindDateAlignment,
			Status: validation.StatusPass,
			Detail: "5 days apart (limit 120)",
		}},
		Summary: validation.Summary{Pass: 1},
	}); err != nil {
		t.Fatal(err)
	}

	return report.NewGenerator(store, registry, logger), store, session
}

func TestGenerateMarkdown(t *testing.T) {
	g, _, session := seedSession(t)

	path, err := g.Generate(context.Background(), session.ID, report.FormatMarkdown)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"# Findings Report: Willow Creek",
		"sampling_report.txt",
		"2.0 KB",
		"SC-01 - COVERED",
		"SC-02 - MISSING",
		"baseline sampling completed on 2024-03-15",
		"p.3",
		"date_alignment",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("markdown report missing %q", want)
		}
	}

	if strings.Contains(content, "stale excerpt") {
		t.Error("superseded snippet rendered as current evidence")
	}

	for _, r := range content {
		if r > 127 {
			t.Errorf("markdown report contains non-ASCII rune %q", r)
			break
		}
	}
}

func TestGenerateJSON(t *testing.T) {
	g, _, session := seedSession(t)

	path, err := g.Generate(context.Background(), session.ID, report.FormatJSON)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("report.json is not valid JSON: %v", err)
	}

	if r.ProjectName != "Willow Creek" {
		t.Errorf("ProjectName = %q", r.ProjectName)
	}
	if len(r.Requirements) != 2 {
		t.Fatalf("requirements = %d, want every checklist item", len(r.Requirements))
	}
	if r.Requirements[0].Coverage != evidence.CoverageCovered {
		t.Errorf("SC-01 coverage = %s", r.Requirements[0].Coverage)
	}
	if r.Requirements[1].Coverage != evidence.CoverageMissing {
		t.Errorf("SC-02 coverage = %s", r.Requirements[1].Coverage)
	}
	if len(r.Requirements[0].Citations) != 1 {
		t.Errorf("citations = %d, want 1 active", len(r.Requirements[0].Citations))
	}
}

func TestGenerateUnknownFormat(t *testing.T) {
	g, _, session := seedSession(t)

	_, err := g.Generate(context.Background(), session.ID, report.Format("pdf"))
	if !errors.Is(err, report.ErrUnknownFormat) {
		t.Errorf("error = %v, want ErrUnknownFormat", err)
	}
}

func TestParseFormat(t *testing.T) {
	if _, err := report.ParseFormat("markdown"); err != nil {
		t.Errorf("ParseFormat(markdown) error: %v", err)
	}
	if _, err := report.ParseFormat("docx"); !errors.Is(err, report.ErrUnknownFormat) {
		t.Errorf("ParseFormat(docx) = %v, want ErrUnknownFormat", err)
	}
}
