package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/evidence"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/internal/validation"
	"github.com/attestd/attest/pkg/formatting"
)

// Generator assembles and renders findings reports.
type Generator struct {
	store    sessions.Store
	registry *methodology.Registry
	logger   *slog.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(store sessions.Store, registry *methodology.Registry, logger *slog.Logger) *Generator {
	return &Generator{
		store:    store,
		registry: registry,
		logger:   logger.With("system", "report"),
	}
}

// Generate assembles the report from every persisted record category and
// writes it into the session directory. Returns the written file path.
func (g *Generator) Generate(ctx context.Context, sessionID uuid.UUID, format Format) (string, error) {
	report, err := g.Assemble(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var (
		name    string
		content []byte
	)
	switch format {
	case FormatJSON:
		name = "report.json"
		content, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode report: %w", err)
		}
	case FormatMarkdown:
		name = "report.md"
		content = []byte(renderMarkdown(report))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	path := filepath.Join(g.store.Dir(sessionID), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	g.logger.InfoContext(ctx, "report generated", "session", sessionID, "format", format, "path", path)
	return path, nil
}

// Assemble builds the report model without rendering it.
func (g *Generator) Assemble(ctx context.Context, sessionID uuid.UUID) (*Report, error) {
	session, err := g.store.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	checklist, err := g.registry.Find(session.MethodologyID)
	if err != nil {
		return nil, err
	}

	inv := &documents.Inventory{}
	if _, err := g.store.LoadRecord(ctx, sessionID, sessions.RecordDocuments, inv); err != nil {
		return nil, err
	}

	ev := &evidence.Record{}
	if _, err := g.store.LoadRecord(ctx, sessionID, sessions.RecordEvidence, ev); err != nil {
		return nil, err
	}

	val := &validation.Record{}
	if _, err := g.store.LoadRecord(ctx, sessionID, sessions.RecordValidation, val); err != nil {
		return nil, err
	}

	notes := &sessions.AnnotationRecord{}
	if _, err := g.store.LoadRecord(ctx, sessionID, sessions.RecordAnnotations, notes); err != nil {
		return nil, err
	}

	filenames := make(map[uuid.UUID]string, len(inv.Documents))
	entries := make([]DocumentEntry, 0, len(inv.Documents))
	for _, doc := range inv.Documents {
		filenames[doc.ID] = doc.Filename
		entries = append(entries, DocumentEntry{
			ID:         doc.ID,
			Filename:   doc.Filename,
			Label:      doc.Label,
			Method:     string(doc.Method),
			Confidence: doc.Confidence,
			Size:       formatting.FormatBytes(doc.SizeBytes, 1),
			Pages:      doc.PageCount,
		})
	}

	requirements := make([]RequirementEntry, 0, len(checklist.Requirements))
	for _, req := range checklist.Requirements {
		entry := RequirementEntry{
			ID:       req.ID,
			Text:     req.Text,
			Category: req.Category,
			Coverage: evidence.CoverageMissing,
		}
		if result, ok := ev.Result(req.ID); ok {
			entry.Coverage = result.Coverage
			entry.Error = result.Error
			for _, s := range result.Snippets {
				if !active(s) {
					continue
				}
				entry.Citations = append(entry.Citations, CitationEntry{
					DocumentID: s.DocumentID,
					Document:   filenames[s.DocumentID],
					Page:       s.Page,
					Section:    s.Section,
					Excerpt:    s.Text,
					Confidence: s.Confidence,
					Level:      string(s.Level),
					Method:     string(s.Method),
				})
			}
		}
		requirements = append(requirements, entry)
	}

	return &Report{
		SessionID:         session.ID,
		ProjectName:       session.ProjectName,
		ExternalProjectID: session.ExternalProjectID,
		MethodologyID:     checklist.ID,
		MethodologyName:   checklist.Name,
		CreditingPeriod:   session.CreditingPeriod,
		GeneratedAt:       time.Now().UTC(),
		Stats:             session.Stats,
		Documents:         entries,
		Duplicates:        inv.Duplicates,
		FileErrors:        inv.Errors,
		Requirements:      requirements,
		Validation:        val.Summary,
		Checks:            val.Results,
		Annotations:       notes.Annotations,
	}, nil
}

func renderMarkdown(r *Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Findings Report: %s\n\n", r.ProjectName)
	fmt.Fprintf(&sb, "- Session: %s\n", r.SessionID)
	fmt.Fprintf(&sb, "- Methodology: %s (%s)\n", r.MethodologyName, r.MethodologyID)
	if r.ExternalProjectID != "" {
		fmt.Fprintf(&sb, "- Registry project: %s\n", r.ExternalProjectID)
	}
	if r.CreditingPeriod != "" {
		fmt.Fprintf(&sb, "- Crediting period: %s\n", r.CreditingPeriod)
	}
	fmt.Fprintf(&sb, "- Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	sb.WriteString("## Document Inventory\n\n")
	fmt.Fprintf(&sb, "%d documents, %d duplicates skipped.\n\n", r.Stats.DocumentsFound, r.Stats.DuplicatesSkipped)
	if len(r.Documents) > 0 {
		sb.WriteString("| Document | Label | Method | Confidence | Size |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, d := range r.Documents {
			fmt.Fprintf(&sb, "| %s | %s | %s | %.2f | %s |\n", d.Filename, d.Label, d.Method, d.Confidence, d.Size)
		}
		sb.WriteString("\n")
	}
	if len(r.FileErrors) > 0 {
		sb.WriteString("### File Errors\n\n")
		for _, fe := range r.FileErrors {
			fmt.Fprintf(&sb, "- `%s` (%s): %s - %s\n", fe.Path, fe.Kind, fe.Message, fe.Remediation)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Requirement Coverage\n\n")
	fmt.Fprintf(
		&sb, "%d covered, %d partial, %d missing.\n\n",
		r.Stats.RequirementsCovered, r.Stats.RequirementsPartial, r.Stats.RequirementsMissing,
	)
	for _, req := range r.Requirements {
		fmt.Fprintf(&sb, "### %s - %s\n\n", req.ID, strings.ToUpper(req.Coverage))
		fmt.Fprintf(&sb, "%s\n\n", req.Text)
		if req.Error != "" {
			fmt.Fprintf(&sb, "Extraction error: %s\n\n", req.Error)
		}
		for _, c := range req.Citations {
			location := c.Document
			if c.Page > 0 {
				location = fmt.Sprintf("%s, p.%d", location, c.Page)
			}
			if c.Section != "" {
				location = fmt.Sprintf("%s, %s", location, c.Section)
			}
			fmt.Fprintf(&sb, "> %s\n> -- %s (%s, %.2f)\n\n", c.Excerpt, location, c.Level, c.Confidence)
		}
	}

	sb.WriteString("## Cross-Validation\n\n")
	fmt.Fprintf(
		&sb, "%d pass, %d warning, %d fail, %d skipped; %d flagged for review.\n\n",
		r.Validation.Pass, r.Validation.Warning, r.Validation.Fail, r.Validation.Skipped, r.Validation.FlaggedForReview,
	)
	for _, c := range r.Checks {
		marker := ""
		if c.FlaggedForReview {
			marker = " (flagged)"
		}
		fmt.Fprintf(&sb, "- **%s**: %s%s - %s\n", c.Kind, c.Status, marker, c.Detail)
	}
	sb.WriteString("\n")

	if len(r.Annotations) > 0 {
		sb.WriteString("## Reviewer Annotations\n\n")
		for _, a := range r.Annotations {
			scope := ""
			if a.Stage != "" {
				scope = fmt.Sprintf(" [%s]", a.Stage)
			}
			author := a.Author
			if author == "" {
				author = "reviewer"
			}
			fmt.Fprintf(&sb, "- %s%s: %s\n", author, scope, a.Text)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
