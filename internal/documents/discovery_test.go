package documents_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/pkg/convert"
)

func testDiscoverer(t *testing.T) (*documents.Discoverer, sessions.Store, *sessions.Session, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sessions.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}

	sourceDir := t.TempDir()
	session := &sessions.Session{
		ProjectName:   "Willow Creek",
		MethodologyID: "soil-carbon-v1.2.2",
	}
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Mutate(context.Background(), session.ID, func(s *sessions.Session) error {
		s.Sources = append(s.Sources, sessions.DocumentSource{
			Kind:    sessions.SourcePath,
			Locator: sourceDir,
		})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	d := documents.NewDiscoverer(
		store,
		documents.DefaultRuleset(),
		convert.NewPipeline(convert.NewPlaintext()),
		0,
		logger,
	)
	return d, store, session, sourceDir
}

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverDeduplicatesByFingerprint(t *testing.T) {
	d, store, session, sourceDir := testDiscoverer(t)
	ctx := context.Background()

	// Three documents, two sharing identical content bytes.
	writeSource(t, sourceDir, "sampling_report.txt", "baseline sampling on 2024-03-15")
	writeSource(t, sourceDir, "sampling_report_copy.txt", "baseline sampling on 2024-03-15")
	writeSource(t, sourceDir, "land_title.txt", "certificate of title, T. Mitchell, 127.4 ha")

	inv, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	if len(inv.Documents) != 2 {
		t.Errorf("documents = %d, want 2", len(inv.Documents))
	}
	if len(inv.Duplicates) != 1 {
		t.Fatalf("duplicates = %d, want 1", len(inv.Duplicates))
	}

	dup := inv.Duplicates[0]
	original, ok := inv.Find(dup.OriginalID)
	if !ok {
		t.Fatal("duplicate does not reference a retained document")
	}
	if original.Fingerprint != dup.Fingerprint {
		t.Errorf("fingerprint mismatch: %s vs %s", original.Fingerprint, dup.Fingerprint)
	}

	found, err := store.Find(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if found.Stats.DocumentsFound != 2 {
		t.Errorf("DocumentsFound = %d, want 2", found.Stats.DocumentsFound)
	}
	if found.Stats.DuplicatesSkipped != 1 {
		t.Errorf("DuplicatesSkipped = %d, want 1", found.Stats.DuplicatesSkipped)
	}
}

func TestDiscoverIdempotentAcrossRuns(t *testing.T) {
	d, _, session, sourceDir := testDiscoverer(t)
	ctx := context.Background()

	writeSource(t, sourceDir, "plan.txt", "project plan")

	first, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Documents) != 1 || len(second.Documents) != 1 {
		t.Errorf("documents = %d then %d, want 1 and 1", len(first.Documents), len(second.Documents))
	}
	if first.Documents[0].ID != second.Documents[0].ID {
		t.Error("re-discovery reassigned document identity")
	}
	if len(second.Duplicates) != 0 {
		t.Errorf("re-discovery recorded %d duplicates for unchanged files", len(second.Duplicates))
	}
}

func TestDiscoverIdempotentWithDuplicateContent(t *testing.T) {
	d, store, session, sourceDir := testDiscoverer(t)
	ctx := context.Background()

	writeSource(t, sourceDir, "sampling_report.txt", "baseline sampling on 2024-03-15")
	writeSource(t, sourceDir, "sampling_report_copy.txt", "baseline sampling on 2024-03-15")

	first, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Documents) != 1 || len(second.Documents) != 1 {
		t.Errorf("documents = %d then %d, want 1 and 1", len(first.Documents), len(second.Documents))
	}
	// Exactly one duplicate record per extra occurrence, no matter how
	// many times the sources are rescanned.
	if len(first.Duplicates) != 1 {
		t.Fatalf("first run duplicates = %d, want 1", len(first.Duplicates))
	}
	if len(second.Duplicates) != 1 {
		t.Errorf("second run duplicates = %d, want 1", len(second.Duplicates))
	}
	if second.Duplicates[0].Path != first.Duplicates[0].Path {
		t.Errorf("duplicate path changed across runs: %q vs %q", first.Duplicates[0].Path, second.Duplicates[0].Path)
	}

	found, err := store.Find(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if found.Stats.DuplicatesSkipped != 1 {
		t.Errorf("DuplicatesSkipped = %d, want 1", found.Stats.DuplicatesSkipped)
	}
}

func TestDiscoverClassifiesAndMeasuresText(t *testing.T) {
	d, _, session, sourceDir := testDiscoverer(t)

	content := "baseline sampling on 2024-03-15"
	writeSource(t, sourceDir, "sampling_report.txt", content)

	inv, err := d.Discover(context.Background(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(inv.Documents))
	}

	doc := inv.Documents[0]
	if doc.Label != "sampling_report" {
		t.Errorf("Label = %q, want sampling_report", doc.Label)
	}
	if doc.Method != documents.MethodRule {
		t.Errorf("Method = %q, want rule", doc.Method)
	}
	if doc.TextLength != len(content) {
		t.Errorf("TextLength = %d, want %d", doc.TextLength, len(content))
	}
	if doc.Fingerprint == "" {
		t.Error("Fingerprint not set")
	}
}

func TestDiscoverLinkSourceProducesError(t *testing.T) {
	d, store, session, _ := testDiscoverer(t)
	ctx := context.Background()

	if _, err := store.Mutate(ctx, session.ID, func(s *sessions.Session) error {
		s.Sources = append(s.Sources, sessions.DocumentSource{
			Kind:    sessions.SourceLink,
			Locator: "https://registry.example/docs/plan",
		})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	inv, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	if len(inv.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(inv.Errors))
	}
	fe := inv.Errors[0]
	if fe.Kind != "unresolvable_link" {
		t.Errorf("Kind = %q", fe.Kind)
	}
	if fe.Remediation == "" {
		t.Error("Remediation missing")
	}
}

func TestDiscoverMissingSourceDoesNotAbort(t *testing.T) {
	d, store, session, sourceDir := testDiscoverer(t)
	ctx := context.Background()

	writeSource(t, sourceDir, "plan.txt", "project plan")

	if _, err := store.Mutate(ctx, session.ID, func(s *sessions.Session) error {
		s.Sources = append(s.Sources, sessions.DocumentSource{
			Kind:    sessions.SourcePath,
			Locator: filepath.Join(sourceDir, "does-not-exist"),
		})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	inv, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatalf("Discover() error: %v (per-source failure must not abort)", err)
	}

	if len(inv.Documents) != 1 {
		t.Errorf("documents = %d, want 1", len(inv.Documents))
	}
	if len(inv.Errors) == 0 {
		t.Error("missing source produced no error record")
	}
}

func TestDiscoverMaxFileSize(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sessions.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}

	sourceDir := t.TempDir()
	session := &sessions.Session{ProjectName: "p", MethodologyID: "m"}
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Mutate(context.Background(), session.ID, func(s *sessions.Session) error {
		s.Sources = append(s.Sources, sessions.DocumentSource{Kind: sessions.SourcePath, Locator: sourceDir})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	writeSource(t, sourceDir, "huge.txt", "this content exceeds the tiny limit")

	d := documents.NewDiscoverer(store, documents.DefaultRuleset(), convert.NewPipeline(convert.NewPlaintext()), 8, logger)

	inv, err := d.Discover(context.Background(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Documents) != 0 {
		t.Errorf("documents = %d, want 0", len(inv.Documents))
	}
	if len(inv.Errors) != 1 || inv.Errors[0].Kind != "file_too_large" {
		t.Errorf("errors = %+v, want one file_too_large", inv.Errors)
	}
}

func TestReclassify(t *testing.T) {
	d, _, session, sourceDir := testDiscoverer(t)
	ctx := context.Background()

	writeSource(t, sourceDir, "mystery.txt", "unlabeled content")

	inv, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	id := inv.Documents[0].ID

	doc, err := d.Reclassify(ctx, session.ID, id, "lab_results")
	if err != nil {
		t.Fatalf("Reclassify() error: %v", err)
	}
	if doc.Label != "lab_results" || doc.Method != documents.MethodManual || doc.Confidence != 1.0 {
		t.Errorf("Reclassify() = %+v", doc)
	}

	// Correction persists.
	again, err := d.Discover(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	persisted, ok := again.Find(id)
	if !ok || persisted.Label != "lab_results" {
		t.Errorf("reclassification not persisted: %+v", persisted)
	}
}
