package evidence_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/evidence"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/pkg/cache"
	"github.com/attestd/attest/pkg/confidence"
	"github.com/attestd/attest/pkg/convert"
	"github.com/attestd/attest/pkg/oracle"
	"github.com/attestd/attest/pkg/retry"
)

// fakeOracle returns a canned field and counts invocations so tests can
// prove the cache prevents repeat calls.
type fakeOracle struct {
	mu     sync.Mutex
	calls  int
	failOn string
	err    error
}

func (f *fakeOracle) Extract(_ context.Context, req oracle.Request) ([]oracle.Field, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.failOn != "" && strings.Contains(req.Prompt, f.failOn) {
		return nil, f.err
	}

	return []oracle.Field{{
		Name:      "sampling_date",
		Value:     "2024-03-15",
		Excerpt:   "baseline sampling completed on 2024-03-15",
		Citation:  oracle.Citation{Page: 1, Section: "Field Campaign"},
		Relevance: 0.9,
	}}, nil
}

func (f *fakeOracle) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testChecklist(t *testing.T) *methodology.Checklist {
	t.Helper()
	return &methodology.Checklist{
		ID:      "soil-carbon-v1.2.2",
		Name:    "Soil Carbon",
		Version: "1.2.2",
		Requirements: []methodology.Requirement{
			{ID: "SC-01", Text: "Baseline sampling dates are documented", Category: "sampling"},
			{ID: "SC-02", Text: "Laboratory analysis method is stated", Category: "analysis"},
		},
	}
}

func testEngine(t *testing.T, fake oracle.Extractor) (*evidence.Engine, *sessions.Session, sessions.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sessions.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}

	registry, err := methodology.NewRegistry(testChecklist(t))
	if err != nil {
		t.Fatal(err)
	}

	session := &sessions.Session{
		ProjectName:   "Willow Creek",
		MethodologyID: "soil-carbon-v1.2.2",
	}
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	sourceDir := t.TempDir()
	content := "Baseline sampling completed on 2024-03-15 across all monitoring plots."
	if err := os.WriteFile(filepath.Join(sourceDir, "sampling_report.txt"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Mutate(context.Background(), session.ID, func(s *sessions.Session) error {
		s.Sources = append(s.Sources, sessions.DocumentSource{Kind: sessions.SourcePath, Locator: sourceDir})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	pipeline := convert.NewPipeline(convert.NewPlaintext())
	discoverer := documents.NewDiscoverer(store, documents.DefaultRuleset(), pipeline, 0, logger)
	if _, err := discoverer.Discover(context.Background(), session.ID); err != nil {
		t.Fatal(err)
	}

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	model, err := confidence.NewModel(confidence.DefaultExtractionWeights())
	if err != nil {
		t.Fatal(err)
	}

	policy := retry.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Retryable:   retry.Is(oracle.RetryableKinds()...),
		Sleep:       func(time.Duration) {},
	}

	engine := evidence.NewEngine(store, registry, c, fake, pipeline, model, policy, evidence.Config{}, logger)
	return engine, session, store
}

func TestExtractAllIsIdempotentWithinTTL(t *testing.T) {
	fake := &fakeOracle{}
	engine, session, _ := testEngine(t, fake)
	ctx := context.Background()

	first, err := engine.ExtractAll(ctx, session.ID)
	if err != nil {
		t.Fatalf("ExtractAll() error: %v", err)
	}
	callsAfterFirst := fake.count()
	if callsAfterFirst == 0 {
		t.Fatal("first run made no oracle calls")
	}

	second, err := engine.ExtractAll(ctx, session.ID)
	if err != nil {
		t.Fatalf("ExtractAll() repeat error: %v", err)
	}

	if got := fake.count(); got != callsAfterFirst {
		t.Errorf("repeat run made %d extra oracle calls, want 0", got-callsAfterFirst)
	}

	a, err := json.Marshal(first.Requirements)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(second.Requirements)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("cached replay did not reproduce identical results")
	}
}

func TestExtractAllScoresAndCites(t *testing.T) {
	fake := &fakeOracle{}
	engine, session, _ := testEngine(t, fake)

	record, err := engine.ExtractAll(context.Background(), session.ID)
	if err != nil {
		t.Fatal(err)
	}

	result, ok := record.Result("SC-01")
	if !ok {
		t.Fatal("no result for SC-01")
	}
	if len(result.Snippets) == 0 {
		t.Fatal("no snippets extracted")
	}

	s := result.Snippets[0]
	if s.Page != 1 || s.Section != "Field Campaign" {
		t.Errorf("citation = page %d section %q", s.Page, s.Section)
	}
	if s.Confidence <= 0 || s.Confidence > 1 {
		t.Errorf("Confidence = %v", s.Confidence)
	}
	if len(s.Breakdown) != 4 {
		t.Errorf("Breakdown factors = %d, want 4", len(s.Breakdown))
	}
	if s.Method != evidence.MethodAutomatic || s.Status != evidence.StatusActive {
		t.Errorf("Method/Status = %s/%s", s.Method, s.Status)
	}
	if result.Coverage == evidence.CoverageMissing {
		t.Errorf("Coverage = %s with snippets present", result.Coverage)
	}
}

func TestExtractAllIsolatesRequirementFailure(t *testing.T) {
	fake := &fakeOracle{failOn: "SC-02", err: oracle.ErrMalformed}
	engine, session, _ := testEngine(t, fake)

	record, err := engine.ExtractAll(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ExtractAll() error: %v (one failed requirement must not abort)", err)
	}

	healthy, ok := record.Result("SC-01")
	if !ok || len(healthy.Snippets) == 0 {
		t.Error("sibling requirement lost its evidence")
	}

	failed, ok := record.Result("SC-02")
	if !ok {
		t.Fatal("no result for SC-02")
	}
	if failed.Coverage != evidence.CoverageFailed {
		t.Errorf("Coverage = %s, want %s", failed.Coverage, evidence.CoverageFailed)
	}
	if failed.Error == "" {
		t.Error("failure left no error detail")
	}
}

func TestExtractRetriesTransientFailures(t *testing.T) {
	engine, session, _ := testEngine(t, &flakyOracle{failures: 1})

	record, err := engine.ExtractAll(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ExtractAll() error: %v", err)
	}
	result, ok := record.Result("SC-01")
	if !ok || result.Coverage == evidence.CoverageFailed {
		t.Errorf("transient failure was not retried: %+v", result)
	}
}

func TestExtractSingleRequirementMergesIntoRecord(t *testing.T) {
	fake := &fakeOracle{}
	engine, session, store := testEngine(t, fake)
	ctx := context.Background()

	if _, err := engine.ExtractAll(ctx, session.ID); err != nil {
		t.Fatal(err)
	}
	callsAfterAll := fake.count()

	result, err := engine.Extract(ctx, session.ID, "SC-01")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if result.RequirementID != "SC-01" {
		t.Errorf("RequirementID = %q, want SC-01", result.RequirementID)
	}
	if len(result.Snippets) == 0 {
		t.Error("single-requirement run returned no snippets")
	}
	if fake.count() != callsAfterAll {
		t.Errorf("oracle calls = %d, want %d (cached results must replay)", fake.count(), callsAfterAll)
	}

	// The re-run merges into the persisted record without touching the
	// sibling requirement.
	record := &evidence.Record{}
	if _, err := store.LoadRecord(ctx, session.ID, sessions.RecordEvidence, record); err != nil {
		t.Fatal(err)
	}
	if len(record.Requirements) != 2 {
		t.Fatalf("persisted requirements = %d, want 2", len(record.Requirements))
	}
	sibling, ok := record.Result("SC-02")
	if !ok || len(sibling.Snippets) == 0 {
		t.Error("sibling requirement lost by single-requirement merge")
	}
	merged, ok := record.Result("SC-01")
	if !ok || len(merged.Snippets) != len(result.Snippets) {
		t.Errorf("persisted SC-01 result does not match the returned one: %+v", merged)
	}
}

func TestExtractUnknownRequirement(t *testing.T) {
	engine, session, _ := testEngine(t, &fakeOracle{})

	_, err := engine.Extract(context.Background(), session.ID, "SC-99")
	if !errors.Is(err, evidence.ErrNotFound) {
		t.Errorf("Extract(unknown requirement) = %v, want ErrNotFound", err)
	}
}

func TestOverrideSupersedes(t *testing.T) {
	fake := &fakeOracle{}
	engine, session, _ := testEngine(t, fake)
	ctx := context.Background()

	record, err := engine.ExtractAll(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	result, _ := record.Result("SC-01")
	old := result.Snippets[0]

	manual, err := engine.Override(
		ctx, session.ID, "SC-01", old.DocumentID,
		"corrected: sampling began 2024-03-14", 2, "Corrections", old.ID,
	)
	if err != nil {
		t.Fatalf("Override() error: %v", err)
	}
	if manual.Method != evidence.MethodManual || manual.Level != confidence.LevelHigh {
		t.Errorf("manual snippet = %+v", manual)
	}

	// Re-extraction carries the manual snippet forward and keeps the
	// superseded original as history, not as active evidence.
	after, err := engine.ExtractAll(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	result, _ = after.Result("SC-01")

	var activeManual, supersededOld int
	for _, s := range result.Snippets {
		if s.ID == manual.ID && s.Status == evidence.StatusActive {
			activeManual++
		}
		if s.ID == old.ID {
			if s.Status != evidence.StatusSuperseded {
				t.Errorf("superseded snippet resurrected with status %s", s.Status)
			}
			supersededOld++
		}
	}
	if activeManual != 1 {
		t.Errorf("manual snippet occurrences = %d, want 1", activeManual)
	}
	if supersededOld != 1 {
		t.Errorf("superseded snippet occurrences = %d, want 1", supersededOld)
	}
}

func TestOverrideRejectsUncited(t *testing.T) {
	fake := &fakeOracle{}
	engine, session, _ := testEngine(t, fake)

	_, err := engine.Override(context.Background(), session.ID, "SC-01", uuid.Nil, "orphan text", 0, "", uuid.Nil)
	if err == nil {
		t.Fatal("Override() accepted a snippet without a source document")
	}
}

// flakyOracle fails its first n calls with a retryable error, then
// defers to canned success.
type flakyOracle struct {
	mu       sync.Mutex
	failures int
}

func (f *flakyOracle) Extract(ctx context.Context, req oracle.Request) ([]oracle.Field, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, oracle.ErrRateLimited
	}
	f.mu.Unlock()
	return (&fakeOracle{}).Extract(ctx, req)
}
