package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/pkg/cache"
	"github.com/attestd/attest/pkg/confidence"
	"github.com/attestd/attest/pkg/convert"
	"github.com/attestd/attest/pkg/fingerprint"
	"github.com/attestd/attest/pkg/formatting"
	"github.com/attestd/attest/pkg/oracle"
	"github.com/attestd/attest/pkg/retry"
)

// Config carries extraction engine tuning.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	MaxWorkers   int
	CacheTTL     time.Duration
}

func (c Config) finalize() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 4000
	}
	if c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 10
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	return c
}

// Engine maps checklist requirements to cited evidence snippets. Each
// (document, requirement) pair resolves through the extraction cache
// first; a live entry replays the prior snippets byte-for-byte without
// touching the oracle.
type Engine struct {
	store     sessions.Store
	registry  *methodology.Registry
	cache     *cache.Cache
	extractor oracle.Extractor
	converter convert.Converter
	model     *confidence.Model
	policy    retry.Policy
	cfg       Config
	logger    *slog.Logger
}

// NewEngine creates an extraction engine.
func NewEngine(
	store sessions.Store,
	registry *methodology.Registry,
	c *cache.Cache,
	extractor oracle.Extractor,
	converter convert.Converter,
	model *confidence.Model,
	policy retry.Policy,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:     store,
		registry:  registry,
		cache:     c,
		extractor: extractor,
		converter: converter,
		model:     model,
		policy:    policy,
		cfg:       cfg.finalize(),
		logger:    logger.With("system", "evidence"),
	}
}

// ExtractAll runs extraction for every checklist requirement. A failed
// requirement is captured in its result entry; siblings keep going.
func (e *Engine) ExtractAll(ctx context.Context, sessionID uuid.UUID) (*Record, error) {
	session, checklist, inv, prior, err := e.prepare(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	record := &Record{ExtractorVersion: ExtractorVersion}
	for i := range checklist.Requirements {
		req := &checklist.Requirements[i]
		record.Requirements = append(record.Requirements, e.extractRequirement(ctx, checklist, req, inv.Documents, prior))
	}
	record.UpdatedAt = time.Now().UTC()

	if err := e.persist(ctx, session.ID, record); err != nil {
		return nil, err
	}

	e.logger.InfoContext(
		ctx, "extraction complete",
		"session", sessionID,
		"requirements", len(record.Requirements),
	)
	return record, nil
}

// Extract runs extraction for one requirement, leaving sibling results
// untouched.
func (e *Engine) Extract(ctx context.Context, sessionID uuid.UUID, requirementID string) (*RequirementResult, error) {
	session, checklist, inv, prior, err := e.prepare(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req, ok := checklist.Requirement(requirementID)
	if !ok {
		return nil, fmt.Errorf("%w: requirement %s", ErrNotFound, requirementID)
	}

	result := e.extractRequirement(ctx, checklist, req, inv.Documents, prior)

	record := prior
	record.ExtractorVersion = ExtractorVersion
	if existing, found := record.Result(requirementID); found {
		*existing = result
	} else {
		record.Requirements = append(record.Requirements, result)
	}
	record.UpdatedAt = time.Now().UTC()

	if err := e.persist(ctx, session.ID, record); err != nil {
		return nil, err
	}
	return &result, nil
}

// Override records a manual snippet from a human reviewer. When
// supersedes names a prior snippet it is marked superseded rather than
// removed, preserving the audit trail.
func (e *Engine) Override(
	ctx context.Context,
	sessionID uuid.UUID,
	requirementID string,
	documentID uuid.UUID,
	text string,
	page int,
	section string,
	supersedes uuid.UUID,
) (*Snippet, error) {
	session, checklist, _, record, err := e.prepare(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := checklist.Requirement(requirementID); !ok {
		return nil, fmt.Errorf("%w: requirement %s", ErrNotFound, requirementID)
	}

	snippet, err := NewSnippet(requirementID, documentID, text, MethodManual)
	if err != nil {
		return nil, err
	}
	snippet.Page = page
	snippet.Section = section
	snippet.Confidence = 1.0
	snippet.Level = confidence.LevelHigh
	snippet.Rationale = "manual reviewer entry"

	result, found := record.Result(requirementID)
	if !found {
		record.Requirements = append(record.Requirements, RequirementResult{RequirementID: requirementID})
		result = &record.Requirements[len(record.Requirements)-1]
	}

	if supersedes != uuid.Nil {
		superseded := false
		for i := range result.Snippets {
			if result.Snippets[i].ID == supersedes {
				result.Snippets[i].Status = StatusSuperseded
				superseded = true
				break
			}
		}
		if !superseded {
			return nil, fmt.Errorf("%w: snippet %s", ErrNotFound, supersedes)
		}
	}

	result.Snippets = append(result.Snippets, *snippet)
	result.Coverage = coverage(result.Snippets)
	result.Error = ""
	record.UpdatedAt = time.Now().UTC()

	if err := e.persist(ctx, session.ID, record); err != nil {
		return nil, err
	}

	e.logger.InfoContext(
		ctx, "manual evidence recorded",
		"session", sessionID,
		"requirement", requirementID,
		"supersedes", supersedes,
	)
	return snippet, nil
}

// prepare loads the extraction inputs shared by every entry point.
func (e *Engine) prepare(ctx context.Context, sessionID uuid.UUID) (*sessions.Session, *methodology.Checklist, *documents.Inventory, *Record, error) {
	session, err := e.store.Find(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if session.Locked {
		return nil, nil, nil, nil, fmt.Errorf("%w: %s", sessions.ErrLocked, sessionID)
	}

	checklist, err := e.registry.Find(session.MethodologyID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	inv := &documents.Inventory{}
	if _, err := e.store.LoadRecord(ctx, sessionID, sessions.RecordDocuments, inv); err != nil {
		return nil, nil, nil, nil, err
	}

	prior := &Record{}
	if _, err := e.store.LoadRecord(ctx, sessionID, sessions.RecordEvidence, prior); err != nil {
		return nil, nil, nil, nil, err
	}

	return session, checklist, inv, prior, nil
}

// persist saves the evidence record and refreshes the session's coverage
// stats. The store's per-session lock covers each write.
func (e *Engine) persist(ctx context.Context, sessionID uuid.UUID, record *Record) error {
	if err := e.store.SaveRecord(ctx, sessionID, sessions.RecordEvidence, record); err != nil {
		return err
	}

	var covered, partial, missing int
	for _, r := range record.Requirements {
		switch r.Coverage {
		case CoverageCovered:
			covered++
		case CoveragePartial:
			partial++
		case CoverageMissing:
			missing++
		}
	}

	_, err := e.store.Mutate(ctx, sessionID, func(s *sessions.Session) error {
		s.Stats.RequirementsCovered = covered
		s.Stats.RequirementsPartial = partial
		s.Stats.RequirementsMissing = missing
		return nil
	})
	return err
}

// extractRequirement gathers snippets for one requirement across every
// inventoried document. Manual snippets and superseded history from the
// prior record always carry forward; automatic snippets are recomputed
// (or replayed from cache).
func (e *Engine) extractRequirement(
	ctx context.Context,
	checklist *methodology.Checklist,
	req *methodology.Requirement,
	docs []documents.Document,
	prior *Record,
) RequirementResult {
	carried := carryForward(prior, req.ID)

	// a cached replay must not resurrect a snippet the reviewer superseded
	suppressed := make(map[uuid.UUID]bool, len(carried))
	for _, s := range carried {
		suppressed[s.ID] = true
	}

	var snippets []Snippet
	for i := range docs {
		got, err := e.extractDocument(ctx, checklist, req, &docs[i])
		if err != nil {
			e.logger.ErrorContext(
				ctx, "requirement extraction failed",
				"requirement", req.ID,
				"document", docs[i].Filename,
				"error", err,
			)
			return RequirementResult{
				RequirementID: req.ID,
				Coverage:      CoverageFailed,
				Error:         err.Error(),
				Snippets:      append(carried, snippets...),
			}
		}
		for _, s := range got {
			if !suppressed[s.ID] {
				snippets = append(snippets, s)
			}
		}
	}

	all := append(carried, snippets...)
	return RequirementResult{
		RequirementID: req.ID,
		Coverage:      coverage(all),
		Snippets:      all,
	}
}

// extractDocument resolves one (document, requirement) pair: cache replay
// when live, otherwise convert, chunk, fan out to the oracle, merge in
// chunk order, dedup, score, and cache.
func (e *Engine) extractDocument(
	ctx context.Context,
	checklist *methodology.Checklist,
	req *methodology.Requirement,
	doc *documents.Document,
) ([]Snippet, error) {
	key := fingerprint.Key(doc.Fingerprint, req.ID, ExtractorVersion)

	if payload, hit, err := e.cache.Get(key); err != nil {
		return nil, err
	} else if hit {
		var cached []Snippet
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		// an undecodable entry is treated as a miss and overwritten below
	}

	if e.converter == nil || !e.converter.Supports(doc.Path) {
		return nil, nil
	}
	content, err := e.converter.Convert(ctx, doc.Path)
	if err != nil {
		// conversion failures were surfaced during discovery; a document
		// that cannot be read contributes no evidence
		e.logger.WarnContext(ctx, "skipping unconvertible document", "document", doc.Filename, "error", err)
		return nil, nil
	}

	prompt := ComposePrompt(checklist, req)

	var requests []oracle.Request
	if content.Text == "" && len(content.PageImages) > 0 {
		requests = []oracle.Request{{Prompt: prompt, Images: content.PageImages}}
	} else {
		for _, chunk := range Split(content.Text, e.cfg.ChunkSize, e.cfg.ChunkOverlap) {
			requests = append(requests, oracle.Request{Prompt: prompt, Text: chunk.Text})
		}
	}
	if len(requests) == 0 {
		return nil, nil
	}

	fields := make([][]oracle.Field, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers(len(requests)))

	for i, request := range requests {
		g.Go(func() error {
			return e.policy.Do(gctx, func(ctx context.Context) error {
				got, err := e.extractor.Extract(ctx, request)
				if err != nil {
					return err
				}
				fields[i] = got
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s against %s: %v", ErrExtraction, req.ID, doc.Filename, err)
	}

	snippets, err := e.assemble(req.ID, doc.ID, fields)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(snippets)
	if err != nil {
		return nil, fmt.Errorf("encode cache payload: %w", err)
	}
	if err := e.cache.Put(key, payload, e.cfg.CacheTTL); err != nil {
		return nil, err
	}

	return snippets, nil
}

// assemble merges per-chunk fields in chunk order, drops near-duplicate
// excerpts (first occurrence wins), and scores each survivor.
func (e *Engine) assemble(requirementID string, documentID uuid.UUID, fields [][]oracle.Field) ([]Snippet, error) {
	type entry struct {
		field oracle.Field
		text  string
		count int
	}

	var order []string
	merged := make(map[string]*entry)

	for _, chunkFields := range fields {
		for _, f := range chunkFields {
			text := f.Excerpt
			if text == "" {
				text = f.Value
			}
			key := formatting.NormalizeSnippet(text)
			if key == "" {
				continue
			}
			if existing, ok := merged[key]; ok {
				existing.count++
				continue
			}
			merged[key] = &entry{field: f, text: text, count: 1}
			order = append(order, key)
		}
	}

	snippets := make([]Snippet, 0, len(order))
	for _, key := range order {
		m := merged[key]

		assessment, err := e.model.Score(map[string]float64{
			confidence.FactorCitation:      citationScore(m.field.Citation),
			confidence.FactorRelevance:     clamp01(m.field.Relevance),
			confidence.FactorCorroboration: corroborationScore(m.count),
			confidence.FactorPrecedent:     0.5,
		})
		if err != nil {
			return nil, err
		}

		snippet, err := NewSnippet(requirementID, documentID, m.text, MethodAutomatic)
		if err != nil {
			return nil, err
		}
		snippet.Field = m.field.Name
		snippet.Value = m.field.Value
		snippet.Page = m.field.Citation.Page
		snippet.Section = m.field.Citation.Section
		snippet.Confidence = assessment.Value
		snippet.Level = assessment.Level
		snippet.Breakdown = assessment.Breakdown
		snippet.Rationale = assessment.Rationale

		snippets = append(snippets, *snippet)
	}

	return snippets, nil
}

func (e *Engine) workers(n int) int {
	w := e.cfg.MaxWorkers
	if n < w {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// carryForward keeps the snippets automatic re-extraction must not
// regenerate: manual entries and superseded history.
func carryForward(prior *Record, requirementID string) []Snippet {
	result, ok := prior.Result(requirementID)
	if !ok {
		return nil
	}

	var kept []Snippet
	for _, s := range result.Snippets {
		if s.Method == MethodManual || s.Status == StatusSuperseded {
			kept = append(kept, s)
		}
	}
	return kept
}

// citationScore rewards a resolvable location. An excerpt with neither
// page nor section still cites its document, so it scores low rather
// than zero.
func citationScore(c oracle.Citation) float64 {
	if c.Page > 0 || c.Section != "" {
		return 1.0
	}
	return 0.4
}

// corroborationScore rewards excerpts that survive across overlapping
// chunks, the only within-document repetition signal available here.
func corroborationScore(count int) float64 {
	if count >= 2 {
		return 1.0
	}
	return 0.6
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
