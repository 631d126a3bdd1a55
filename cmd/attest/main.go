// Command attest drives compliance-documentation review sessions from
// the terminal: create a session, attach document sources, then run the
// stages individually or as one pipeline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/config"
	"github.com/attestd/attest/internal/documents"
	"github.com/attestd/attest/internal/evidence"
	"github.com/attestd/attest/internal/methodology"
	"github.com/attestd/attest/internal/report"
	"github.com/attestd/attest/internal/review"
	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/internal/validation"
	"github.com/attestd/attest/internal/workflow"
	"github.com/attestd/attest/pkg/cache"
	"github.com/attestd/attest/pkg/confidence"
	"github.com/attestd/attest/pkg/convert"
	"github.com/attestd/attest/pkg/lifecycle"
	"github.com/attestd/attest/pkg/oracle"
	"github.com/attestd/attest/pkg/retry"
)

const usage = `usage: attest <command> [flags]

commands:
  create       create a review session
  add-source   attach a document source to a session
  discover     scan sources and classify documents
  extract      extract evidence, all requirements or one via -requirement
  validate     run cross-document consistency checks
  report       generate the findings report
  run          run discover through report as one pipeline
  watch        re-scan sources as files change
  advance      open a workflow stage
  complete     mark a workflow stage completed
  skip         skip an optional workflow stage
  annotate     attach a reviewer note
  reclassify   correct a document classification
  override     record a manual evidence snippet
  status       show a session's progress
  list         list sessions
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := review.Remediation(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "create":
		return rt.create(ctx, rest)
	case "add-source":
		return rt.addSource(ctx, rest)
	case "discover":
		return rt.discover(ctx, rest)
	case "extract":
		return rt.extract(ctx, rest)
	case "validate":
		return rt.validate(ctx, rest)
	case "report":
		return rt.report(ctx, rest)
	case "run":
		return rt.runPipeline(ctx, rest)
	case "watch":
		return rt.watch(ctx, cfg, rest)
	case "advance":
		return rt.transition(ctx, rest, rt.system.Advance)
	case "complete":
		return rt.stage(ctx, rest, rt.system.Complete)
	case "skip":
		return rt.stage(ctx, rest, rt.system.Skip)
	case "annotate":
		return rt.annotate(ctx, rest)
	case "reclassify":
		return rt.reclassify(ctx, rest)
	case "override":
		return rt.override(ctx, rest)
	case "status":
		return rt.status(ctx, rest)
	case "list":
		return rt.list(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runtime holds the wired review system and the resources that need
// closing when the process ends.
type runtime struct {
	system     *review.System
	store      sessions.Store
	discoverer *documents.Discoverer
	cache      *cache.Cache
	logger     *slog.Logger
}

func newRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	store, err := sessions.NewStore(cfg.Store.Root, logger)
	if err != nil {
		return nil, err
	}

	registry, err := methodology.LoadRegistry(cfg.Registry.Dir)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	if purged, err := c.Purge(); err != nil {
		logger.Warn("cache purge failed", "error", err)
	} else if purged > 0 {
		logger.Info("cache purged", "expired_entries", purged)
	}

	model, err := confidence.NewModel(confidence.DefaultExtractionWeights())
	if err != nil {
		c.Close()
		return nil, err
	}

	pipeline := convert.NewPipeline(
		convert.NewPlaintext(),
		convert.NewPDF(),
	)

	machine := workflow.NewMachine(store, logger)
	discoverer := documents.NewDiscoverer(
		store,
		documents.DefaultRuleset(),
		pipeline,
		cfg.Discovery.MaxFileSizeBytes(),
		logger,
	)

	extractor := oracle.NewAgent(cfg.Agent.AgentConfig, cfg.Extraction.OracleTimeoutDuration())
	policy := retry.New(
		cfg.Extraction.RetryAttempts,
		cfg.Extraction.RetryDelayDuration(),
		retry.Is(oracle.RetryableKinds()...),
	)
	engine := evidence.NewEngine(store, registry, c, extractor, pipeline, model, policy, evidence.Config{
		ChunkSize:    cfg.Extraction.ChunkSize,
		ChunkOverlap: cfg.Extraction.ChunkOverlap,
		MaxWorkers:   cfg.Extraction.MaxWorkers,
		CacheTTL:     cfg.Cache.TTLDuration(),
	}, logger)

	validator := validation.NewEngine(store, registry, logger)
	reporter := report.NewGenerator(store, registry, logger)

	return &runtime{
		system:     review.New(store, registry, machine, discoverer, engine, validator, reporter, logger),
		store:      store,
		discoverer: discoverer,
		cache:      c,
		logger:     logger,
	}, nil
}

func (rt *runtime) close() {
	if err := rt.cache.Close(); err != nil {
		rt.logger.Warn("cache close failed", "error", err)
	}
}

func (rt *runtime) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	project := fs.String("project", "", "project name")
	methodologyID := fs.String("methodology", "", "methodology id")
	externalID := fs.String("external-id", "", "registry project id")
	period := fs.String("crediting-period", "", "crediting period")
	fs.Parse(args)

	session, err := rt.system.CreateSession(ctx, review.CreateParams{
		ProjectName:       *project,
		ExternalProjectID: *externalID,
		MethodologyID:     *methodologyID,
		CreditingPeriod:   *period,
	})
	if err != nil {
		return err
	}

	fmt.Println(session.ID)
	return nil
}

func (rt *runtime) addSource(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-source", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	kind := fs.String("kind", "path", "source kind: path, upload, or link")
	locator := fs.String("locator", "", "directory, file, or URL")
	label := fs.String("label", "", "optional source label")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	_, err = rt.system.AddSource(ctx, id, sessions.SourceKind(*kind), *locator, *label)
	return err
}

func (rt *runtime) discover(ctx context.Context, args []string) error {
	id, err := sessionFlag("discover", args)
	if err != nil {
		return err
	}

	inv, warnings, err := rt.system.Discover(ctx, id)
	if err != nil {
		return err
	}
	printWarnings(warnings)

	fmt.Printf(
		"%d documents, %d duplicates skipped, %d file errors\n",
		len(inv.Documents), len(inv.Duplicates), len(inv.Errors),
	)
	for _, fe := range inv.Errors {
		fmt.Printf("  %s (%s): %s\n", fe.Path, fe.Kind, fe.Remediation)
	}
	return nil
}

func (rt *runtime) extract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	requirementID := fs.String("requirement", "", "optional requirement id; extracts just that one")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	if *requirementID != "" {
		result, warnings, err := rt.system.ExtractRequirement(ctx, id, *requirementID)
		if err != nil {
			return err
		}
		printWarnings(warnings)
		printRequirement(result)
		return nil
	}

	record, warnings, err := rt.system.Extract(ctx, id)
	if err != nil {
		return err
	}
	printWarnings(warnings)

	for i := range record.Requirements {
		printRequirement(&record.Requirements[i])
	}
	return nil
}

func printRequirement(result *evidence.RequirementResult) {
	fmt.Printf("%s: %s (%d snippets)\n", result.RequirementID, result.Coverage, len(result.Snippets))
	if result.Error != "" {
		fmt.Printf("  error: %s\n", result.Error)
	}
}

func (rt *runtime) validate(ctx context.Context, args []string) error {
	id, err := sessionFlag("validate", args)
	if err != nil {
		return err
	}

	record, warnings, err := rt.system.Validate(ctx, id)
	if err != nil {
		return err
	}
	printWarnings(warnings)

	for _, result := range record.Results {
		fmt.Printf("%s: %s - %s\n", result.Kind, result.Status, result.Detail)
	}
	fmt.Printf("%d flagged for review\n", record.Summary.FlaggedForReview)
	return nil
}

func (rt *runtime) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	format := fs.String("format", "markdown", "report format: markdown or json")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	f, err := report.ParseFormat(*format)
	if err != nil {
		return err
	}

	path, warnings, err := rt.system.Report(ctx, id, f)
	if err != nil {
		return err
	}
	printWarnings(warnings)

	fmt.Println(path)
	return nil
}

func (rt *runtime) runPipeline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	format := fs.String("format", "markdown", "report format: markdown or json")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	outcome, err := rt.system.Run(ctx, id, report.Format(*format))
	if err != nil {
		return err
	}
	printWarnings(outcome.Warnings)

	fmt.Printf(
		"documents %d (%d duplicates) | requirements %d/%d/%d covered/partial/missing | validation %d flagged\n",
		outcome.Stats.DocumentsFound, outcome.Stats.DuplicatesSkipped,
		outcome.Stats.RequirementsCovered, outcome.Stats.RequirementsPartial, outcome.Stats.RequirementsMissing,
		outcome.Validation.FlaggedForReview,
	)
	fmt.Println(outcome.ReportPath)
	return nil
}

func (rt *runtime) watch(ctx context.Context, cfg *config.Config, args []string) error {
	id, err := sessionFlag("watch", args)
	if err != nil {
		return err
	}

	coordinator := lifecycle.New()
	watcher := documents.NewWatcher(rt.store, rt.discoverer, rt.logger)

	done := make(chan error, 1)
	coordinator.OnShutdown(func() {
		<-coordinator.Context().Done()
		rt.logger.Info("watch stopped", "session_id", id)
	})
	coordinator.WaitForStartup()

	go func() {
		done <- watcher.Watch(coordinator.Context(), id)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	if err := coordinator.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		rt.logger.Warn("shutdown incomplete", "error", err)
	}
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (rt *runtime) transition(
	ctx context.Context,
	args []string,
	fn func(context.Context, uuid.UUID, workflow.Stage) ([]workflow.Warning, error),
) error {
	id, stage, err := stageFlags(args)
	if err != nil {
		return err
	}

	warnings, err := fn(ctx, id, stage)
	if err != nil {
		return err
	}
	printWarnings(warnings)
	return nil
}

func (rt *runtime) stage(
	ctx context.Context,
	args []string,
	fn func(context.Context, uuid.UUID, workflow.Stage) error,
) error {
	id, stage, err := stageFlags(args)
	if err != nil {
		return err
	}
	return fn(ctx, id, stage)
}

func (rt *runtime) annotate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	stage := fs.String("stage", "", "optional stage scope")
	author := fs.String("author", "", "optional author")
	text := fs.String("text", "", "annotation text")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	_, err = rt.system.Annotate(ctx, id, *stage, *author, *text)
	return err
}

func (rt *runtime) reclassify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reclassify", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	documentID := fs.String("document", "", "document id")
	label := fs.String("label", "", "corrected label")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	docID, err := uuid.Parse(*documentID)
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	doc, err := rt.system.Reclassify(ctx, id, docID, *label)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s (%s)\n", doc.Filename, doc.Label, doc.Method)
	return nil
}

func (rt *runtime) override(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("override", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	requirementID := fs.String("requirement", "", "requirement id")
	documentID := fs.String("document", "", "document id")
	text := fs.String("text", "", "cited evidence text")
	page := fs.Int("page", 0, "citation page")
	section := fs.String("section", "", "citation section")
	supersedes := fs.String("supersedes", "", "optional snippet id to supersede")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	docID, err := uuid.Parse(*documentID)
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	var old uuid.UUID
	if *supersedes != "" {
		if old, err = uuid.Parse(*supersedes); err != nil {
			return fmt.Errorf("invalid supersedes id: %w", err)
		}
	}

	snippet, err := rt.system.OverrideEvidence(ctx, id, *requirementID, docID, *text, *page, *section, old)
	if err != nil {
		return err
	}

	fmt.Println(snippet.ID)
	return nil
}

func (rt *runtime) status(ctx context.Context, args []string) error {
	id, err := sessionFlag("status", args)
	if err != nil {
		return err
	}

	status, err := rt.system.SessionStatus(ctx, id)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (rt *runtime) list(ctx context.Context) error {
	all, err := rt.system.ListSessions(ctx)
	if err != nil {
		return err
	}

	for _, s := range all {
		state := "open"
		if s.Locked {
			state = "locked"
		}
		fmt.Printf("%s  %-30s %s (%s)\n", s.ID, s.ProjectName, s.MethodologyID, state)
	}
	return nil
}

func sessionFlag(name string, args []string) (uuid.UUID, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session id: %w", err)
	}
	return id, nil
}

func stageFlags(args []string) (uuid.UUID, workflow.Stage, error) {
	fs := flag.NewFlagSet("stage", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id")
	stage := fs.String("stage", "", "workflow stage")
	fs.Parse(args)

	id, err := uuid.Parse(*sessionID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid session id: %w", err)
	}

	parsed, err := workflow.ParseStage(*stage)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %s", err, *stage)
	}
	return id, parsed, nil
}

func printWarnings(warnings []workflow.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
	}
}
