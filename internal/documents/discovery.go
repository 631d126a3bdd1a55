package documents

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/attestd/attest/internal/sessions"
	"github.com/attestd/attest/pkg/convert"
	"github.com/attestd/attest/pkg/fingerprint"
)

// Discoverer scans a session's sources, classifies what it finds, and
// persists the inventory. Per-file failures are captured in the result;
// only session-level failures propagate.
type Discoverer struct {
	store       sessions.Store
	rules       *Ruleset
	converter   convert.Converter
	maxFileSize int64
	logger      *slog.Logger
}

// NewDiscoverer creates a discoverer. maxFileSize of zero disables the
// size limit.
func NewDiscoverer(
	store sessions.Store,
	rules *Ruleset,
	converter convert.Converter,
	maxFileSize int64,
	logger *slog.Logger,
) *Discoverer {
	return &Discoverer{
		store:       store,
		rules:       rules,
		converter:   converter,
		maxFileSize: maxFileSize,
		logger:      logger.With("system", "discovery"),
	}
}

// Discover walks every source attached to the session, deduplicates by
// content fingerprint (first seen wins, across runs), classifies new
// documents, and persists the merged inventory and session stats.
func (d *Discoverer) Discover(ctx context.Context, sessionID uuid.UUID) (*Inventory, error) {
	session, err := d.store.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	inv := &Inventory{}
	if _, err := d.store.LoadRecord(ctx, sessionID, sessions.RecordDocuments, inv); err != nil {
		return nil, err
	}
	inv.Errors = nil // per-file errors are per-run, not accumulated

	seen := make(map[string]uuid.UUID, len(inv.Documents))
	indexed := make(map[string]bool, len(inv.Documents)+len(inv.Duplicates))
	for _, doc := range inv.Documents {
		seen[doc.Fingerprint] = doc.ID
		indexed[doc.Path] = true
	}
	for _, dup := range inv.Duplicates {
		indexed[dup.Path] = true
	}

	for _, source := range session.Sources {
		switch source.Kind {
		case sessions.SourcePath, sessions.SourceUpload:
			d.scanPath(ctx, sessionID, source.Locator, inv, seen, indexed)
		case sessions.SourceLink:
			inv.Errors = append(inv.Errors, FileError{
				Path:        source.Locator,
				Kind:        "unresolvable_link",
				Message:     "link sources are not fetched by discovery",
				Remediation: "download the linked document and attach it as a path source",
			})
		}
	}

	if err := d.store.SaveRecord(ctx, sessionID, sessions.RecordDocuments, inv); err != nil {
		return nil, err
	}

	if _, err := d.store.Mutate(ctx, sessionID, func(s *sessions.Session) error {
		s.Stats.DocumentsFound = len(inv.Documents)
		s.Stats.DuplicatesSkipped = len(inv.Duplicates)
		return nil
	}); err != nil {
		return nil, err
	}

	d.logger.InfoContext(
		ctx, "discovery complete",
		"session", sessionID,
		"documents", len(inv.Documents),
		"duplicates", len(inv.Duplicates),
		"errors", len(inv.Errors),
	)
	return inv, nil
}

// Reclassify applies a manual classification correction to one document.
func (d *Discoverer) Reclassify(ctx context.Context, sessionID, documentID uuid.UUID, label string) (*Document, error) {
	inv := &Inventory{}
	ok, err := d.store.LoadRecord(ctx, sessionID, sessions.RecordDocuments, inv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}

	doc, found := inv.Find(documentID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}

	doc.Label = label
	doc.Confidence = 1.0
	doc.Method = MethodManual

	if err := d.store.SaveRecord(ctx, sessionID, sessions.RecordDocuments, inv); err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "document reclassified", "session", sessionID, "document", documentID, "label", label)
	return doc, nil
}

func (d *Discoverer) scanPath(
	ctx context.Context,
	sessionID uuid.UUID,
	root string,
	inv *Inventory,
	seen map[string]uuid.UUID,
	indexed map[string]bool,
) {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			inv.Errors = append(inv.Errors, readError(path, err))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		d.scanFile(ctx, sessionID, path, entry, inv, seen, indexed)
		return nil
	})

	// WalkDir only returns errors for the root itself or cancellation;
	// per-file errors were already accumulated.
	if err != nil && !errors.Is(err, context.Canceled) {
		inv.Errors = append(inv.Errors, readError(root, err))
	}
}

func (d *Discoverer) scanFile(
	ctx context.Context,
	sessionID uuid.UUID,
	path string,
	entry fs.DirEntry,
	inv *Inventory,
	seen map[string]uuid.UUID,
	indexed map[string]bool,
) {
	if indexed[path] {
		return
	}

	info, err := entry.Info()
	if err != nil {
		inv.Errors = append(inv.Errors, readError(path, err))
		return
	}

	if d.maxFileSize > 0 && info.Size() > d.maxFileSize {
		inv.Errors = append(inv.Errors, FileError{
			Path:        path,
			Kind:        "file_too_large",
			Message:     fmt.Sprintf("%s: %d bytes exceeds limit %d", ErrFileTooLarge, info.Size(), d.maxFileSize),
			Remediation: "split the file or raise discovery.max_file_size",
		})
		return
	}

	fp, err := fingerprint.File(path)
	if err != nil {
		inv.Errors = append(inv.Errors, readError(path, err))
		return
	}

	if originalID, dup := seen[fp]; dup {
		inv.Duplicates = append(inv.Duplicates, Duplicate{
			Path:        path,
			Fingerprint: fp,
			OriginalID:  originalID,
		})
		indexed[path] = true
		return
	}

	candidate := Candidate{Path: path, Filename: entry.Name()}

	textLength := 0
	pageCount := 0
	if d.converter != nil && d.converter.Supports(path) {
		result, err := d.converter.Convert(ctx, path)
		if err != nil {
			// The file still enters the inventory as unclassifiable
			// content; the error travels with the result set.
			inv.Errors = append(inv.Errors, FileError{
				Path:        path,
				Kind:        "conversion_failed",
				Message:     err.Error(),
				Remediation: "file may be corrupted; verify it opens in a standard viewer",
			})
		} else {
			candidate.Text = result.Text
			textLength = len(result.Text)
			pageCount = result.PageCount
		}
	}

	label, conf, method := d.rules.Classify(candidate)

	doc := Document{
		ID:           uuid.New(),
		SessionID:    sessionID,
		Path:         path,
		Filename:     entry.Name(),
		Fingerprint:  fp,
		SizeBytes:    info.Size(),
		Label:        label,
		Confidence:   conf,
		Method:       method,
		TextLength:   textLength,
		PageCount:    pageCount,
		DiscoveredAt: time.Now().UTC(),
	}

	inv.Documents = append(inv.Documents, doc)
	seen[fp] = doc.ID
	indexed[path] = true
}

func readError(path string, err error) FileError {
	return FileError{
		Path:        path,
		Kind:        "unreadable",
		Message:     fmt.Sprintf("%s: %v", ErrUnreadable, err),
		Remediation: "check the file exists and is readable by the review process",
	}
}
