package documents

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/attestd/attest/internal/sessions"
)

// Watcher re-runs discovery when files appear in a session's path
// sources. Discovery is idempotent under fingerprint dedup, so reacting
// to an event is just another scan.
type Watcher struct {
	store      sessions.Store
	discoverer *Discoverer
	logger     *slog.Logger
}

// NewWatcher creates a source watcher.
func NewWatcher(store sessions.Store, discoverer *Discoverer, logger *slog.Logger) *Watcher {
	return &Watcher{
		store:      store,
		discoverer: discoverer,
		logger:     logger.With("system", "watcher"),
	}
}

// Watch blocks until ctx is cancelled, re-scanning the session whenever a
// file is created or written under one of its path sources.
func (w *Watcher) Watch(ctx context.Context, sessionID uuid.UUID) error {
	session, err := w.store.Find(ctx, sessionID)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	watched := 0
	for _, source := range session.Sources {
		if source.Kind != sessions.SourcePath {
			continue
		}
		if err := fw.Add(source.Locator); err != nil {
			w.logger.WarnContext(ctx, "cannot watch source", "path", source.Locator, "error", err)
			continue
		}
		watched++
	}

	if watched == 0 {
		w.logger.InfoContext(ctx, "no watchable path sources", "session", sessionID)
		return nil
	}

	w.logger.InfoContext(ctx, "watching sources", "session", sessionID, "count", watched)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, err := w.discoverer.Discover(ctx, sessionID); err != nil {
				w.logger.ErrorContext(ctx, "rescan failed", "session", sessionID, "error", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watch error", "session", sessionID, "error", err)
		}
	}
}
