package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record categories persisted as separate files within a session
// directory. Session metadata itself lives in session.json.
const (
	RecordDocuments   = "documents"
	RecordEvidence    = "evidence"
	RecordValidation  = "validation"
	RecordAnnotations = "annotations"
)

const sessionFile = "session.json"

// Store is the persistence contract for review sessions. All mutating
// operations on one session serialize behind a per-session lock;
// operations on different sessions never block each other.
type Store interface {
	Create(ctx context.Context, session *Session) error
	Find(ctx context.Context, id uuid.UUID) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Mutate runs a read-modify-write cycle on the session under its
	// lock and persists the result atomically.
	Mutate(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error)

	// UpdateProgress merges the given stage updates into the session's
	// workflow progress, touching only the named stages.
	UpdateProgress(ctx context.Context, id uuid.UUID, overlay WorkflowProgress) (*Session, error)

	// SaveRecord persists one record category for the session.
	SaveRecord(ctx context.Context, id uuid.UUID, category string, v any) error
	// LoadRecord loads one record category into v. Returns false when the
	// category has never been written.
	LoadRecord(ctx context.Context, id uuid.UUID, category string, v any) (bool, error)

	// Dir returns the session's directory path.
	Dir(id uuid.UUID) string
}

type fileStore struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewStore creates a file-backed session store rooted at dir.
func NewStore(dir string, logger *slog.Logger) (Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	return &fileStore{
		root:   dir,
		logger: logger.With("system", "sessions"),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

// lock returns the advisory mutex for one session, creating it on first
// use. Distinct sessions get distinct mutexes.
func (s *fileStore) lock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *fileStore) Dir(id uuid.UUID) string {
	return filepath.Join(s.root, id.String())
}

func (s *fileStore) Create(ctx context.Context, session *Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Progress == nil {
		session.Progress = WorkflowProgress{}
	}

	dir := s.Dir(session.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	l := s.lock(session.ID)
	l.Lock()
	defer l.Unlock()

	if err := writeJSON(filepath.Join(dir, sessionFile), session); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "session created", "id", session.ID, "project", session.ProjectName)
	return nil
}

func (s *fileStore) Find(_ context.Context, id uuid.UUID) (*Session, error) {
	return s.load(id)
}

func (s *fileStore) List(_ context.Context) ([]Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}

	result := make([]Session, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		session, err := s.load(id)
		if err != nil {
			// A corrupted session must stay visible to the caller, not
			// be silently skipped.
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		result = append(result, *session)
	}

	return result, nil
}

func (s *fileStore) Delete(ctx context.Context, id uuid.UUID) error {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	dir := s.Dir(id)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("stat session directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete session directory: %w", err)
	}

	s.logger.InfoContext(ctx, "session deleted", "id", id)
	return nil
}

func (s *fileStore) Mutate(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	session, err := s.load(id)
	if err != nil {
		return nil, err
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	session.UpdatedAt = time.Now().UTC()
	if err := writeJSON(filepath.Join(s.Dir(id), sessionFile), session); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *fileStore) UpdateProgress(ctx context.Context, id uuid.UUID, overlay WorkflowProgress) (*Session, error) {
	return s.Mutate(ctx, id, func(session *Session) error {
		if session.Progress == nil {
			session.Progress = WorkflowProgress{}
		}
		session.Progress.Merge(overlay)
		return nil
	})
}

func (s *fileStore) SaveRecord(_ context.Context, id uuid.UUID, category string, v any) error {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	dir := s.Dir(id)
	if _, err := os.Stat(filepath.Join(dir, sessionFile)); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return writeJSON(filepath.Join(dir, category+".json"), v)
}

func (s *fileStore) LoadRecord(_ context.Context, id uuid.UUID, category string, v any) (bool, error) {
	path := filepath.Join(s.Dir(id), category+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s record: %w", category, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s record: %v", ErrCorrupted, category, err)
	}

	return true, nil
}

// load reads and structurally validates session metadata. Missing state
// is ErrNotFound; present-but-invalid state is ErrCorrupted and is never
// skipped.
func (s *fileStore) load(id uuid.UUID) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), sessionFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	if session.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing session id", ErrCorrupted)
	}
	if session.ID != id {
		return nil, fmt.Errorf("%w: id mismatch (%s on disk)", ErrCorrupted, session.ID)
	}
	if session.Progress == nil {
		session.Progress = WorkflowProgress{}
	}

	return &session, nil
}

// writeJSON persists v atomically: write to a temp file in the target
// directory, then rename over the destination.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".attest-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	return nil
}
