package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNotFound is returned when a mission id has no record in the snapshot.
var ErrNotFound = errors.New("mission not found")

// Store is the single source of truth for the agentic state snapshot. It
// loads the backing file once, serves deep copies, and persists every
// mutation through temp-file-plus-rename so a reader never observes a
// partially written document.
//
// There is no cross-process lock. Two Stores (in any processes) sharing a
// state path will silently clobber each other's writes; the caller must
// guarantee a single writer per path. A fresh Store instance is needed to
// observe another process's writes, because the cache is never re-read.
type Store struct {
	path string
	now  func() time.Time

	mu    sync.Mutex
	cache *Snapshot
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store backed by the JSON document at path. The file is not
// read until the first access.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// State returns a deep copy of the full snapshot, loading the backing file
// on first use.
func (s *Store) State() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s.cache.Clone(), nil
}

// Mission returns a deep copy of one mission record, or ErrNotFound.
func (s *Store) Mission(id string) (*Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	m, ok := s.cache.Missions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.Clone(), nil
}

// Update is the only write path. The mutator runs against a working copy of
// the snapshot; if it returns an error nothing is persisted and the cached
// state is untouched. On success the working copy is stamped, persisted, and
// swapped in as the new cache. A deep copy of the result is returned.
func (s *Store) Update(mutate func(*Snapshot) error) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}

	work := s.cache.Clone()
	if err := mutate(work); err != nil {
		return nil, err
	}
	work.LastUpdated = s.now().UTC().Format(time.RFC3339)

	if err := s.persistLocked(work); err != nil {
		return nil, err
	}
	s.cache = work
	return work.Clone(), nil
}

// loadLocked populates the cache from the backing file. A missing or empty
// file self-heals into a fresh empty snapshot that is immediately persisted;
// malformed JSON is fatal and propagates.
func (s *Store) loadLocked() error {
	if s.cache != nil {
		return nil
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return fmt.Errorf("read state file: %w", err)
	}

	if len(data) == 0 {
		fresh := emptySnapshot()
		fresh.LastUpdated = s.now().UTC().Format(time.RFC3339)
		if err := s.persistLocked(fresh); err != nil {
			return err
		}
		s.cache = fresh
		return nil
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	normalize(snap)
	s.cache = snap
	return nil
}

// persistLocked serializes the snapshot to a uniquely named temp file in the
// target directory and renames it over the target path.
func (s *Store) persistLocked(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
