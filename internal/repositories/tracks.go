package repositories

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/shared"
)

// ParseError reports a state file that exists but does not hold a valid [models.StoreDocument].
//
// It matches [shared.ErrCorruptState] with [errors.Is]. The file is never repaired automatically.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s: %v", shared.ErrCorruptState, e.Path, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{shared.ErrCorruptState, e.Err}
}

// TrackStore persists the [models.StoreDocument] as a single indented JSON file.
//
// The document is read on the first Load after opening or [TrackStore.Reload], and every Save
// rewrites the whole file.
// Tables returned by Load are live views into the document; mutate them and call Save.
type TrackStore struct {
	path   string
	mu     sync.Mutex
	doc    models.StoreDocument
	loaded bool
}

// OpenTrackStore returns a store backed by the file at path. Nothing is read until Load.
func OpenTrackStore(path string) *TrackStore {
	return &TrackStore{path: path}
}

// Path returns the backing file path.
func (s *TrackStore) Path() string {
	return s.path
}

// Load returns the table for userID, creating an empty table when the user is unknown.
//
// An absent file is an empty store. A file that exists but does not parse yields a [*ParseError].
func (s *TrackStore) Load(userID string) (models.UserTrackTable, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.doc.Table(userID), nil
}

// Users returns every user id present in the document, sorted.
func (s *TrackStore) Users() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.doc.Users(), nil
}

// Reload drops the cached document so the next call re-reads the backing file.
//
// Tables returned by earlier Loads are detached from the store afterwards.
func (s *TrackStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = nil
	s.loaded = false
}

// Save serializes the entire document and atomically replaces the backing file.
func (s *TrackStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}

	data, err := shared.MarshalJSON(s.doc, true)
	if err != nil {
		return fmt.Errorf("failed to marshal track state: %w", err)
	}

	return writeFileAtomic(s.path, append(data, '\n'))
}

// ensureLoaded reads the backing file on first use. Callers hold s.mu.
func (s *TrackStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.doc = models.StoreDocument{}
		s.loaded = true
		return nil
	case err != nil:
		return fmt.Errorf("failed to read track state: %w", err)
	}

	var doc models.StoreDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return &ParseError{Path: s.path, Err: err}
	}
	if dec.More() {
		return &ParseError{Path: s.path, Err: fmt.Errorf("unexpected data after document")}
	}

	if doc == nil {
		doc = models.StoreDocument{}
	}
	for userID, table := range doc {
		if table == nil {
			doc[userID] = models.UserTrackTable{}
			continue
		}
		for key, rec := range table {
			if rec == nil {
				delete(table, key)
				continue
			}
			if rec.ID == "" {
				rec.ID = models.ID(key)
			}
		}
	}

	s.doc = doc
	s.loaded = true
	return nil
}

// writeFileAtomic writes data to a temp file beside path, syncs it, and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write track state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync track state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close track state: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set track state permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace track state: %w", err)
	}
	return nil
}
