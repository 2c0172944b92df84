// Package store persists the deployment record as a single JSON document in
// the project's working directory. One project, one record, one file: the
// status and cleanup commands read it, the engine writes it after every
// status transition so a crash leaves the last durable state behind.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

// =============================================================================
// State Store
// =============================================================================

const (
	// StateDir is the per-project metadata directory.
	StateDir = ".slipway"
	// StateFile is the record document inside StateDir.
	StateFile = "state.json"
)

// Store defines the persistence interface for the deployment record.
type Store interface {
	// Load reads the record, returning (nil, nil) when none exists.
	Load() (*domain.AppRecord, error)

	// Save writes the record atomically.
	Save(record *domain.AppRecord) error

	// Clear removes the record. Clearing an absent record is not an error.
	Clear() error

	// Path returns the record file's location, for user-facing messages.
	Path() string
}

// FileStore implements Store on the local filesystem.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at the project directory. The state
// directory is created lazily on first save.
func NewFileStore(projectDir string) *FileStore {
	return &FileStore{dir: filepath.Join(projectDir, StateDir)}
}

// Path returns the record file's location.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, StateFile)
}

// Load reads the record, returning (nil, nil) when none exists.
func (s *FileStore) Load() (*domain.AppRecord, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var record domain.AppRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", s.Path(), err)
	}
	return &record, nil
}

// Save writes the record to a temp file in the same directory and renames it
// over the live file, so readers never observe a half-written document.
func (s *FileStore) Save(record *domain.AppRecord) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, StateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Clear removes the record. Clearing an absent record is not an error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
