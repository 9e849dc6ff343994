// Package file persists the registry snapshot as a JSON document on local
// disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"workerhub/internal/workers/models"
	"workerhub/internal/workers/store"
	"workerhub/pkg/platform/sentinel"
)

// Store writes the snapshot to path. Each write goes to a temporary file in
// the same directory which is then renamed over path, so a crash mid-write
// leaves either the previous or the new document, never a partial one.
type Store struct {
	path string
}

// New constructs a file-backed snapshot store.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the canonical snapshot location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file is reported as sentinel.ErrNotFound.
func (s *Store) Load(_ context.Context) ([]models.Worker, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", s.path, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	return store.Decode(data)
}

// Write atomically replaces the snapshot with workers.
func (s *Store) Write(ctx context.Context, workers []models.Worker) error {
	data, err := store.Encode(workers)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("promote snapshot: %w", err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry for the rename. Not every platform
// supports fsync on directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
