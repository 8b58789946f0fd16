// Package checkpoint persists resumable job state to a single well-known
// file. Saves are atomic (temp file + rename) so a reader never observes a
// half-written checkpoint.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go-putusan-scraper/internal/logx"
	"go-putusan-scraper/internal/model"
)

// Store reads and writes the checkpoint file at a fixed path.
type Store struct {
	path string
}

// NewStore creates a Store for path.
func NewStore(path string) *Store { return &Store{path: path} }

// Path returns the checkpoint location.
func (s *Store) Path() string { return s.path }

// Save overwrites the checkpoint with the given state. The write goes to a
// temp file first and is renamed into place.
func (s *Store) Save(records []model.Decision, lastPage, totalPages int) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir checkpoint dir: %w", err)
	}
	cp := model.Checkpoint{
		LastPage:   lastPage,
		TotalPages: totalPages,
		DataCount:  len(records),
		SavedAt:    time.Now(),
		Records:    records,
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cp); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint, or nil when absent. A missing or corrupt file
// is treated as absent, not fatal; corruption is logged. Unknown extra fields
// in the file are ignored.
func (s *Store) Load() *model.Checkpoint {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logx.Warnf("read checkpoint %s: %v", s.path, err)
		}
		return nil
	}
	var cp model.Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		logx.Warnf("corrupt checkpoint %s, ignoring: %v", s.path, err)
		return nil
	}
	return &cp
}
