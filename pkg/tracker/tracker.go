// Package tracker maintains the persistent record of user-deleted
// content so the sync engine never silently re-fetches it.
package tracker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/mebx/contentsync/pkg/content"
)

// Tracker owns the deletion record. It is the only writer to the
// persisted file; every mutation rewrites the whole record atomically.
type Tracker struct {
	mu      sync.RWMutex
	path    string
	deleted map[string][]string // category -> ordered filenames
	logger  *slog.Logger
}

// New loads the deletion record from path, creating the file with empty
// category lists when absent. A corrupt or unreadable record degrades
// to an empty one; the next successful persist heals the file.
func New(path string, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating tracker directory: %w", err)
		}
	}

	t := &Tracker{path: path, deleted: emptyRecord(), logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := t.persistLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		logger.Warn("deletion record unreadable, starting empty", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &t.deleted); err != nil {
			logger.Warn("deletion record corrupt, starting empty", "path", path, "error", err)
			t.deleted = emptyRecord()
		}
		// Known categories always have an entry; unknown keys from the
		// file are preserved but not interpreted.
		for _, cat := range content.Categories() {
			if _, ok := t.deleted[string(cat)]; !ok {
				t.deleted[string(cat)] = []string{}
			}
		}
	}

	return t, nil
}

func emptyRecord() map[string][]string {
	rec := make(map[string][]string)
	for _, cat := range content.Categories() {
		rec[string(cat)] = []string{}
	}
	return rec
}

// MarkDeleted records a filename as user-deleted. Idempotent; the
// record is persisted synchronously either way.
func (t *Tracker) MarkDeleted(cat content.Category, filename string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := string(cat)
	if !slices.Contains(t.deleted[key], filename) {
		t.deleted[key] = append(t.deleted[key], filename)
		t.logger.Info("marked as deleted", "category", cat, "file", filename)
	}
	return t.persistLocked()
}

// MarkRestored clears a filename from the deletion record after a
// successful redownload. Idempotent when absent.
func (t *Tracker) MarkRestored(cat content.Category, filename string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := string(cat)
	if i := slices.Index(t.deleted[key], filename); i >= 0 {
		t.deleted[key] = slices.Delete(t.deleted[key], i, i+1)
		t.logger.Info("removed from deleted list", "category", cat, "file", filename)
	}
	return t.persistLocked()
}

// IsDeleted reports whether a filename is marked deleted.
func (t *Tracker) IsDeleted(cat content.Category, filename string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Contains(t.deleted[string(cat)], filename)
}

// ListDeleted returns the deleted filenames for a category in the order
// they were marked.
func (t *Tracker) ListDeleted(cat content.Category) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.deleted[string(cat)])
}

// ListDeletedAll returns the full record keyed by category.
func (t *Tracker) ListDeletedAll() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]string, len(t.deleted))
	for k, v := range t.deleted {
		out[k] = slices.Clone(v)
	}
	return out
}

// persistLocked writes the record to a temp file in the same directory
// and renames it over the real one. Callers must hold mu.
func (t *Tracker) persistLocked() error {
	data, err := json.MarshalIndent(t.deleted, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding deletion record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".deleted_content-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}
	return nil
}
