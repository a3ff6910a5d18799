// Package repository implements the Repository Index (spec.md §3
// "Repository", §6 "Repository Index file"): a deduplicated, path-keyed
// JSON file recording the filesystem roots a FIREWHEEL install searches
// for model components. Grounded directly on
// original_source/src/firewheel/control/repository_db.py: one JSON
// array on disk, validated on every read/write, duplicate paths
// ignored on add, missing paths tolerated (and logged) on delete.
package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sandialabs/firewheel-core/pkg/log"
)

// Entry is one repository record. "path" is the only field the wire
// format permits (see spec.md §6); extra keys are a Configuration error.
type Entry struct {
	Path string `json:"path"`
}

// Index is the on-disk, mutex-guarded repository database.
type Index struct {
	mu     sync.Mutex
	dbFile string
	log    zerolog.Logger
}

// Open loads (creating if absent) the repository index at dbFile.
func Open(dbFile string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbFile), 0o755); err != nil {
		return nil, fmt.Errorf("repository index: %w", err)
	}
	idx := &Index{dbFile: dbFile, log: log.WithComponent("repository")}
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		if err := idx.writeLocked(nil); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// readLocked decodes each array element individually with
// DisallowUnknownFields so an entry carrying any key besides "path" is
// rejected as a Configuration error (see the Entry doc comment),
// mirroring the original's `_validate_repository` raising KeyError
// when a record's key set isn't exactly {"path"}.
func (idx *Index) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(idx.dbFile)
	if err != nil {
		return nil, fmt.Errorf("repository index: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		idx.log.Warn().Err(err).Msg("repository index unreadable, treating as empty")
		return nil, nil
	}
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("repository index: malformed entry %s: %w", r, err)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("repository index: entry %s: missing required field %q", r, "path")
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (idx *Index) writeLocked(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("repository index: %w", err)
	}
	return os.WriteFile(idx.dbFile, data, 0o644)
}

// List returns every registered repository entry.
func (idx *Index) List() ([]Entry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.readLocked()
}

// Add validates and inserts entry, ignoring it (returning added=false)
// if the path is already registered.
func (idx *Index) Add(entry Entry) (added bool, err error) {
	if err := validate(entry); err != nil {
		return false, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries, err := idx.readLocked()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Path == entry.Path {
			idx.log.Debug().Str("path", entry.Path).Msg("ignoring duplicate repository")
			return false, nil
		}
	}
	entries = append(entries, entry)
	if err := idx.writeLocked(entries); err != nil {
		return false, err
	}
	idx.log.Debug().Str("path", entry.Path).Msg("added repository")
	return true, nil
}

// Delete removes entry from the index. A path that no longer exists on
// disk is still removed, with a warning rather than an error (spec.md
// §6: "on delete, missing-path warnings are non-fatal").
func (idx *Index) Delete(entry Entry) (removed bool, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries, err := idx.readLocked()
	if err != nil {
		return false, err
	}

	if _, statErr := os.Stat(entry.Path); os.IsNotExist(statErr) {
		idx.log.Warn().Str("path", entry.Path).Msg("repository path does not exist, removing entry anyway")
	}

	out := entries[:0]
	found := false
	for _, e := range entries {
		if e.Path == entry.Path && !found {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		idx.log.Debug().Str("path", entry.Path).Msg("repository did not exist, nothing removed")
		return false, nil
	}
	if err := idx.writeLocked(out); err != nil {
		return false, err
	}
	return true, nil
}

func validate(entry Entry) error {
	if entry.Path == "" {
		return fmt.Errorf("repository entry: missing required field %q", "path")
	}
	abs, err := filepath.Abs(entry.Path)
	if err != nil {
		return fmt.Errorf("repository entry %q: %w", entry.Path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("repository entry %q: path does not exist: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository entry %q: not a directory", abs)
	}
	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("repository entry %q: not readable: %w", abs, err)
	}
	f.Close()
	return nil
}
