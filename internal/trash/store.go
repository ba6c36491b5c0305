// Package trash implements the deferred-delete index and
// the manager that parks objects into a per-app trash area and enforces
// age/size quotas.
package trash

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/pkg/atomicfile"
)

// Entry is a single trashed item.
type Entry struct {
	ID               string           `json:"id"`
	DisplayName      string           `json:"display_name"`
	BackendKind      backend.Kind     `json:"backend_kind"`
	IsDirectory      bool             `json:"is_directory"`
	TrashedAt        int64            `json:"trashed_at"` // epoch ms
	Size             *int64           `json:"size,omitempty"`
	OriginalLocation backend.Location `json:"original_location"`
	ParkedLocation   backend.Location `json:"parked_location"`
}

// Store is a single JSON-array file holding trash entries. All mutations
// go through one in-process mutex: read whole, modify, write whole,
// atomic-rename. A corrupt or partial file parses to empty and is
// rewritten on the next mutation.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns every entry currently in the index.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Add appends e to the index.
func (s *Store) Add(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, _ := s.readLocked()
	entries = append(entries, e)
	return s.writeLocked(entries)
}

// Remove deletes the entry with the given id, reporting whether it was
// found.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return false, err
	}

	out := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		return false, nil
	}
	return true, s.writeLocked(out)
}

// Replace atomically swaps the entire index for entries, used by quota/age
// eviction passes that remove several entries in one go.
func (s *Store) Replace(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(entries)
}

func (s *Store) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading trash index %s: %w", s.path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Corrupt or partial file: treat as empty.
		return nil, nil
	}
	return entries, nil
}

func (s *Store) writeLocked(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling trash index: %w", err)
	}
	return atomicfile.Write(s.path, data, 0o644)
}
