// Package walstore persists the copy and move write-ahead-log records:
// one file per in-flight transactional copy
// (copy_wal/{jobId}.wal) and one per in-flight cross-backend move
// (move_wal/{jobId}.wal). Every write goes through the write-temp/fsync/
// rename/fsync-dir protocol in pkg/atomicfile.
package walstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/pkg/atomicfile"
)

// MovePhase is the cross-backend move transaction's two-phase marker.
type MovePhase string

const (
	PhaseCopying  MovePhase = "COPYING"
	PhaseDeleting MovePhase = "DELETING"
)

// CopyRecord is the on-disk shape of an in-flight transactional copy.
type CopyRecord struct {
	JobID       string           `json:"job_id"`
	Source      backend.Location `json:"source"`
	Target      backend.Location `json:"target"`
	TotalBytes  int64            `json:"total_bytes"`
	CopiedBytes int64            `json:"copied_bytes"`
	IsDirectory bool             `json:"is_directory"`
}

// MoveRecord is the on-disk shape of an in-flight cross-backend move.
type MoveRecord struct {
	JobID       string           `json:"job_id"`
	Source      backend.Location `json:"source"`
	Destination backend.Location `json:"destination"`
	Phase       MovePhase        `json:"phase"`
	IsDirectory bool             `json:"is_directory"`
}

// CopyStore owns the copy_wal directory.
type CopyStore struct {
	dir string
}

// NewCopyStore creates a CopyStore rooted at dir.
func NewCopyStore(dir string) *CopyStore { return &CopyStore{dir: dir} }

func (s *CopyStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".wal")
}

// Write atomically persists rec, overwriting any prior record for the
// same job id. The copy engine calls this on job start and again every
// 1 MiB of progress.
func (s *CopyStore) Write(rec CopyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling copy WAL record: %w", err)
	}
	return atomicfile.Write(s.path(rec.JobID), data, 0o644)
}

// Remove deletes the record for jobID, e.g. on successful completion,
// cancellation, or integrity failure cleanup.
func (s *CopyStore) Remove(jobID string) error {
	return atomicfile.Remove(s.path(jobID))
}

// List returns every pending copy record, for startup recovery.
// Unparsable files are skipped (and left in place for operator inspection
// — a copy WAL, unlike a journal record, may represent real in-flight
// bytes worth investigating rather than discarding).
func (s *CopyStore) List() ([]CopyRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading copy WAL directory %s: %w", s.dir, err)
	}

	var recs []CopyRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wal") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var rec CopyRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// MoveStore owns the move_wal directory.
type MoveStore struct {
	dir string
}

// NewMoveStore creates a MoveStore rooted at dir.
func NewMoveStore(dir string) *MoveStore { return &MoveStore{dir: dir} }

func (s *MoveStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".wal")
}

// Write atomically persists rec.
func (s *MoveStore) Write(rec MoveRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling move WAL record: %w", err)
	}
	return atomicfile.Write(s.path(rec.JobID), data, 0o644)
}

// Remove deletes the record for jobID.
func (s *MoveStore) Remove(jobID string) error {
	return atomicfile.Remove(s.path(jobID))
}

// List returns every pending move record, for startup recovery.
func (s *MoveStore) List() ([]MoveRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading move WAL directory %s: %w", s.dir, err)
	}

	var recs []MoveRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wal") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var rec MoveRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
