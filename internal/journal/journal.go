// Package journal records intent for create and rename — the two
// non-transactional mutations that need a short-lived recovery record
// rather than a full WAL. A record is written before the backend call
// and removed once the mutation is durably complete; on startup, Recover
// drains whatever is left.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/pkg/atomicfile"
)

// Kind identifies the mutation a journal record describes.
type Kind string

const (
	KindCreate Kind = "create"
	KindRename Kind = "rename"
)

// CreatePayload is the intent recorded before Backend.Create runs.
type CreatePayload struct {
	Parent backend.Location      `json:"parent"`
	Name   string                `json:"name"`
	Type   backend.NodeType      `json:"type"`
	Policy backend.ConflictPolicy `json:"policy"`
	Manual string                `json:"manual"`
}

// RenamePayload is the intent recorded before Backend.Rename runs. NewName
// is the name after conflict resolution, and Target is source's directory
// + NewName: the location recovery checks to tell whether the rename has
// already landed.
type RenamePayload struct {
	Source  backend.Location       `json:"source"`
	Target  backend.Location       `json:"target"`
	NewName string                 `json:"new_name"`
	Policy  backend.ConflictPolicy `json:"policy"`
	Manual  string                 `json:"manual"`
}

// Record is the on-disk shape of a single pending operation.
type Record struct {
	Kind      Kind           `json:"kind"`
	Completed bool           `json:"completed"`
	Create    *CreatePayload `json:"create,omitempty"`
	Rename    *RenamePayload `json:"rename,omitempty"`
}

// Manager owns the journal directory (storax_journal/). Each
// record lives in its own file named with a monotonic-nanosecond prefix
// and a uuid suffix, so directory listing order is creation order even
// under fast repeated writes.
type Manager struct {
	dir string
	log zerolog.Logger
}

// New creates a Manager rooted at dir.
func New(dir string, log zerolog.Logger) *Manager {
	return &Manager{dir: dir, log: log}
}

// Handle is returned by Begin* and passed to Complete.
type Handle struct {
	id   string
	path string
}

func (m *Manager) newHandle() Handle {
	id := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
	return Handle{id: id, path: filepath.Join(m.dir, id+".json")}
}

// BeginCreate durably records intent to create name under parent before
// the backend call happens.
func (m *Manager) BeginCreate(payload CreatePayload) (Handle, error) {
	h := m.newHandle()
	rec := Record{Kind: KindCreate, Completed: false, Create: &payload}
	if err := m.write(h.path, rec); err != nil {
		return Handle{}, err
	}
	return h, nil
}

// BeginRename durably records intent to rename source before the backend
// call happens.
func (m *Manager) BeginRename(payload RenamePayload) (Handle, error) {
	h := m.newHandle()
	rec := Record{Kind: KindRename, Completed: false, Rename: &payload}
	if err := m.write(h.path, rec); err != nil {
		return Handle{}, err
	}
	return h, nil
}

// Complete marks h's record completed and removes it. Both steps of the
// write/mark/delete triple go through the atomic-rename +
// directory-fsync protocol, so a crash between them still leaves a
// well-formed, idempotently recoverable record.
func (m *Manager) Complete(h Handle) error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading journal record %s: %w", h.path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return atomicfile.Remove(h.path)
	}
	rec.Completed = true
	if err := m.write(h.path, rec); err != nil {
		return err
	}
	return atomicfile.Remove(h.path)
}

// Abandon removes h's record without marking it completed, used when the
// backend call itself failed and there is nothing to replay.
func (m *Manager) Abandon(h Handle) error {
	return atomicfile.Remove(h.path)
}

func (m *Manager) write(path string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling journal record: %w", err)
	}
	return atomicfile.Write(path, data, 0o644)
}

// Outcome describes what Recover did with one on-disk record.
type Outcome struct {
	File   string
	Action string // "deleted", "replayed", "left-ambiguous"
	Err    error
}

// Recover drains the journal directory at startup. exists
// reports whether a node is currently present at loc — callers pass a
// predicate backed by the appropriate backend's Lister.Exists/Stat.
// createFn/renameFn re-invoke the corresponding Backend method.
func (m *Manager) Recover(
	ctx context.Context,
	exists func(loc backend.Location) bool,
	createFn func(CreatePayload) bool,
	renameFn func(RenamePayload) bool,
) ([]Outcome, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal directory %s: %w", m.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var outcomes []Outcome
	for _, name := range names {
		path := filepath.Join(m.dir, name)
		outcomes = append(outcomes, m.recoverOne(ctx, path, exists, createFn, renameFn))
	}
	return outcomes, nil
}

func (m *Manager) recoverOne(
	ctx context.Context,
	path string,
	exists func(loc backend.Location) bool,
	createFn func(CreatePayload) bool,
	renameFn func(RenamePayload) bool,
) Outcome {
	data, err := os.ReadFile(path)
	if err != nil {
		return Outcome{File: path, Action: "deleted", Err: err}
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		m.log.Warn().Str("file", path).Msg("journal record unparsable, discarding")
		atomicfile.Remove(path)
		return Outcome{File: path, Action: "deleted", Err: err}
	}

	if rec.Completed {
		atomicfile.Remove(path)
		return Outcome{File: path, Action: "deleted"}
	}

	switch rec.Kind {
	case KindCreate:
		return m.recoverCreate(path, rec.Create, exists, createFn)
	case KindRename:
		return m.recoverRename(path, rec.Rename, exists, renameFn)
	default:
		m.log.Warn().Str("file", path).Str("kind", string(rec.Kind)).Msg("unknown journal record kind, discarding")
		atomicfile.Remove(path)
		return Outcome{File: path, Action: "deleted"}
	}
}

func (m *Manager) recoverCreate(path string, p *CreatePayload, exists func(backend.Location) bool, createFn func(CreatePayload) bool) Outcome {
	target := backend.Location(joinLocation(p.Parent, p.Name))
	if exists(target) {
		atomicfile.Remove(path)
		return Outcome{File: path, Action: "deleted"}
	}

	ok := createFn(*p)
	if ok {
		atomicfile.Remove(path)
		return Outcome{File: path, Action: "replayed"}
	}
	return Outcome{File: path, Action: "left-ambiguous", Err: fmt.Errorf("recovery create failed for %s", target)}
}

func (m *Manager) recoverRename(path string, p *RenamePayload, exists func(backend.Location) bool, renameFn func(RenamePayload) bool) Outcome {
	sourceExists := exists(p.Source)
	targetExists := exists(p.Target)

	switch {
	case sourceExists && !targetExists:
		if renameFn(*p) {
			atomicfile.Remove(path)
			return Outcome{File: path, Action: "replayed"}
		}
		return Outcome{File: path, Action: "left-ambiguous", Err: fmt.Errorf("recovery rename failed for %s", p.Source)}
	case !sourceExists && targetExists:
		atomicfile.Remove(path)
		return Outcome{File: path, Action: "deleted"}
	default:
		m.log.Warn().Str("file", path).Str("source", string(p.Source)).Str("target", string(p.Target)).
			Msg("ambiguous rename journal record, leaving for next startup")
		return Outcome{File: path, Action: "left-ambiguous"}
	}
}

func joinLocation(parent backend.Location, name string) string {
	if backend.Detect(parent) == backend.KindHandle {
		return string(parent) + "/" + name
	}
	return filepath.Join(string(parent), name)
}
