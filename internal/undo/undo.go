// Package undo implements a bounded, persistent undo/redo log: two stacks
// of tagged, self-contained actions, mirrored to disk as two JSON arrays
// and mutated under a single mutex.
//
// The inversion and replay functions themselves are NOT in this package —
// they need the engines, the trash manager, and backend lookups, all of
// which belong to the orchestrator that registers actions here.
package undo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/pkg/atomicfile"
)

// Kind tags which payload an Action carries.
type Kind string

const (
	KindCreate Kind = "create"
	KindRename Kind = "rename"
	KindMove   Kind = "move"
	KindCopy   Kind = "copy"
	KindDelete Kind = "delete"
)

// CreateAction records enough to trash the created node (undo) or recreate
// an empty node of the same type (redo).
type CreateAction struct {
	Location backend.Location `json:"location"`
	Type     backend.NodeType `json:"type"`
}

// RenameAction's From is the post-rename (current) location and To is the
// pre-rename (original) location — this reads backwards from what a
// reader expects, but the convention is kept literal rather than renaming
// the fields, so inverting it is a matter of swapping which side supplies
// the name and which supplies the parent.
type RenameAction struct {
	From backend.Location `json:"from"`
	To   backend.Location `json:"to"`
}

// MoveAction has the same From/To sense as RenameAction, generalized to a
// possible parent-directory change.
type MoveAction struct {
	From backend.Location `json:"from"`
	To   backend.Location `json:"to"`
}

// CopyAction records only the copy's destination: undo trashes it, redo
// is not possible (re-running the copy isn't information the log keeps).
type CopyAction struct {
	Location backend.Location `json:"location"`
}

// DeleteAction records both sides of a to_trash: undo restores the parked
// object to its original location, redo re-trashes it.
type DeleteAction struct {
	Original backend.Location `json:"original"`
	Parked   backend.Location `json:"parked"`
}

// Action is a tagged union: exactly one payload field is set, matching Kind.
type Action struct {
	Kind   Kind          `json:"kind"`
	Create *CreateAction `json:"create,omitempty"`
	Rename *RenameAction `json:"rename,omitempty"`
	Move   *MoveAction   `json:"move,omitempty"`
	Copy   *CopyAction   `json:"copy,omitempty"`
	Delete *DeleteAction `json:"delete,omitempty"`
}

// Invert attempts to reverse action, returning whether the reversal
// succeeded.
type Invert func(Action) bool

// Log is the dual-stack undo/redo log. The top of each stack is the last
// element of the slice.
type Log struct {
	mu       sync.Mutex
	undoPath string
	redoPath string
	undo     []Action
	redo     []Action
	capacity int
}

// NewLog creates a Log rooted at dir, loading any existing undo/redo
// stacks already on disk.
func NewLog(dir string, capacity int) (*Log, error) {
	l := &Log{
		undoPath: filepath.Join(dir, "undo_stack.json"),
		redoPath: filepath.Join(dir, "redo_stack.json"),
		capacity: capacity,
	}

	undo, err := readStack(l.undoPath)
	if err != nil {
		return nil, err
	}
	redo, err := readStack(l.redoPath)
	if err != nil {
		return nil, err
	}
	l.undo = undo
	l.redo = redo
	return l, nil
}

// Register pushes action onto the undo stack, clears the redo stack, and
// evicts the oldest undo entry if the stack now exceeds capacity.
func (l *Log) Register(action Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.undo = append(l.undo, action)
	if l.capacity > 0 && len(l.undo) > l.capacity {
		l.undo = l.undo[len(l.undo)-l.capacity:]
	}
	l.redo = nil

	return l.persist()
}

// UndoLast peeks the top of the undo stack and calls invert on it. If
// invert reports success, the action moves from the undo stack to the
// redo stack and both stacks are persisted. Returns false, nil if the
// undo stack is empty or invert declines.
func (l *Log) UndoLast(invert Invert) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.undo) == 0 {
		return false, nil
	}
	top := l.undo[len(l.undo)-1]

	if !invert(top) {
		return false, nil
	}

	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, top)
	return true, l.persist()
}

// RedoLast is the mirror of UndoLast: peeks the top of the redo stack,
// calls replay, and on success moves the action back to the undo stack.
func (l *Log) RedoLast(replay Invert) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.redo) == 0 {
		return false, nil
	}
	top := l.redo[len(l.redo)-1]

	if !replay(top) {
		return false, nil
	}

	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, top)
	return true, l.persist()
}

// CanUndo reports whether the undo stack is non-empty.
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}

// UndoCount returns the current undo stack depth.
func (l *Log) UndoCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo)
}

// RedoCount returns the current redo stack depth.
func (l *Log) RedoCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo)
}

// Clear empties both stacks and persists the change.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo = nil
	l.redo = nil
	return l.persist()
}

func (l *Log) persist() error {
	if err := writeStack(l.undoPath, l.undo); err != nil {
		return err
	}
	return writeStack(l.redoPath, l.redo)
}

func readStack(path string) ([]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		// Corrupt or partial stack file: start fresh rather than fail
		// startup over a history file.
		return nil, nil
	}
	return actions, nil
}

func writeStack(path string, actions []Action) error {
	if actions == nil {
		actions = []Action{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	return atomicfile.Write(path, data, 0o644)
}
