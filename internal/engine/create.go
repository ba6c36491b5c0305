// Package engine implements the five atomic and transactional operations
// the orchestrator drives: create, rename, delete, copy, move. Each
// engine acquires its own lock key, leaves a durable intent record for
// anything non-atomic, and calls the backend.
package engine

import (
	"context"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/journal"
	"github.com/xuanyiying/storax/internal/lock"
)

// CreateEngine creates nodes under lock, recording a journal intent so a
// crash between the backend call and commit is recoverable.
type CreateEngine struct {
	locks   *lock.Manager
	journal *journal.Manager
}

// NewCreateEngine creates a CreateEngine.
func NewCreateEngine(locks *lock.Manager, j *journal.Manager) *CreateEngine {
	return &CreateEngine{locks: locks, journal: j}
}

// Create locks on "create::{parent}/{name}", begins a journal record,
// calls backend create, and commits or leaves the record for recovery on
// failure.
func (e *CreateEngine) Create(ctx context.Context, bl backend.Backend, parent backend.Location, name string, nodeType backend.NodeType, policy backend.ConflictPolicy, manual string) (backend.CreateResult, error) {
	key := lock.CreateKey(parent, name)

	var result backend.CreateResult
	lockErr := e.locks.WithLock(ctx, key, 0, func() error {
		h, err := e.journal.BeginCreate(journal.CreatePayload{
			Parent: parent, Name: name, Type: nodeType, Policy: policy, Manual: manual,
		})
		if err != nil {
			return err
		}

		result = bl.Create(ctx, parent, name, nodeType, policy, manual)
		if !result.Success {
			// Leave the journal record: recovery will delete it once it
			// observes the target still doesn't exist.
			return nil
		}
		return e.journal.Complete(h)
	})
	if lockErr != nil {
		return backend.CreateResult{}, lock.AsTyped(lockErr)
	}
	return result, result.Err
}
