package engine

import (
	"context"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/conflict"
	"github.com/xuanyiying/storax/internal/journal"
	"github.com/xuanyiying/storax/internal/lock"
)

// BackendLister is the capability the rename and move engines need: the
// base mutation contract plus enough listing to resolve conflicts and
// compute directory sizes themselves, since the backend's own Rename and
// Move report only success/failure.
type BackendLister interface {
	backend.Backend
	backend.Lister
}

// RenameEngine renames a node within its current directory.
type RenameEngine struct {
	locks   *lock.Manager
	journal *journal.Manager
}

// NewRenameEngine creates a RenameEngine.
func NewRenameEngine(locks *lock.Manager, j *journal.Manager) *RenameEngine {
	return &RenameEngine{locks: locks, journal: j}
}

// Rename locks on "rename::{source}", resolves the final name itself (so
// it can report where the node ended up), begins a journal record, and
// calls backend rename. Returns the resolved final
// location on success.
func (e *RenameEngine) Rename(ctx context.Context, bl BackendLister, source backend.Location, newName string, policy backend.ConflictPolicy, manual string) (backend.Location, bool, error) {
	key := lock.RenameKey(source)
	parent, currentName := backend.Split(source)

	var final backend.Location
	var ok bool
	lockErr := e.locks.WithLock(ctx, key, 0, func() error {
		finalName, resolved := conflict.Resolve(func(n string) bool {
			if n == currentName {
				return false
			}
			return bl.Exists(ctx, parent, n)
		}, newName, policy, manual)
		if !resolved {
			return nil
		}

		target := backend.Join(parent, finalName)
		h, err := e.journal.BeginRename(journal.RenamePayload{
			Source: source, Target: target, NewName: finalName, Policy: policy, Manual: manual,
		})
		if err != nil {
			return err
		}

		// Under every policy but REPLACE the resolved name is free under
		// this lock; pass PolicyFail so the backend doesn't re-resolve and
		// risk a different outcome than the one just journaled. REPLACE
		// resolves to the existing name, so it is passed through for the
		// backend to overwrite.
		backendPolicy := backend.PolicyFail
		if policy == backend.PolicyReplace {
			backendPolicy = backend.PolicyReplace
		}
		ok = bl.Rename(ctx, source, finalName, backendPolicy, "")
		if !ok {
			return nil
		}
		final = target
		return e.journal.Complete(h)
	})
	if lockErr != nil {
		return "", false, lock.AsTyped(lockErr)
	}
	return final, ok, nil
}
