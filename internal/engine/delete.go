package engine

import (
	"context"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/lock"
	"github.com/xuanyiying/storax/internal/trash"
	"github.com/xuanyiying/storax/pkg/errors"
)

// DeleteEngine implements deferred delete-to-trash and permanent delete,
// both of a live location and of an already-parked trash entry.
type DeleteEngine struct {
	locks *lock.Manager
	trash *trash.Manager
}

// NewDeleteEngine creates a DeleteEngine.
func NewDeleteEngine(locks *lock.Manager, t *trash.Manager) *DeleteEngine {
	return &DeleteEngine{locks: locks, trash: t}
}

// ToTrash delegates to the trash manager. It takes no lock, and the trash
// manager takes none either: concurrent ToTrash calls on the same location
// are not serialized against each other.
func (e *DeleteEngine) ToTrash(ctx context.Context, bl trash.BackendLister, loc backend.Location) (trash.Entry, error) {
	return e.trash.MoveToTrash(ctx, bl, loc)
}

// PermanentDelete locks on "permanent_delete::{location}" and calls
// backend delete directly, bypassing trash.
func (e *DeleteEngine) PermanentDelete(ctx context.Context, bl backend.Backend, loc backend.Location) (bool, error) {
	key := lock.PermanentDeleteKey(loc)

	var ok bool
	lockErr := e.locks.WithLock(ctx, key, 0, func() error {
		ok = bl.Delete(ctx, loc)
		if !ok {
			return errors.New(errors.IOError, "delete: permanent delete failed for %s", loc)
		}
		return nil
	})
	if lockErr != nil {
		return false, lock.AsTyped(lockErr)
	}
	return ok, nil
}

// PermanentDeleteFromTrash locks on "trash_delete::{parked}" and purges
// entry via the trash manager (parked object removal + index row removal).
func (e *DeleteEngine) PermanentDeleteFromTrash(ctx context.Context, entry trash.Entry) (bool, error) {
	key := lock.TrashDeleteKey(entry.ParkedLocation)

	lockErr := e.locks.WithLock(ctx, key, 0, func() error {
		return e.trash.PurgeEntry(ctx, entry)
	})
	if lockErr != nil {
		return false, lock.AsTyped(lockErr)
	}
	return true, nil
}
