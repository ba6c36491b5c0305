// Package lock derives canonical per-operation lock keys on top of
// pkg/filelock's keyed mutex manager, so two operations touching the same
// node never race.
package lock

import (
	stderrors "errors"
	"fmt"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/pkg/errors"
	"github.com/xuanyiying/storax/pkg/filelock"
)

// Manager is the lock manager engines acquire operation-scoped keys from.
type Manager = filelock.LockManager

// New creates a Manager.
func New() *Manager {
	return filelock.NewLockManager()
}

// AsTyped maps filelock.ErrTimeout onto the LockTimeout error code the
// orchestrator surfaces; any other error passes through unchanged.
func AsTyped(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, filelock.ErrTimeout) {
		return errors.Wrap(errors.LockTimeout, err, "lock acquisition timed out")
	}
	return err
}

// CreateKey is the lock key for creating name under parent.
func CreateKey(parent backend.Location, name string) string {
	return fmt.Sprintf("create::%s/%s", parent, name)
}

// RenameKey is the lock key for renaming source.
func RenameKey(source backend.Location) string {
	return fmt.Sprintf("rename::%s", source)
}

// PermanentDeleteKey is the lock key for permanently deleting loc.
func PermanentDeleteKey(loc backend.Location) string {
	return fmt.Sprintf("permanent_delete::%s", loc)
}

// TrashDeleteKey is the lock key for purging a parked trash object.
func TrashDeleteKey(parked backend.Location) string {
	return fmt.Sprintf("trash_delete::%s", parked)
}

// CopyKey is the lock key for a copy from source to dest_parent/new_name.
func CopyKey(source, destParent backend.Location, newName string) string {
	return fmt.Sprintf("copy::%s->%s/%s", source, destParent, newName)
}

// MoveKey is the lock key for a move from source to dest_parent/new_name.
func MoveKey(source, destParent backend.Location, newName string) string {
	return fmt.Sprintf("move::%s->%s/%s", source, destParent, newName)
}
