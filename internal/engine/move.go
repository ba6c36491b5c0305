package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/conflict"
	"github.com/xuanyiying/storax/internal/lock"
	"github.com/xuanyiying/storax/internal/walstore"
	"github.com/xuanyiying/storax/pkg/errors"
)

// MoveResult is the terminal outcome of a move. Destination is the final
// resolved location, populated on success.
type MoveResult struct {
	Destination backend.Location
	Ok          bool
}

// MoveEngine implements a single backend rename when source and
// destination share a backend, or a two-phase WAL-backed copy-then-delete
// transaction when they don't.
type MoveEngine struct {
	locks *lock.Manager
	wal   *walstore.MoveStore
}

// NewMoveEngine creates a MoveEngine.
func NewMoveEngine(locks *lock.Manager, wal *walstore.MoveStore) *MoveEngine {
	return &MoveEngine{locks: locks, wal: wal}
}

// Move resolves the final name against destParent, then either issues a
// single backend rename (same backend) or runs the cross-backend
// copy+delete transaction.
func (e *MoveEngine) Move(ctx context.Context, source, destParent backend.Location, newName string, policy backend.ConflictPolicy, manual string, srcBackend, destBackend BackendLister) (MoveResult, error) {
	key := lock.MoveKey(source, destParent, newName)

	var result MoveResult
	var opErr error
	lockErr := e.locks.WithLock(ctx, key, 0, func() error {
		if backend.SameBackend(source, destParent) {
			result, opErr = e.sameBackendMove(ctx, srcBackend, source, destParent, newName, policy, manual)
			return nil
		}
		result, opErr = e.crossBackendMove(ctx, source, destParent, newName, policy, manual, srcBackend, destBackend)
		return nil
	})
	if lockErr != nil {
		return MoveResult{}, lock.AsTyped(lockErr)
	}
	return result, opErr
}

// sameBackendMove is the atomic in-place move shortcut: a single backend
// Mover.Move call.
func (e *MoveEngine) sameBackendMove(ctx context.Context, bl BackendLister, source, destParent backend.Location, newName string, policy backend.ConflictPolicy, manual string) (MoveResult, error) {
	mover, ok := bl.(backend.Mover)
	if !ok {
		return MoveResult{}, errors.New(errors.BackendUnsupported, "move: backend does not support cross-directory move")
	}

	finalName, resolved := conflict.Resolve(func(n string) bool {
		return bl.Exists(ctx, destParent, n)
	}, newName, policy, manual)
	if !resolved {
		return MoveResult{}, errors.New(errors.ConflictDeclined, "move: conflict declined for %s/%s", destParent, newName)
	}

	ok2 := mover.Move(ctx, source, destParent, finalName, backend.PolicyFail, "")
	if !ok2 {
		return MoveResult{}, errors.New(errors.IOError, "move: rename failed for %s -> %s/%s", source, destParent, finalName)
	}

	return MoveResult{Destination: backend.Join(destParent, finalName), Ok: true}, nil
}

// crossBackendMove runs a two-phase transaction: a move-WAL record in
// phase COPYING, a byte-level bridge copy (internal/engine/bridge.go) under
// PolicyReplace (the name is already resolved so PolicyReplace can't
// clobber anything else), a phase flip to DELETING, then the source
// delete. A failed delete rolls back the copied destination best-effort.
//
// The bridge, not the WAL-backed CopyEngine, drives this copy: CopyEngine's
// chunked resume/WAL machinery only ever operates between two path
// locations (CopyAdaptive rejects anything else), since its resumability
// depends on seeking into a destination file by byte offset — an operation
// the handle backend's DocumentTree never exposes. The cross-backend case
// is exactly source-is-path/dest-is-handle or the reverse (the two backend
// kinds this engine knows), so bridgeCopy streams through each backend's
// ByteReader/ByteWriter capability instead.
func (e *MoveEngine) crossBackendMove(ctx context.Context, source, destParent backend.Location, newName string, policy backend.ConflictPolicy, manual string, srcBackend, destBackend BackendLister) (MoveResult, error) {
	finalName, resolved := conflict.Resolve(func(n string) bool {
		return destBackend.Exists(ctx, destParent, n)
	}, newName, policy, manual)
	if !resolved {
		return MoveResult{}, errors.New(errors.ConflictDeclined, "move: conflict declined for %s/%s", destParent, newName)
	}

	srcStat, err := srcBackend.Stat(ctx, source)
	if err != nil {
		return MoveResult{}, errors.Wrap(errors.NotFound, err, "move: stat source %s", source)
	}

	destination := backend.Join(destParent, finalName)
	jobID := uuid.NewString()
	rec := walstore.MoveRecord{JobID: jobID, Source: source, Destination: destination, Phase: walstore.PhaseCopying, IsDirectory: srcStat.IsDirectory}
	if err := e.wal.Write(rec); err != nil {
		return MoveResult{}, err
	}

	if _, err := bridgeCopy(ctx, srcBackend, destBackend, source, destParent, finalName, srcStat.IsDirectory); err != nil {
		e.wal.Remove(jobID)
		return MoveResult{}, err
	}

	rec.Phase = walstore.PhaseDeleting
	if err := e.wal.Write(rec); err != nil {
		return MoveResult{}, err
	}

	if !srcBackend.Delete(ctx, source) {
		destBackend.Delete(ctx, destination) // best effort rollback
		e.wal.Remove(jobID)
		return MoveResult{}, errors.New(errors.IOError, "move: deleting source %s after cross-backend copy", source)
	}

	e.wal.Remove(jobID)
	return MoveResult{Destination: destination, Ok: true}, nil
}

// RecoverMoves inspects each pending move-WAL: a record left in COPYING
// restarts the bridge copy from scratch (bridgeCopy re-creates the
// destination under PolicyReplace, so a partially-streamed destination from
// the interrupted attempt is truncated and re-sent rather than resumed —
// the bridge has no byte-offset resume the way the WAL-backed CopyEngine
// does); a record left in DELETING retries only the source delete.
func (e *MoveEngine) RecoverMoves(ctx context.Context, resolve func(backend.Kind) (BackendLister, bool)) error {
	recs, err := e.wal.List()
	if err != nil {
		return err
	}

	for _, rec := range recs {
		srcBackend, ok := resolve(backend.Detect(rec.Source))
		if !ok {
			continue
		}
		destBackend, ok := resolve(backend.Detect(rec.Destination))
		if !ok {
			continue
		}

		switch rec.Phase {
		case walstore.PhaseCopying:
			destParent, finalName := backend.Split(rec.Destination)
			if _, err := bridgeCopy(ctx, srcBackend, destBackend, rec.Source, destParent, finalName, rec.IsDirectory); err != nil {
				continue
			}
			rec.Phase = walstore.PhaseDeleting
			if err := e.wal.Write(rec); err != nil {
				continue
			}
			fallthrough
		case walstore.PhaseDeleting:
			if srcBackend.Delete(ctx, rec.Source) {
				e.wal.Remove(rec.JobID)
			}
		}
	}
	return nil
}
