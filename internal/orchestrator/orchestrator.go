// Package orchestrator is the facade tying the operation engines together: it wires
// the lock manager, the two backends, the journal, the copy/move WAL
// stores, the trash store and manager, the undo/redo log, and the five
// operation engines, and exposes its public method surface
//
// It is the sole registrant of undo actions, the sole caller of startup
// recovery, and the sole source of the two event types a client observes:
// transferProgress and undoStateChanged.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/config"
	"github.com/xuanyiying/storax/internal/engine"
	"github.com/xuanyiying/storax/internal/journal"
	"github.com/xuanyiying/storax/internal/lock"
	"github.com/xuanyiying/storax/internal/trash"
	"github.com/xuanyiying/storax/internal/undo"
	"github.com/xuanyiying/storax/internal/walstore"
	pkgerrors "github.com/xuanyiying/storax/pkg/errors"
)

// Orchestrator is the facade described above. All exported methods are
// safe for concurrent use: exclusion is provided per-path by the lock
// manager, not by a method-level mutex.
type Orchestrator struct {
	backends map[backend.Kind]engine.BackendLister

	locks      *lock.Manager
	journal    *journal.Manager
	copyWAL    *walstore.CopyStore
	moveWAL    *walstore.MoveStore
	trashStore *trash.Store
	trashMgr   *trash.Manager
	undoLog    *undo.Log

	createEngine *engine.CreateEngine
	renameEngine *engine.RenameEngine
	deleteEngine *engine.DeleteEngine
	copyEngine   *engine.CopyEngine
	moveEngine   *engine.MoveEngine

	log    zerolog.Logger
	events EventSink
}

// New builds an Orchestrator from cfg, one BackendLister per backend kind
// the caller wants to drive, and the per-backend location of that
// backend's private trash area. A nil events sink defaults to NoopEventSink.
func New(cfg *config.Config, backends map[backend.Kind]engine.BackendLister, trashRoots map[backend.Kind]backend.Location, log zerolog.Logger, events EventSink) (*Orchestrator, error) {
	if events == nil {
		events = NoopEventSink{}
	}

	for _, dir := range []string{cfg.JournalDir, cfg.CopyWALDir, cfg.MoveWALDir, cfg.UndoDir, cfg.CacheDir, filepath.Dir(cfg.TrashIndex)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pkgerrors.WrapError(err, "orchestrator: preparing directory %s", dir)
		}
	}

	locks := lock.New()
	locks.SetDefaultTimeout(cfg.LockTimeout)
	j := journal.New(cfg.JournalDir, log)
	copyWAL := walstore.NewCopyStore(cfg.CopyWALDir)
	moveWAL := walstore.NewMoveStore(cfg.MoveWALDir)
	trashStore := trash.NewStore(cfg.TrashIndex)

	o := &Orchestrator{
		backends:   backends,
		locks:      locks,
		journal:    j,
		copyWAL:    copyWAL,
		moveWAL:    moveWAL,
		trashStore: trashStore,
		log:        log,
		events:     events,
	}

	trashResolve := func(kind backend.Kind) (trash.BackendLister, bool) {
		bl, ok := o.backends[kind]
		return bl, ok
	}
	o.trashMgr = trash.NewManager(trashStore, trashRoots, trashResolve, cfg.TrashMaxAge, cfg.TrashMaxSize)

	o.createEngine = engine.NewCreateEngine(locks, j)
	o.renameEngine = engine.NewRenameEngine(locks, j)
	o.deleteEngine = engine.NewDeleteEngine(locks, o.trashMgr)
	o.copyEngine = engine.NewCopyEngine(locks, copyWAL, cfg.CacheDir, 0)
	o.moveEngine = engine.NewMoveEngine(locks, moveWAL)

	undoLog, err := undo.NewLog(cfg.UndoDir, cfg.UndoCapacity)
	if err != nil {
		return nil, err
	}
	o.undoLog = undoLog

	return o, nil
}

func (o *Orchestrator) resolveBackend(kind backend.Kind) (engine.BackendLister, bool) {
	bl, ok := o.backends[kind]
	return bl, ok
}

func (o *Orchestrator) backendFor(loc backend.Location) (engine.BackendLister, error) {
	bl, ok := o.resolveBackend(backend.Detect(loc))
	if !ok {
		return nil, pkgerrors.New(pkgerrors.BackendUnsupported, "orchestrator: no backend registered for %s", loc)
	}
	return bl, nil
}

func (o *Orchestrator) notifyUndoState() {
	o.events.UndoStateChanged(o.undoLog.CanUndo(), o.undoLog.CanRedo())
}

func (o *Orchestrator) registerUndo(a undo.Action) {
	if err := o.undoLog.Register(a); err != nil {
		o.log.Warn().Err(err).Str("kind", string(a.Kind)).Msg("failed to persist undo log entry")
	}
}

// ListDirectory enumerates target's immediate children.
func (o *Orchestrator) ListDirectory(ctx context.Context, target backend.Location) ([]backend.Node, error) {
	bl, err := o.backendFor(target)
	if err != nil {
		return nil, err
	}
	return bl.List(ctx, target)
}

// TraverseDirectory walks target breadth-first down to maxDepth levels
// (maxDepth < 0 means unlimited — documented default).
func (o *Orchestrator) TraverseDirectory(ctx context.Context, target backend.Location, maxDepth int) ([]backend.Node, error) {
	bl, err := o.backendFor(target)
	if err != nil {
		return nil, err
	}
	return backend.Traverse(ctx, bl, target, maxDepth)
}

// Create creates name under parent and registers a Create undo action on
// success.
func (o *Orchestrator) Create(ctx context.Context, parent backend.Location, name string, nodeType backend.NodeType, policy backend.ConflictPolicy, manual string) (backend.CreateResult, error) {
	defer o.notifyUndoState()

	if err := pkgerrors.FirstError(validateLocation(parent), validateName(name), validateNodeType(nodeType), validatePolicy(policy, manual)); err != nil {
		return backend.CreateResult{}, err
	}

	bl, err := o.backendFor(parent)
	if err != nil {
		return backend.CreateResult{}, err
	}

	result, err := o.createEngine.Create(ctx, bl, parent, name, nodeType, policy, manual)
	if err == nil && result.Success {
		o.registerUndo(undo.Action{Kind: undo.KindCreate, Create: &undo.CreateAction{Location: result.Location, Type: nodeType}})
	}
	return result, err
}

// Rename renames source within its current directory and registers a
// Rename undo action on success.
func (o *Orchestrator) Rename(ctx context.Context, source backend.Location, newName string, policy backend.ConflictPolicy, manual string) (bool, error) {
	defer o.notifyUndoState()

	if err := pkgerrors.FirstError(validateLocation(source), validateName(newName), validatePolicy(policy, manual)); err != nil {
		return false, err
	}

	bl, err := o.backendFor(source)
	if err != nil {
		return false, err
	}

	final, ok, err := o.renameEngine.Rename(ctx, bl, source, newName, policy, manual)
	if ok && err == nil {
		o.registerUndo(undo.Action{Kind: undo.KindRename, Rename: &undo.RenameAction{From: final, To: source}})
	}
	return ok, err
}

// Move relocates source to destParent/newName, same-backend rename or
// cross-backend copy+delete, and registers a Move undo action on success.
func (o *Orchestrator) Move(ctx context.Context, source, destParent backend.Location, newName string, policy backend.ConflictPolicy, manual string) (bool, error) {
	defer o.notifyUndoState()

	if err := pkgerrors.FirstError(validateLocation(source), validateLocation(destParent), validateName(newName), validatePolicy(policy, manual)); err != nil {
		return false, err
	}

	srcBl, err := o.backendFor(source)
	if err != nil {
		return false, err
	}
	destBl, err := o.backendFor(destParent)
	if err != nil {
		return false, err
	}

	result, err := o.moveEngine.Move(ctx, source, destParent, newName, policy, manual, srcBl, destBl)
	if result.Ok && err == nil {
		o.registerUndo(undo.Action{Kind: undo.KindMove, Move: &undo.MoveAction{From: result.Destination, To: source}})
	}
	return result.Ok, err
}

// CopyHandle is returned by Copy: JobID is empty for a quick (small-file)
// copy that already completed by the time Copy returns; Job exposes its
// progress channel and controls regardless.
type CopyHandle struct {
	JobID string
	Job   *engine.CopyJob
}

// Copy starts an adaptive copy. It returns as soon as
// the job is registered (quick-copies finish essentially immediately;
// transactional copies run in the background) and spawns a watcher that
// forwards progress to the event sink and registers a Copy undo action
// on success once the job finishes.
func (o *Orchestrator) Copy(ctx context.Context, source, destParent backend.Location, newName string, policy backend.ConflictPolicy, manual string, forceProgress bool) (CopyHandle, error) {
	if err := pkgerrors.FirstError(validateLocation(source), validateLocation(destParent), validateName(newName), validatePolicy(policy, manual)); err != nil {
		o.notifyUndoState()
		return CopyHandle{}, err
	}

	bl, err := o.backendFor(source)
	if err != nil {
		o.notifyUndoState()
		return CopyHandle{}, err
	}

	job, err := o.copyEngine.CopyAdaptive(ctx, bl, source, destParent, newName, policy, manual, forceProgress)
	if err != nil {
		o.notifyUndoState()
		return CopyHandle{}, err
	}

	o.watchCopy(job)
	return CopyHandle{JobID: job.JobID, Job: job}, nil
}

// CancelCopy, PauseCopy, and ResumeCopy flip a running job's control flags
// by job id, reporting false for unknown jobs.
func (o *Orchestrator) CancelCopy(jobID string) bool { return o.copyEngine.Cancel(jobID) }
func (o *Orchestrator) PauseCopy(jobID string) bool  { return o.copyEngine.Pause(jobID) }
func (o *Orchestrator) ResumeCopy(jobID string) bool { return o.copyEngine.Resume(jobID) }

// watchCopy drains job's progress channel into transferProgress events and
// registers the Copy undo action (or none, on failure) once it finishes,
// then fires undoStateChanged — the one case where that event lags a
// method call's return, because the mutation itself is still in flight.
func (o *Orchestrator) watchCopy(job *engine.CopyJob) {
	go func() {
		for p := range job.Progress {
			percent := 0.0
			if p.Total > 0 {
				percent = float64(p.Copied) / float64(p.Total) * 100
			}
			o.events.TransferProgress(job.JobID, percent)
		}

		target, err := job.Wait()
		if err == nil {
			o.registerUndo(undo.Action{Kind: undo.KindCopy, Copy: &undo.CopyAction{Location: target}})
		}
		o.notifyUndoState()
	}()
}

// Delete moves target to trash and registers a Delete undo action on
// success.
func (o *Orchestrator) Delete(ctx context.Context, target backend.Location) (bool, error) {
	defer o.notifyUndoState()

	if err := validateLocation(target); err != nil {
		return false, err
	}

	bl, err := o.backendFor(target)
	if err != nil {
		return false, err
	}

	entry, err := o.deleteEngine.ToTrash(ctx, bl, target)
	if err != nil {
		return false, err
	}

	o.registerUndo(undo.Action{Kind: undo.KindDelete, Delete: &undo.DeleteAction{Original: entry.OriginalLocation, Parked: entry.ParkedLocation}})
	return true, nil
}

// PermanentlyDelete deletes path directly, bypassing trash. Not undoable.
func (o *Orchestrator) PermanentlyDelete(ctx context.Context, path backend.Location) (bool, error) {
	defer o.notifyUndoState()

	if err := validateLocation(path); err != nil {
		return false, err
	}

	bl, err := o.backendFor(path)
	if err != nil {
		return false, err
	}
	return o.deleteEngine.PermanentDelete(ctx, bl, path)
}

// ListTrash returns every currently trashed entry.
func (o *Orchestrator) ListTrash() ([]trash.Entry, error) {
	return o.trashMgr.List(context.Background())
}

// RestoreFromTrash restores entry to its original location.
func (o *Orchestrator) RestoreFromTrash(ctx context.Context, entry trash.Entry) (bool, error) {
	defer o.notifyUndoState()

	if err := o.trashMgr.Restore(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}

// PermanentlyDeleteFromTrash purges entry's parked object and index row.
func (o *Orchestrator) PermanentlyDeleteFromTrash(ctx context.Context, entry trash.Entry) (bool, error) {
	defer o.notifyUndoState()
	return o.deleteEngine.PermanentDeleteFromTrash(ctx, entry)
}

// EmptyTrash iterates the trash list and permanently deletes each entry,
// returning the conjunction of outcomes.
func (o *Orchestrator) EmptyTrash(ctx context.Context) (bool, error) {
	defer o.notifyUndoState()

	entries, err := o.trashMgr.List(ctx)
	if err != nil {
		return false, err
	}

	var errs []error
	for _, entry := range entries {
		if _, err := o.deleteEngine.PermanentDeleteFromTrash(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	o.trashMgr.CleanOrphans(ctx)

	combined := pkgerrors.CombineErrors(errs)
	return combined == nil, combined
}

// Undo pops and inverts the most recent undo action.
func (o *Orchestrator) Undo(ctx context.Context) (bool, error) {
	defer o.notifyUndoState()
	return o.undoLog.UndoLast(o.invertUndo(ctx))
}

// Redo replays the most recently undone action.
func (o *Orchestrator) Redo(ctx context.Context) (bool, error) {
	defer o.notifyUndoState()
	return o.undoLog.RedoLast(o.invertRedo(ctx))
}

func (o *Orchestrator) CanUndo() bool  { return o.undoLog.CanUndo() }
func (o *Orchestrator) CanRedo() bool  { return o.undoLog.CanRedo() }
func (o *Orchestrator) UndoCount() int { return o.undoLog.UndoCount() }
func (o *Orchestrator) RedoCount() int { return o.undoLog.RedoCount() }

// ClearUndo empties both stacks.
func (o *Orchestrator) ClearUndo() error {
	defer o.notifyUndoState()
	return o.undoLog.Clear()
}

// invertUndo implements the "Undo" direction of the action-inversion
// table, dispatched by action kind.
func (o *Orchestrator) invertUndo(ctx context.Context) undo.Invert {
	return func(a undo.Action) bool {
		switch a.Kind {
		case undo.KindCreate:
			bl, err := o.backendFor(a.Create.Location)
			if err != nil {
				return false
			}
			_, err = o.trashMgr.MoveToTrash(ctx, bl, a.Create.Location)
			return err == nil

		case undo.KindRename:
			bl, err := o.backendFor(a.Rename.From)
			if err != nil {
				return false
			}
			_, toName := backend.Split(a.Rename.To)
			_, ok, err := o.renameEngine.Rename(ctx, bl, a.Rename.From, toName, backend.PolicyFail, "")
			return ok && err == nil

		case undo.KindMove:
			srcBl, err := o.backendFor(a.Move.From)
			if err != nil {
				return false
			}
			destBl, err := o.backendFor(a.Move.To)
			if err != nil {
				return false
			}
			parent, name := backend.Split(a.Move.To)
			res, err := o.moveEngine.Move(ctx, a.Move.From, parent, name, backend.PolicyFail, "", srcBl, destBl)
			return res.Ok && err == nil

		case undo.KindCopy:
			bl, err := o.backendFor(a.Copy.Location)
			if err != nil {
				return false
			}
			_, err = o.trashMgr.MoveToTrash(ctx, bl, a.Copy.Location)
			return err == nil

		case undo.KindDelete:
			return o.restoreSynthesized(ctx, a.Delete)

		default:
			return false
		}
	}
}

// invertRedo implements the "Redo" direction of the same table.
func (o *Orchestrator) invertRedo(ctx context.Context) undo.Invert {
	return func(a undo.Action) bool {
		switch a.Kind {
		case undo.KindCreate:
			bl, err := o.backendFor(a.Create.Location)
			if err != nil {
				return false
			}
			parent, name := backend.Split(a.Create.Location)
			result, err := o.createEngine.Create(ctx, bl, parent, name, a.Create.Type, backend.PolicyFail, "")
			return result.Success && err == nil

		case undo.KindRename:
			bl, err := o.backendFor(a.Rename.To)
			if err != nil {
				return false
			}
			_, fromName := backend.Split(a.Rename.From)
			_, ok, err := o.renameEngine.Rename(ctx, bl, a.Rename.To, fromName, backend.PolicyFail, "")
			return ok && err == nil

		case undo.KindMove:
			srcBl, err := o.backendFor(a.Move.To)
			if err != nil {
				return false
			}
			destBl, err := o.backendFor(a.Move.From)
			if err != nil {
				return false
			}
			parent, name := backend.Split(a.Move.From)
			res, err := o.moveEngine.Move(ctx, a.Move.To, parent, name, backend.PolicyFail, "", srcBl, destBl)
			return res.Ok && err == nil

		case undo.KindCopy:
			// Re-running a copy isn't information the log keeps: not
			// invertible.
			return false

		case undo.KindDelete:
			bl, err := o.backendFor(a.Delete.Original)
			if err != nil {
				return false
			}
			_, err = o.trashMgr.MoveToTrash(ctx, bl, a.Delete.Original)
			return err == nil

		default:
			return false
		}
	}
}

// restoreSynthesized rebuilds a trash.Entry from a DeleteAction's two
// locations (the undo log itself doesn't keep one) and restores it. When
// the parked object still has its index row, that row is restored instead,
// so the restore also clears it from the trash listing.
func (o *Orchestrator) restoreSynthesized(ctx context.Context, d *undo.DeleteAction) bool {
	if entry, ok := o.trashMgr.FindByParked(d.Parked); ok {
		return o.trashMgr.Restore(ctx, entry) == nil
	}

	bl, err := o.backendFor(d.Parked)
	if err != nil {
		return false
	}

	isDir := false
	if stat, err := bl.Stat(ctx, d.Parked); err == nil {
		isDir = stat.IsDirectory
	}

	_, name := backend.Split(d.Original)
	entry := trash.Entry{
		ID:               uuid.NewString(),
		DisplayName:      name,
		BackendKind:      bl.Kind(),
		IsDirectory:      isDir,
		OriginalLocation: d.Original,
		ParkedLocation:   d.Parked,
	}

	return o.trashMgr.Restore(ctx, entry) == nil
}

// RecoveryReport summarizes what RecoverPendingOperations did at startup.
type RecoveryReport struct {
	Journal  []journal.Outcome
	CopyJobs []*engine.CopyJob
	MoveErr  error
}

// RecoverPendingOperations drains the journal and the copy/move WAL
// directories before the orchestrator accepts new requests. Recovered copy
// jobs are wired into the same watcher new jobs get, so their completion
// still registers undo actions and events.
func (o *Orchestrator) RecoverPendingOperations(ctx context.Context) (RecoveryReport, error) {
	exists := func(loc backend.Location) bool {
		bl, err := o.backendFor(loc)
		if err != nil {
			return false
		}
		parent, name := backend.Split(loc)
		return bl.Exists(ctx, parent, name)
	}

	createFn := func(p journal.CreatePayload) bool {
		bl, err := o.backendFor(p.Parent)
		if err != nil {
			return false
		}
		return bl.Create(ctx, p.Parent, p.Name, p.Type, backend.PolicyFail, p.Manual).Success
	}

	renameFn := func(p journal.RenamePayload) bool {
		bl, err := o.backendFor(p.Source)
		if err != nil {
			return false
		}
		return bl.Rename(ctx, p.Source, p.NewName, backend.PolicyReplace, "")
	}

	outcomes, err := o.journal.Recover(ctx, exists, createFn, renameFn)
	if err != nil {
		return RecoveryReport{}, err
	}

	copyJobs, err := o.copyEngine.Recover(ctx)
	if err != nil {
		return RecoveryReport{Journal: outcomes}, err
	}
	for _, job := range copyJobs {
		o.watchCopy(job)
	}

	moveErr := o.moveEngine.RecoverMoves(ctx, o.resolveBackend)

	return RecoveryReport{Journal: outcomes, CopyJobs: copyJobs, MoveErr: moveErr}, nil
}
