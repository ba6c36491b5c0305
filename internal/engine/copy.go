package engine

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/conflict"
	"github.com/xuanyiying/storax/internal/lock"
	"github.com/xuanyiying/storax/internal/walstore"
	"github.com/xuanyiying/storax/pkg/errors"
	"github.com/xuanyiying/storax/pkg/fileutil"
)

const (
	copyChunkSize         = 512 * 1024
	copyWALSyncDelta      = 1024 * 1024
	copyPauseSleep        = 100 * time.Millisecond
	copyAdaptiveThreshold = 0.3
)

// CopyProgress reports one transfer tick for a running or resumed copy job.
type CopyProgress struct {
	JobID  string
	Source backend.Location
	Target backend.Location
	Copied int64
	Total  int64
}

// CopyResult is the terminal outcome of a copy job.
type CopyResult struct {
	Target backend.Location
	Err    error
}

// copyControl is the poll flags a running copy's chunk loop checks between
// reads.
type copyControl struct {
	mu        sync.Mutex
	cancelled bool
	paused    bool
}

func (c *copyControl) cancel()           { c.mu.Lock(); c.cancelled = true; c.mu.Unlock() }
func (c *copyControl) pause()            { c.mu.Lock(); c.paused = true; c.mu.Unlock() }
func (c *copyControl) resume()           { c.mu.Lock(); c.paused = false; c.mu.Unlock() }
func (c *copyControl) isCancelled() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.cancelled }
func (c *copyControl) isPaused() bool    { c.mu.Lock(); defer c.mu.Unlock(); return c.paused }

// CopyJob is a handle to a running or already-finished copy. Quick-copy
// jobs have no JobID and no control: they finish before CopyAdaptive
// returns, so Cancel/Pause/Resume on them always report false.
type CopyJob struct {
	JobID      string
	Progress   <-chan CopyProgress
	progressCh chan CopyProgress
	control    *copyControl
	done       chan CopyResult

	waitOnce sync.Once
	result   CopyResult
}

// Wait blocks until the job finishes and returns its outcome. Safe to call
// from more than one goroutine (the orchestrator's watcher and the caller
// both do); every caller sees the same result.
func (j *CopyJob) Wait() (backend.Location, error) {
	j.waitOnce.Do(func() { j.result = <-j.done })
	return j.result.Target, j.result.Err
}

// Cancel flips the job's cancelled flag. Returns false for a quick-copy
// job (already finished, nothing to cancel).
func (j *CopyJob) Cancel() bool {
	if j.control == nil {
		return false
	}
	j.control.cancel()
	return true
}

// Pause flips the job's paused flag.
func (j *CopyJob) Pause() bool {
	if j.control == nil {
		return false
	}
	j.control.pause()
	return true
}

// Resume clears the job's paused flag.
func (j *CopyJob) Resume() bool {
	if j.control == nil {
		return false
	}
	j.control.resume()
	return true
}

// CopyEngine implements an adaptive copy: a synchronous quick-copy for
// small single files, or a resumable,
// WAL-backed transactional copy for directories, large transfers, or
// callers that asked for progress.
type CopyEngine struct {
	locks       *lock.Manager
	wal         *walstore.CopyStore
	cacheDir    string
	concurrency int64

	bpsOnce sync.Once
	bps     int64

	mu   sync.Mutex
	jobs map[string]*CopyJob
}

// NewCopyEngine creates a CopyEngine. concurrency bounds the dedicated
// I/O pool used for directory-size computation, quick-copy directory
// recursion, and post-copy integrity verification; <= 0 defaults to 4.
func NewCopyEngine(locks *lock.Manager, wal *walstore.CopyStore, cacheDir string, concurrency int64) *CopyEngine {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &CopyEngine{locks: locks, wal: wal, cacheDir: cacheDir, concurrency: concurrency, jobs: make(map[string]*CopyJob)}
}

func (e *CopyEngine) writeBps() int64 {
	e.bpsOnce.Do(func() {
		e.bps = fileutil.MeasureWriteSpeed(e.cacheDir)
		if e.bps <= 0 {
			e.bps = fileutil.FallbackWriteBPS
		}
	})
	return e.bps
}

// CopyAdaptive is the public entry point. It locks on
// "copy::{source}->{dest_parent}/{new_name}", resolves the final name,
// computes the total byte count, and decides between quick-copy and a
// transactional WAL-backed copy.
func (e *CopyEngine) CopyAdaptive(ctx context.Context, bl BackendLister, source, destParent backend.Location, newName string, policy backend.ConflictPolicy, manual string, forceProgress bool) (*CopyJob, error) {
	if backend.Detect(source) != backend.KindPath || backend.Detect(destParent) != backend.KindPath {
		return nil, errors.New(errors.BackendUnsupported, "copy: byte-level copy is only supported on the path backend")
	}

	key := lock.CopyKey(source, destParent, newName)
	if err := e.locks.Acquire(ctx, key, 0); err != nil {
		return nil, lock.AsTyped(err)
	}
	release := func() { e.locks.Release(key) }

	srcStat, err := bl.Stat(ctx, source)
	if err != nil {
		release()
		return nil, errors.Wrap(errors.NotFound, err, "copy: stat source %s", source)
	}

	finalName, ok := conflict.Resolve(func(n string) bool {
		return bl.Exists(ctx, destParent, n)
	}, newName, policy, manual)
	if !ok {
		release()
		return nil, errors.New(errors.ConflictDeclined, "copy: conflict declined for %s/%s", destParent, newName)
	}

	target := backend.Join(destParent, finalName)

	total, err := e.computeTotal(ctx, string(source), srcStat.IsDirectory)
	if err != nil {
		release()
		return nil, errors.Wrap(errors.IOError, err, "copy: computing size of %s", source)
	}

	threshold := int64(float64(e.writeBps()) * copyAdaptiveThreshold)
	adaptive := srcStat.IsDirectory || total > threshold || forceProgress

	if !adaptive {
		defer release()
		return e.quickCopy(string(source), string(target))
	}

	return e.startTransactional(ctx, release, string(source), string(target), total, srcStat.IsDirectory)
}

// Cancel, Pause, and Resume flip a running job's control flags by job id,
// returning false for unknown jobs.
func (e *CopyEngine) Cancel(jobID string) bool { return e.withJob(jobID, (*copyControl).cancel) }
func (e *CopyEngine) Pause(jobID string) bool  { return e.withJob(jobID, (*copyControl).pause) }
func (e *CopyEngine) Resume(jobID string) bool { return e.withJob(jobID, (*copyControl).resume) }

func (e *CopyEngine) withJob(jobID string, fn func(*copyControl)) bool {
	e.mu.Lock()
	job, ok := e.jobs[jobID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	fn(job.control)
	return true
}

// Recover restarts every pending copy WAL record: it re-acquires the
// transfer's lock key, registers a fresh control, and resumes the copy
// from the target's actual on-disk size.
func (e *CopyEngine) Recover(ctx context.Context) ([]*CopyJob, error) {
	recs, err := e.wal.List()
	if err != nil {
		return nil, err
	}

	var jobs []*CopyJob
	for _, rec := range recs {
		destParent, finalName := backend.Split(rec.Target)
		key := lock.CopyKey(rec.Source, destParent, finalName)
		if err := e.locks.Acquire(ctx, key, 0); err != nil {
			continue
		}
		release := func(k string) func() { return func() { e.locks.Release(k) } }(key)

		job := &CopyJob{JobID: rec.JobID, control: &copyControl{}, done: make(chan CopyResult, 1)}
		job.progressCh = make(chan CopyProgress, 16)
		job.Progress = job.progressCh

		e.mu.Lock()
		e.jobs[rec.JobID] = job
		e.mu.Unlock()

		rec := rec
		go e.run(ctx, release, job, rec)
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (e *CopyEngine) quickCopy(source, target string) (*CopyJob, error) {
	isDir, err := isDirectory(source)
	if err != nil {
		return nil, errors.Wrap(errors.NotFound, err, "copy: stat source %s", source)
	}

	if err := e.copyRecursiveVerified(context.Background(), source, target, isDir); err != nil {
		os.RemoveAll(target)
		return nil, err
	}

	progressCh := make(chan CopyProgress)
	close(progressCh)
	done := make(chan CopyResult, 1)
	done <- CopyResult{Target: backend.Location(target)}

	return &CopyJob{Progress: progressCh, progressCh: progressCh, done: done}, nil
}

// copyRecursiveVerified implements the quick-copy path: native file-copy,
// then whole-file SHA-256 comparison; directories recurse
// through the dedicated I/O pool.
func (e *CopyEngine) copyRecursiveVerified(ctx context.Context, source, target string, isDir bool) error {
	if !isDir {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := fileutil.CopyFile(source, target); err != nil {
			return err
		}
		return e.verify(source, target)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(source)
	if err != nil {
		return err
	}

	// The semaphore bounds file I/O only. Holding a permit across a
	// recursive directory descent would deadlock once nesting exceeds the
	// pool size: every level would hold a permit while waiting on children
	// that can't get one.
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(e.concurrency)
	for _, entry := range entries {
		entry := entry
		srcChild := filepath.Join(source, entry.Name())
		dstChild := filepath.Join(target, entry.Name())
		isChildDir := entry.IsDir()
		g.Go(func() error {
			if isChildDir {
				return e.copyRecursiveVerified(gctx, srcChild, dstChild, true)
			}
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return e.copyRecursiveVerified(gctx, srcChild, dstChild, false)
		})
	}
	return g.Wait()
}

func (e *CopyEngine) verify(source, target string) error {
	srcHash, err := fileutil.HashFile(source)
	if err != nil {
		return err
	}
	dstHash, err := fileutil.HashFile(target)
	if err != nil {
		return err
	}
	if srcHash != dstHash {
		os.Remove(target)
		return errors.New(errors.IntegrityMismatch, "copy: integrity mismatch for %s", target)
	}
	return nil
}

func (e *CopyEngine) startTransactional(ctx context.Context, release func(), source, target string, total int64, isDir bool) (*CopyJob, error) {
	jobID := uuid.NewString()
	rec := walstore.CopyRecord{
		JobID: jobID, Source: backend.Location(source), Target: backend.Location(target),
		TotalBytes: total, IsDirectory: isDir,
	}
	if err := e.wal.Write(rec); err != nil {
		release()
		return nil, err
	}

	job := &CopyJob{JobID: jobID, control: &copyControl{}, done: make(chan CopyResult, 1)}
	job.progressCh = make(chan CopyProgress, 16)
	job.Progress = job.progressCh

	e.mu.Lock()
	e.jobs[jobID] = job
	e.mu.Unlock()

	go e.run(ctx, release, job, rec)

	return job, nil
}

func (e *CopyEngine) run(ctx context.Context, release func(), job *CopyJob, rec walstore.CopyRecord) {
	var err error
	if rec.IsDirectory {
		err = e.runDirectoryTransactional(ctx, job, rec)
	} else {
		copied := int64(0)
		lastSync := rec.CopiedBytes
		err = e.copyFileChunk(ctx, job, &rec, string(rec.Source), string(rec.Target), rec.TotalBytes, &copied, &lastSync)
		if err == nil {
			err = e.verify(string(rec.Source), string(rec.Target))
		}
	}
	e.finish(release, job, rec, err)
}

type copyFileEntry struct {
	src, dst string
	size     int64
}

// runDirectoryTransactional enumerates source top-down, streaming each
// file through copyFileChunk (which resumes from the destination file's
// own size), then validates the global byte total and runs a concurrent
// per-file integrity pass.
func (e *CopyEngine) runDirectoryTransactional(ctx context.Context, job *CopyJob, rec walstore.CopyRecord) error {
	source := string(rec.Source)
	target := string(rec.Target)

	var files []copyFileEntry
	err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(target, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, copyFileEntry{src: path, dst: dst, size: info.Size()})
		return nil
	})
	if err != nil {
		return err
	}

	var copied int64
	lastSync := rec.CopiedBytes
	for _, f := range files {
		if err := e.copyFileChunk(ctx, job, &rec, f.src, f.dst, f.size, &copied, &lastSync); err != nil {
			return err
		}
	}

	srcTotal, err := fileutil.DirSize(source)
	if err != nil {
		return err
	}
	dstTotal, err := fileutil.DirSize(target)
	if err != nil {
		return err
	}
	if srcTotal != dstTotal {
		return errors.New(errors.IntegrityMismatch, "copy: directory byte totals differ: source %d destination %d", srcTotal, dstTotal)
	}

	return e.verifyDirectoryConcurrent(ctx, files)
}

func (e *CopyEngine) verifyDirectoryConcurrent(ctx context.Context, files []copyFileEntry) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(e.concurrency)
	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return e.verify(f.src, f.dst)
		})
	}
	return g.Wait()
}

// copyFileChunk streams one file (whole-file copy, or one member of a
// directory copy) in copyChunkSize reads, resuming from the destination
// file's current size, checking cancel/pause between reads, and
// rewriting the WAL every copyWALSyncDelta bytes of global progress.
func (e *CopyEngine) copyFileChunk(ctx context.Context, job *CopyJob, rec *walstore.CopyRecord, src, dst string, fileSize int64, copied, lastSync *int64) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	startAt := int64(0)
	if info, err := os.Stat(dst); err == nil {
		startAt = info.Size()
		if startAt > fileSize {
			startAt = fileSize
		}
	}
	*copied += startAt

	if startAt >= fileSize {
		e.emitProgress(job, rec, *copied)
		return nil
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()
	if _, err := srcFile.Seek(startAt, io.SeekStart); err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer dstFile.Close()
	if _, err := dstFile.Seek(startAt, io.SeekStart); err != nil {
		return err
	}

	buf := make([]byte, copyChunkSize)
	for {
		if job.control.isCancelled() {
			return errors.New(errors.Cancelled, "copy: job %s cancelled", rec.JobID)
		}
		for job.control.isPaused() {
			time.Sleep(copyPauseSleep)
			if job.control.isCancelled() {
				return errors.New(errors.Cancelled, "copy: job %s cancelled", rec.JobID)
			}
		}

		n, readErr := srcFile.Read(buf)
		if n > 0 {
			if _, werr := dstFile.Write(buf[:n]); werr != nil {
				return werr
			}
			*copied += int64(n)
			e.emitProgress(job, rec, *copied)

			if *copied-*lastSync >= copyWALSyncDelta {
				rec.CopiedBytes = *copied
				if err := e.wal.Write(*rec); err != nil {
					return err
				}
				*lastSync = *copied
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	return dstFile.Sync()
}

func (e *CopyEngine) emitProgress(job *CopyJob, rec *walstore.CopyRecord, copied int64) {
	select {
	case job.progressCh <- CopyProgress{JobID: rec.JobID, Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.TotalBytes}:
	default:
	}
}

func (e *CopyEngine) finish(release func(), job *CopyJob, rec walstore.CopyRecord, err error) {
	defer release()

	if job.JobID != "" {
		e.mu.Lock()
		delete(e.jobs, job.JobID)
		e.mu.Unlock()
	}

	if err != nil {
		os.RemoveAll(string(rec.Target))
	}
	if rec.JobID != "" {
		e.wal.Remove(rec.JobID)
	}

	close(job.progressCh)
	job.done <- CopyResult{Target: rec.Target, Err: err}
	close(job.done)
}

// computeTotal returns the byte count driving the adaptive-mode decision
// and progress totals: a plain stat for a file, a semaphore-bounded
// recursive walk for a directory.
func (e *CopyEngine) computeTotal(ctx context.Context, source string, isDir bool) (int64, error) {
	if !isDir {
		info, err := os.Stat(source)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}
	return e.dirSizeConcurrent(ctx, source)
}

func (e *CopyEngine) dirSizeConcurrent(ctx context.Context, root string) (int64, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(e.concurrency)
	var mu sync.Mutex
	var total int64

	for _, entry := range entries {
		entry := entry
		child := filepath.Join(root, entry.Name())
		g.Go(func() error {
			// Same permit discipline as copyRecursiveVerified: directories
			// recurse without holding one, files take one for the stat.
			if entry.IsDir() {
				sz, err := e.dirSizeConcurrent(gctx, child)
				if err != nil {
					return err
				}
				mu.Lock()
				total += sz
				mu.Unlock()
				return nil
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			info, err := entry.Info()
			if err != nil {
				return err
			}
			mu.Lock()
			total += info.Size()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total, nil
}

func isDirectory(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
