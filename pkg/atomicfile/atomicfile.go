// Package atomicfile implements the write-temp/fsync/rename/fsync-dir
// protocol that every durable log in storax (journal, WAL, trash index,
// undo/redo stacks) relies on: a file under one of those directories either
// fully reflects its last write, or does not exist yet — it is never
// observed half-written.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write atomically replaces path with data: it writes to a sibling ".tmp"
// file, fsyncs it, renames it over path, then fsyncs the containing
// directory so the rename itself is durable.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating temp file %s: %w", tmp, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp file %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsyncing temp file %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}

	return SyncDir(dir)
}

// SyncDir fsyncs a directory, making prior renames/creates/removes within it
// durable. Best-effort on platforms where directory fsync is not meaningful
// (e.g. Windows): the error is swallowed there, matching the common Go idiom
// for cross-platform directory fsync.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening directory %s: %w", dir, err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		if isDirSyncUnsupported(err) {
			return nil
		}
		return fmt.Errorf("fsyncing directory %s: %w", dir, err)
	}
	return nil
}

// Remove deletes a file and fsyncs its containing directory, mirroring the
// durability of Write's rename step: the deletion is observably complete
// once Remove returns, not just eventually.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return SyncDir(filepath.Dir(path))
}
