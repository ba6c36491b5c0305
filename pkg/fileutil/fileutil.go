// Package fileutil provides the byte-level file primitives the copy and
// trash engines build on: a durable whole-file copy, SHA-256 digests for
// integrity verification, recursive size accounting, and the write-speed
// probe behind the adaptive copy threshold.
package fileutil

import (
	"fmt"
	"io"
	"os"
)

// CopyFile copies src to dst in one pass and fsyncs the destination
// before reporting success, so a copy that returned nil survives a crash.
// A failed copy removes the partial destination rather than leaving it
// for a verifier to reject later. The destination inherits the source's
// permission bits.
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := dstFile.Sync(); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return fmt.Errorf("fsyncing %s: %w", dst, err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}

	// An existing destination may carry permissions from a previous life;
	// O_CREATE's mode argument only applies to newly created files.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode of %s: %w", dst, err)
	}
	return nil
}
