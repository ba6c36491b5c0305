package engine

import (
	"context"
	"crypto/sha256"
	"hash"
	"io"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/pkg/errors"
)

const bridgeChunkSize = 512 * 1024

// bridgeCopy composes a byte-level copy between two different backend
// kinds: the WAL-backed CopyEngine only ever runs between two path
// locations, so the cross-backend move transaction streams through each
// backend's ByteReader/ByteWriter capability instead, scoped to exactly
// the cross-backend move case.
func bridgeCopy(ctx context.Context, srcBackend, destBackend BackendLister, source, destParent backend.Location, finalName string, isDir bool) (backend.Location, error) {
	if isDir {
		return bridgeCopyDir(ctx, srcBackend, destBackend, source, destParent, finalName)
	}
	return bridgeCopyFile(ctx, srcBackend, destBackend, source, destParent, finalName)
}

// bridgeCopyFile creates finalName under destParent, then streams source's
// bytes into it through the two backends' ByteReader/ByteWriter
// capabilities, hashing as it goes and verifying against a re-read of the
// destination when the destination backend can supply one.
func bridgeCopyFile(ctx context.Context, srcBackend, destBackend BackendLister, source, destParent backend.Location, finalName string) (backend.Location, error) {
	reader, ok := srcBackend.(backend.ByteReader)
	if !ok {
		return "", errors.New(errors.BackendUnsupported, "move: backend %s does not support byte-level read", srcBackend.Kind())
	}
	writer, ok := destBackend.(backend.ByteWriter)
	if !ok {
		return "", errors.New(errors.BackendUnsupported, "move: backend %s does not support byte-level write", destBackend.Kind())
	}

	result := destBackend.Create(ctx, destParent, finalName, backend.TypeFile, backend.PolicyReplace, "")
	if !result.Success {
		return "", errors.Wrap(errors.IOError, result.Err, "move: creating %s/%s on destination", destParent, finalName)
	}

	if err := streamInto(ctx, reader, writer, source, result.Location); err != nil {
		destBackend.Delete(ctx, result.Location)
		return "", err
	}

	return result.Location, nil
}

// streamInto copies source's bytes to target via reader/writer, hashing the
// source stream as it's read, then verifies the destination's own bytes
// hash the same when destBackend also implements ByteReader.
func streamInto(ctx context.Context, reader backend.ByteReader, writer backend.ByteWriter, source, target backend.Location) error {
	src, err := reader.OpenRead(ctx, source)
	if err != nil {
		return errors.Wrap(errors.IOError, err, "move: opening %s for read", source)
	}
	defer src.Close()

	dst, err := writer.OpenWrite(ctx, target)
	if err != nil {
		return errors.Wrap(errors.IOError, err, "move: opening %s for write", target)
	}

	srcHash := sha256.New()
	buf := make([]byte, bridgeChunkSize)
	if _, err := io.CopyBuffer(io.MultiWriter(dst, srcHash), src, buf); err != nil {
		dst.Close()
		return errors.Wrap(errors.IOError, err, "move: streaming %s to %s", source, target)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrap(errors.IOError, err, "move: closing %s", target)
	}

	return verifyBridgeHash(ctx, writer, target, srcHash)
}

// verifyBridgeHash re-reads target through reader (if writer also
// implements ByteReader) and compares its SHA-256 against srcHash, the
// running digest taken while streaming the source. A destination that
// can't be read back skips verification — there is nothing left to
// compare against beyond the byte count io.Copy already accounted for.
func verifyBridgeHash(ctx context.Context, writer backend.ByteWriter, target backend.Location, srcHash hash.Hash) error {
	reader, ok := writer.(backend.ByteReader)
	if !ok {
		return nil
	}

	dst, err := reader.OpenRead(ctx, target)
	if err != nil {
		return errors.Wrap(errors.IOError, err, "move: re-opening %s to verify", target)
	}
	defer dst.Close()

	dstHash := sha256.New()
	if _, err := io.Copy(dstHash, dst); err != nil {
		return errors.Wrap(errors.IOError, err, "move: reading %s back to verify", target)
	}

	want := srcHash.Sum(nil)
	got := dstHash.Sum(nil)
	if string(want) != string(got) {
		return errors.New(errors.IntegrityMismatch, "move: bridge integrity mismatch for %s", target)
	}
	return nil
}

// bridgeCopyDir creates finalName as a directory under destParent, then
// recurses over source's immediate children, bridging each file and
// recursing into each subdirectory.
func bridgeCopyDir(ctx context.Context, srcBackend, destBackend BackendLister, source, destParent backend.Location, finalName string) (backend.Location, error) {
	result := destBackend.Create(ctx, destParent, finalName, backend.TypeDir, backend.PolicyReplace, "")
	if !result.Success {
		return "", errors.Wrap(errors.IOError, result.Err, "move: creating directory %s/%s on destination", destParent, finalName)
	}

	children, err := srcBackend.List(ctx, source)
	if err != nil {
		return "", errors.Wrap(errors.IOError, err, "move: listing %s", source)
	}

	for _, child := range children {
		if child.IsDirectory {
			if _, err := bridgeCopyDir(ctx, srcBackend, destBackend, child.Location, result.Location, child.Name); err != nil {
				return "", err
			}
			continue
		}
		if _, err := bridgeCopyFile(ctx, srcBackend, destBackend, child.Location, result.Location, child.Name); err != nil {
			return "", err
		}
	}

	return result.Location, nil
}
