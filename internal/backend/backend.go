package backend

import (
	"context"
	"io"
)

// Backend is the uniform capability set every storage driver exposes.
// Implementations are responsible for resolving naming conflicts against
// their own existence check (via internal/conflict) and must not rename a
// node in place when the chosen final name equals its current name.
type Backend interface {
	// Create makes a new node named name under parent. type_ selects file
	// or directory. Conflict handling follows policy/manual exactly as
	// internal/conflict.Resolve describes.
	Create(ctx context.Context, parent Location, name string, type_ NodeType, policy ConflictPolicy, manual string) CreateResult

	// Delete removes the node at loc. For the path backend, a directory is
	// removed recursively.
	Delete(ctx context.Context, loc Location) bool

	// Rename changes the final path component of source to newName (subject
	// to conflict resolution) and reports success.
	Rename(ctx context.Context, source Location, newName string, policy ConflictPolicy, manual string) bool

	// Kind reports which concrete backend this is.
	Kind() Kind
}

// Mover is an optional capability beyond the base three: a single
// operation that relocates a node to a (possibly different) parent and
// name in one step. The public rename contract above is deliberately
// same-directory only; Mover is what the move engine (internal/engine)
// and the trash manager use internally to park/move nodes across
// directories on the same backend. Not every backend can honor an
// arbitrary destParent (a
// document-tree provider may only support renaming within the existing
// parent) — Move reports false rather than erroring when it can't, and
// callers fall back to copy-then-delete.
type Mover interface {
	Move(ctx context.Context, source Location, destParent Location, newName string, policy ConflictPolicy, manual string) bool
}

// Lister is implemented by backends that can enumerate children of a
// directory/handle, independent of the mutation contract above.
type Lister interface {
	// List returns the immediate children of dir, non-recursively.
	List(ctx context.Context, dir Location) ([]Node, error)
	// Stat returns the Node describing loc itself.
	Stat(ctx context.Context, loc Location) (Node, error)
	// Exists reports whether a child named name exists under parent —
	// the existence predicate internal/conflict.Resolve consumes.
	Exists(ctx context.Context, parent Location, name string) bool
}

// ByteReader is an optional capability: a backend that can open an existing
// node for sequential byte reads. The path backend implements it directly
// against the filesystem; the handle backend implements it against its
// DocumentTree's OpenRead. Neither backend offers random access (no Seek) —
// this is deliberately narrower than an *os.File, since a document-tree
// provider exposes no seekable byte offsets, and keeping both
// implementations on one contract keeps them honest to it.
type ByteReader interface {
	OpenRead(ctx context.Context, loc Location) (io.ReadCloser, error)
}

// ByteWriter is the write-side counterpart of ByteReader: sequential writes
// into a node that already exists (created by a prior Backend.Create call).
// Used only by the cross-backend copy bridge (internal/engine) to stream
// bytes between a path source and a handle destination, or vice versa —
// never by the WAL-backed same-backend copy engine, which only ever runs
// against two path locations and uses *os.File directly.
type ByteWriter interface {
	OpenWrite(ctx context.Context, loc Location) (io.WriteCloser, error)
}
