package backend

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuanyiying/storax/internal/conflict"
)

// DocumentInfo describes a single node in a DocumentTree.
type DocumentInfo struct {
	Name         string
	URI          string
	IsDirectory  bool
	Size         int64
	LastModified time.Time
}

// DocumentTree is the opaque, permission-scoped document-tree storage the
// handle backend drives. It deliberately exposes no seekable byte offsets —
// only child lookup by name, creation, deletion, listing, and
// URI-identified open — the shape of a scoped document provider such as
// Android's Storage Access Framework tree.
type DocumentTree interface {
	// Lookup resolves the child named name under parentURI, if any.
	Lookup(ctx context.Context, parentURI, name string) (uri string, ok bool, err error)
	// CreateFile creates an empty file named name with the given MIME type
	// under parentURI and returns its URI.
	CreateFile(ctx context.Context, parentURI, name, mimeType string) (uri string, err error)
	// CreateDirectory creates a directory named name under parentURI and
	// returns its URI.
	CreateDirectory(ctx context.Context, parentURI, name string) (uri string, err error)
	// Delete removes the node at uri.
	Delete(ctx context.Context, uri string) error
	// Rename renames the node at uri to newName and returns its new URI —
	// the tree is free to mint a new URI on rename, which is why callers
	// must re-resolve rather than assume uri is still valid.
	Rename(ctx context.Context, uri, newName string) (newURI string, err error)
	// List enumerates the immediate children of parentURI.
	List(ctx context.Context, parentURI string) ([]DocumentInfo, error)
	// Stat returns the DocumentInfo for uri itself.
	Stat(ctx context.Context, uri string) (DocumentInfo, error)
	// OpenRead opens uri for reading. The handle backend never seeks it —
	// random-access byte copy through a handle location is out of scope of
	// the WAL-backed copy engine; this is the primitive the cross-backend
	// move bridge (internal/engine) streams through instead.
	OpenRead(ctx context.Context, uri string) (io.ReadCloser, error)
	// OpenWrite opens an already-created file at uri for sequential
	// writing. Used by the cross-backend move bridge when the handle
	// backend is the destination.
	OpenWrite(ctx context.Context, uri string) (io.WriteCloser, error)
}

// neutralMimeType is used for every file the handle backend creates.
const neutralMimeType = "application/octet-stream"

// HandleBackend implements Backend and Lister over a DocumentTree.
type HandleBackend struct {
	tree DocumentTree
}

// NewHandleBackend creates a HandleBackend over tree.
func NewHandleBackend(tree DocumentTree) *HandleBackend {
	return &HandleBackend{tree: tree}
}

func (b *HandleBackend) Kind() Kind { return KindHandle }

// wrap turns a raw tree URI into a handle:// Location.
func wrap(uri string) Location { return Location(HandleScheme + uri) }

// unwrap strips the handle:// prefix from a Location, returning the raw
// tree URI.
func unwrap(loc Location) string {
	return strings.TrimPrefix(string(loc), HandleScheme)
}

func (b *HandleBackend) Create(ctx context.Context, parent Location, name string, type_ NodeType, policy ConflictPolicy, manual string) CreateResult {
	parentURI := unwrap(parent)

	finalName, ok := conflict.Resolve(func(n string) bool {
		_, exists, err := b.tree.Lookup(ctx, parentURI, n)
		return err == nil && exists
	}, name, policy, manual)
	if !ok {
		return CreateResult{Err: fmt.Errorf("conflict declined for %s/%s", parentURI, name)}
	}

	var uri string
	var err error
	if type_ == TypeDir {
		uri, err = b.tree.CreateDirectory(ctx, parentURI, finalName)
	} else {
		uri, err = b.tree.CreateFile(ctx, parentURI, finalName, neutralMimeType)
	}
	if err != nil {
		return CreateResult{Err: fmt.Errorf("creating %s/%s: %w", parentURI, finalName, err)}
	}

	return CreateResult{Success: true, FinalName: finalName, Location: wrap(uri)}
}

func (b *HandleBackend) Delete(ctx context.Context, loc Location) bool {
	return b.tree.Delete(ctx, unwrap(loc)) == nil
}

func (b *HandleBackend) Rename(ctx context.Context, source Location, newName string, policy ConflictPolicy, manual string) bool {
	sourceURI := unwrap(source)

	current, err := b.tree.Stat(ctx, sourceURI)
	if err != nil {
		return false
	}

	parentURI, ok := b.parentOf(ctx, sourceURI)
	if !ok {
		return false
	}

	finalName, ok := conflict.Resolve(func(n string) bool {
		if n == current.Name {
			return false
		}
		_, exists, err := b.tree.Lookup(ctx, parentURI, n)
		return err == nil && exists
	}, newName, policy, manual)
	if !ok {
		return false
	}

	if finalName == current.Name {
		return true // no-op: chosen name equals current name
	}

	newURI, err := b.tree.Rename(ctx, sourceURI, finalName)
	if err != nil {
		return false
	}

	// Re-resolve the handle from the returned post-rename URI and verify
	// the name.
	info, err := b.tree.Stat(ctx, newURI)
	if err != nil || info.Name != finalName {
		return false
	}

	return true
}

// Move relocates source to destParent/finalName. DocumentTree only exposes
// a same-parent Rename, so Move only succeeds when destParent is already
// source's current parent (degrading to a plain rename); any genuine
// cross-directory move on the handle backend is unsupported and Move
// returns false, letting the caller fall back to copy-then-delete (which
// is itself unsupported for the handle backend, since it has no
// byte-level copy primitive — so such a move ultimately fails best-effort).
func (b *HandleBackend) Move(ctx context.Context, source Location, destParent Location, newName string, policy ConflictPolicy, manual string) bool {
	sourceURI := unwrap(source)

	parentURI, ok := b.parentOf(ctx, sourceURI)
	if !ok || parentURI != unwrap(destParent) {
		return false
	}

	return b.Rename(ctx, source, newName, policy, manual)
}

func (b *HandleBackend) List(ctx context.Context, dir Location) ([]Node, error) {
	docs, err := b.tree.List(ctx, unwrap(dir))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	nodes := make([]Node, 0, len(docs))
	for _, d := range docs {
		nodes = append(nodes, toNode(d))
	}
	return nodes, nil
}

func (b *HandleBackend) Stat(ctx context.Context, loc Location) (Node, error) {
	info, err := b.tree.Stat(ctx, unwrap(loc))
	if err != nil {
		return Node{}, fmt.Errorf("stat %s: %w", loc, err)
	}
	return toNode(info), nil
}

func (b *HandleBackend) Exists(ctx context.Context, parent Location, name string) bool {
	_, ok, err := b.tree.Lookup(ctx, unwrap(parent), name)
	return err == nil && ok
}

// parentOf finds the URI of sourceURI's parent by listing siblings is not
// possible without a parent reference from the tree; DocumentTree does not
// expose a reverse lookup, so the handle backend requires callers to always
// address nodes as (parent Location, name) pairs for create/rename. Rename
// is the one operation addressed purely by source URI, so it relies on the
// tree having returned a parent-qualified URI scheme; HandleBackend treats
// everything up to the last '/' as the parent URI, matching the common
// document-tree URI shape ".../document/<parent-id>%2F<name>".
func (b *HandleBackend) parentOf(ctx context.Context, uri string) (string, bool) {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return "", false
	}
	return uri[:idx], true
}

// OpenRead opens loc for sequential reading, satisfying ByteReader. Used by
// the cross-backend copy bridge when the handle backend is the source.
func (b *HandleBackend) OpenRead(ctx context.Context, loc Location) (io.ReadCloser, error) {
	rc, err := b.tree.OpenRead(ctx, unwrap(loc))
	if err != nil {
		return nil, fmt.Errorf("opening %s for read: %w", loc, err)
	}
	return rc, nil
}

// OpenWrite opens loc (already created via Create) for sequential writing,
// satisfying ByteWriter. Used by the cross-backend copy bridge when the
// handle backend is the destination.
func (b *HandleBackend) OpenWrite(ctx context.Context, loc Location) (io.WriteCloser, error) {
	wc, err := b.tree.OpenWrite(ctx, unwrap(loc))
	if err != nil {
		return nil, fmt.Errorf("opening %s for write: %w", loc, err)
	}
	return wc, nil
}

func toNode(d DocumentInfo) Node {
	return Node{
		Name:         d.Name,
		Location:     wrap(d.URI),
		IsDirectory:  d.IsDirectory,
		Size:         d.Size,
		LastModified: d.LastModified,
	}
}
