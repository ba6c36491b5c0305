// Package backend defines the uniform storage contract that lets the
// engines in internal/engine drive either a filesystem or an opaque
// document-tree store, plus the two concrete implementations of that
// contract and the non-recursive/bounded-depth listers that walk them.
package backend

import (
	"time"

	"github.com/xuanyiying/storax/internal/conflict"
)

// Location addresses a node in some backend. It is either a filesystem path
// or an opaque handle URI (scheme "handle://..."); Kind classifies it.
type Location string

// Kind identifies which concrete backend a Location belongs to.
type Kind int

const (
	KindPath Kind = iota
	KindHandle
)

func (k Kind) String() string {
	if k == KindHandle {
		return "handle"
	}
	return "path"
}

// NodeType is the stable wire code for a node's kind.
type NodeType int

const (
	TypeFile NodeType = 0
	TypeDir  NodeType = 1
)

// ConflictPolicy is the stable wire code for a naming conflict strategy,
// re-exported from internal/conflict so backend callers don't need a
// second import for the type the resolver consumes.
type ConflictPolicy = conflict.Policy

const (
	PolicyFail         = conflict.Fail
	PolicyReplace      = conflict.Replace
	PolicyRenameNew    = conflict.RenameNew
	PolicyRenameManual = conflict.RenameManual
)

// Node is a single filesystem or document-tree entry as reported by List or
// Traverse. The path backend reports Size as zero for directories; neither
// backend computes a recursive total (the copy engine sums one itself, in
// CopyEngine.computeTotal).
type Node struct {
	Name         string
	Location     Location
	IsDirectory  bool
	Size         int64
	LastModified time.Time
}

// CreateResult is the outcome of Backend.Create.
type CreateResult struct {
	Success   bool
	FinalName string
	Location  Location
	Err       error
}

// MediaIndexNotifier is the external collaborator invoked after a mutation
// of a whitelisted-extension file lands on the path backend. It plays no
// part in transaction correctness — a failing or slow notifier must never
// block or fail the operation it describes.
type MediaIndexNotifier interface {
	Notify(path string)
}

// NoopMediaIndexNotifier discards every notification.
type NoopMediaIndexNotifier struct{}

func (NoopMediaIndexNotifier) Notify(string) {}

// VolumeEnumerator is the external collaborator that supplies backend roots
// (platform volume/mount enumeration). Out of scope for the core; declared
// here only so the contract exists for a surrounding application to satisfy.
type VolumeEnumerator interface {
	Roots() ([]Location, error)
}

// MediaIndexExtensions is the fixed whitelist the path backend checks
// mutated file names against before notifying the media index.
var MediaIndexExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true,
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true,
	".pdf": true,
}
