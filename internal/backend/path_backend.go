package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuanyiying/storax/internal/conflict"
)

// PathBackend implements Backend and Lister over the local filesystem.
type PathBackend struct {
	notifier MediaIndexNotifier
}

// NewPathBackend creates a PathBackend. A nil notifier defaults to
// NoopMediaIndexNotifier.
func NewPathBackend(notifier MediaIndexNotifier) *PathBackend {
	if notifier == nil {
		notifier = NoopMediaIndexNotifier{}
	}
	return &PathBackend{notifier: notifier}
}

func (b *PathBackend) Kind() Kind { return KindPath }

func (b *PathBackend) Create(ctx context.Context, parent Location, name string, type_ NodeType, policy ConflictPolicy, manual string) CreateResult {
	parentPath := string(parent)

	finalName, ok := conflict.Resolve(func(n string) bool {
		_, err := os.Stat(filepath.Join(parentPath, n))
		return err == nil
	}, name, policy, manual)
	if !ok {
		return CreateResult{Err: fmt.Errorf("conflict declined for %s/%s", parentPath, name)}
	}

	target := filepath.Join(parentPath, finalName)

	var err error
	switch type_ {
	case TypeDir:
		err = os.MkdirAll(target, 0o755)
	default:
		// open-and-create atomically: O_CREATE|O_EXCL unless REPLACE chose
		// an existing name, in which case truncate instead.
		flags := os.O_WRONLY | os.O_CREATE
		if policy == PolicyReplace && finalName == name {
			flags |= os.O_TRUNC
		} else {
			flags |= os.O_EXCL
		}
		var f *os.File
		f, err = os.OpenFile(target, flags, 0o644)
		if f != nil {
			f.Close()
		}
	}

	if err != nil {
		return CreateResult{Err: fmt.Errorf("creating %s: %w", target, err)}
	}

	b.notify(target)

	return CreateResult{Success: true, FinalName: finalName, Location: Location(target)}
}

func (b *PathBackend) Delete(ctx context.Context, loc Location) bool {
	path := string(loc)
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	return err == nil
}

func (b *PathBackend) Rename(ctx context.Context, source Location, newName string, policy ConflictPolicy, manual string) bool {
	sourcePath := string(source)
	dir := filepath.Dir(sourcePath)
	currentName := filepath.Base(sourcePath)

	finalName, ok := conflict.Resolve(func(n string) bool {
		if n == currentName {
			return false // renaming to the same name is never a conflict
		}
		_, err := os.Stat(filepath.Join(dir, n))
		return err == nil
	}, newName, policy, manual)
	if !ok {
		return false
	}

	if finalName == currentName {
		return true // no-op: chosen name equals current name
	}

	target := filepath.Join(dir, finalName)
	if err := os.Rename(sourcePath, target); err != nil {
		return false
	}

	b.notify(target)
	return true
}

// Move relocates source to destParent/finalName in a single os.Rename,
// which is atomic when both paths are on the same filesystem volume. This
// is the primitive the move engine uses for same-backend moves and the
// trash manager uses to park objects.
func (b *PathBackend) Move(ctx context.Context, source Location, destParent Location, newName string, policy ConflictPolicy, manual string) bool {
	sourcePath := string(source)
	destParentPath := string(destParent)

	finalName, ok := conflict.Resolve(func(n string) bool {
		_, err := os.Stat(filepath.Join(destParentPath, n))
		return err == nil
	}, newName, policy, manual)
	if !ok {
		return false
	}

	if err := os.MkdirAll(destParentPath, 0o755); err != nil {
		return false
	}

	target := filepath.Join(destParentPath, finalName)
	if err := os.Rename(sourcePath, target); err != nil {
		return false
	}

	b.notify(target)
	return true
}

func (b *PathBackend) List(ctx context.Context, dir Location) ([]Node, error) {
	entries, err := os.ReadDir(string(dir))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	nodes := make([]Node, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		nodes = append(nodes, Node{
			Name:         entry.Name(),
			Location:     Location(filepath.Join(string(dir), entry.Name())),
			IsDirectory:  entry.IsDir(),
			Size:         sizeOrZero(info),
			LastModified: info.ModTime(),
		})
	}
	return nodes, nil
}

func (b *PathBackend) Stat(ctx context.Context, loc Location) (Node, error) {
	info, err := os.Stat(string(loc))
	if err != nil {
		return Node{}, fmt.Errorf("stat %s: %w", loc, err)
	}
	return Node{
		Name:         filepath.Base(string(loc)),
		Location:     loc,
		IsDirectory:  info.IsDir(),
		Size:         sizeOrZero(info),
		LastModified: info.ModTime(),
	}, nil
}

func (b *PathBackend) Exists(ctx context.Context, parent Location, name string) bool {
	_, err := os.Stat(filepath.Join(string(parent), name))
	return err == nil
}

// OpenRead opens loc for sequential reading, satisfying ByteReader. Used by
// the cross-backend copy bridge when the path backend is the source.
func (b *PathBackend) OpenRead(ctx context.Context, loc Location) (io.ReadCloser, error) {
	f, err := os.Open(string(loc))
	if err != nil {
		return nil, fmt.Errorf("opening %s for read: %w", loc, err)
	}
	return f, nil
}

// OpenWrite opens loc (already created via Create) for sequential writing,
// satisfying ByteWriter. Used by the cross-backend copy bridge when the path
// backend is the destination.
func (b *PathBackend) OpenWrite(ctx context.Context, loc Location) (io.WriteCloser, error) {
	f, err := os.OpenFile(string(loc), os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s for write: %w", loc, err)
	}
	return f, nil
}

func (b *PathBackend) notify(path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if MediaIndexExtensions[ext] {
		b.notifier.Notify(path)
	}
}

func sizeOrZero(info os.FileInfo) int64 {
	if info.IsDir() {
		return 0
	}
	return info.Size()
}
