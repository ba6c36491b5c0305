package trash

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/pkg/errors"
	"github.com/xuanyiying/storax/pkg/fileutil"
)

// BackendLister is the capability a backend must offer for the trash
// manager to operate on it: the base mutation contract plus listing.
type BackendLister interface {
	backend.Backend
	backend.Lister
}

// Resolver locates the live backend for a given kind, so Restore/Purge and
// the eviction policies can operate on entries whose original MoveToTrash
// call is long past.
type Resolver func(kind backend.Kind) (BackendLister, bool)

// Manager moves objects into a private per-app trash area and enforces
// age and size quotas.
type Manager struct {
	store   *Store
	roots   map[backend.Kind]backend.Location
	resolve Resolver
	maxAge  time.Duration
	maxSize int64
}

// NewManager creates a Manager. roots maps each backend kind to the
// location of its private trash directory; resolve looks up the live
// backend for a kind when an operation doesn't already have one in hand.
func NewManager(store *Store, roots map[backend.Kind]backend.Location, resolve Resolver, maxAge time.Duration, maxSize int64) *Manager {
	return &Manager{store: store, roots: roots, resolve: resolve, maxAge: maxAge, maxSize: maxSize}
}

// List returns every entry currently trashed, discarding index rows whose
// parked object has disappeared: the index and the set of parked files
// are only eventually consistent, and list is where stale rows die.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	entries, err := m.store.List()
	if err != nil {
		return nil, err
	}

	kept := entries[:0]
	dropped := false
	for _, e := range entries {
		if bl, ok := m.resolve(e.BackendKind); ok {
			if _, err := bl.Stat(ctx, e.ParkedLocation); err != nil {
				dropped = true
				continue
			}
		}
		kept = append(kept, e)
	}
	if dropped {
		if err := m.store.Replace(kept); err != nil {
			return kept, err
		}
	}
	return kept, nil
}

// FindByParked returns the index entry whose parked object is at parked,
// if any. Undo-of-delete goes through here so restoring also clears the
// original index row instead of synthesizing a duplicate.
func (m *Manager) FindByParked(parked backend.Location) (Entry, bool) {
	entries, err := m.store.List()
	if err != nil {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.ParkedLocation == parked {
			return e, true
		}
	}
	return Entry{}, false
}

// CleanOrphans deletes parked objects no index row references, the other
// half of the index/parked-file consistency contract. Best-effort; called
// when the trash is emptied.
func (m *Manager) CleanOrphans(ctx context.Context) {
	entries, err := m.store.List()
	if err != nil {
		return
	}
	referenced := make(map[backend.Location]bool, len(entries))
	for _, e := range entries {
		referenced[e.ParkedLocation] = true
	}

	for kind, root := range m.roots {
		bl, ok := m.resolve(kind)
		if !ok {
			continue
		}
		children, err := bl.List(ctx, root)
		if err != nil {
			continue
		}
		for _, c := range children {
			if !referenced[c.Location] {
				bl.Delete(ctx, c.Location)
			}
		}
	}
}

// MoveToTrash parks loc into the per-app trash area on bl's backend,
// appends a trash entry, and runs the eviction policies.
func (m *Manager) MoveToTrash(ctx context.Context, bl BackendLister, loc backend.Location) (Entry, error) {
	kind := bl.Kind()
	root, ok := m.roots[kind]
	if !ok {
		return Entry{}, errors.New(errors.BackendUnsupported, "trash: no trash root configured for backend %s", kind)
	}

	stat, err := bl.Stat(ctx, loc)
	if err != nil {
		return Entry{}, errors.Wrap(errors.NotFound, err, "trash: stat %s", loc)
	}

	if err := m.ensureRoot(ctx, bl, root); err != nil {
		return Entry{}, errors.Wrap(errors.IOError, err, "trash: preparing trash root %s", root)
	}

	id := uuid.NewString()
	parkedName := id + "_" + stat.Name

	parked, err := m.park(ctx, bl, loc, root, parkedName, stat)
	if err != nil {
		return Entry{}, err
	}

	var size *int64
	if !stat.IsDirectory {
		sz := stat.Size
		size = &sz
	}

	entry := Entry{
		ID:               id,
		DisplayName:      stat.Name,
		BackendKind:      kind,
		IsDirectory:      stat.IsDirectory,
		TrashedAt:        time.Now().UnixMilli(),
		Size:             size,
		OriginalLocation: loc,
		ParkedLocation:   parked,
	}

	if err := m.store.Add(entry); err != nil {
		return Entry{}, err
	}

	m.enforcePolicies(ctx)

	return entry, nil
}

// park attempts a rename into the trash directory; on failure it falls
// back to copy-then-delete, which is only available on backends that
// support a byte-level copy (the path backend).
func (m *Manager) park(ctx context.Context, bl BackendLister, loc, root backend.Location, parkedName string, stat backend.Node) (backend.Location, error) {
	if mover, ok := bl.(backend.Mover); ok {
		if mover.Move(ctx, loc, root, parkedName, backend.PolicyFail, "") {
			return backend.Join(root, parkedName), nil
		}
	}

	if bl.Kind() != backend.KindPath {
		return "", errors.New(errors.BackendUnsupported, "trash: %s backend supports neither move nor a copy fallback", bl.Kind())
	}

	dst := backend.Join(root, parkedName)
	if err := copyRecursive(string(loc), string(dst), stat.IsDirectory); err != nil {
		return "", errors.Wrap(errors.IOError, err, "trash: copy fallback for %s", loc)
	}
	if !bl.Delete(ctx, loc) {
		return "", errors.New(errors.IOError, "trash: deleting original %s after copy fallback", loc)
	}
	return dst, nil
}

// Restore recreates original_location's parent chain, then reverses park
// (rename, or copy-then-delete as fallback), and removes the entry.
// Best-effort on the handle backend.
func (m *Manager) Restore(ctx context.Context, entry Entry) error {
	bl, ok := m.resolve(entry.BackendKind)
	if !ok {
		return errors.New(errors.BackendUnsupported, "trash: no live backend for %s", entry.BackendKind)
	}

	originalParent, originalName := backend.Split(entry.OriginalLocation)
	if entry.BackendKind == backend.KindPath {
		if err := os.MkdirAll(string(originalParent), 0o755); err != nil {
			return errors.Wrap(errors.IOError, err, "trash: recreating parent of %s", entry.OriginalLocation)
		}
	}

	restored := false
	if mover, ok := bl.(backend.Mover); ok {
		restored = mover.Move(ctx, entry.ParkedLocation, originalParent, originalName, backend.PolicyFail, "")
	}
	if !restored {
		if bl.Kind() != backend.KindPath {
			return errors.New(errors.BackendUnsupported, "trash: restore unsupported on %s backend", bl.Kind())
		}
		if err := copyRecursive(string(entry.ParkedLocation), string(entry.OriginalLocation), entry.IsDirectory); err != nil {
			return errors.Wrap(errors.IOError, err, "trash: restore copy fallback for %s", entry.OriginalLocation)
		}
		if !bl.Delete(ctx, entry.ParkedLocation) {
			return errors.New(errors.IOError, "trash: deleting parked object after restore copy")
		}
	}

	if _, err := m.store.Remove(entry.ID); err != nil {
		return err
	}
	return nil
}

// PurgeEntry permanently removes a parked object and its index row.
// Removing the parked object is best-effort: an entry whose parked file
// is already gone (orphaned) still has its index row cleaned up.
func (m *Manager) PurgeEntry(ctx context.Context, entry Entry) error {
	if bl, ok := m.resolve(entry.BackendKind); ok {
		bl.Delete(ctx, entry.ParkedLocation)
	}
	_, err := m.store.Remove(entry.ID)
	return err
}

// enforcePolicies runs age then quota eviction inline, after every add.
// A caller embedding storax in something with a background scheduler
// could defer this to a worker without changing the external contract;
// the core has no scheduler of its own, so it runs inline.
func (m *Manager) enforcePolicies(ctx context.Context) {
	entries, err := m.store.List()
	if err != nil {
		return
	}

	now := time.Now().UnixMilli()
	var kept []Entry
	for _, e := range entries {
		if m.maxAge > 0 && time.Duration(now-e.TrashedAt)*time.Millisecond > m.maxAge {
			m.purgeParked(ctx, e)
			continue
		}
		kept = append(kept, e)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].TrashedAt < kept[j].TrashedAt })

	total := int64(0)
	for _, e := range kept {
		if e.Size != nil {
			total += *e.Size
		}
	}

	i := 0
	for m.maxSize > 0 && total > m.maxSize && i < len(kept) {
		if kept[i].Size != nil {
			total -= *kept[i].Size
		}
		m.purgeParked(ctx, kept[i])
		i++
	}
	kept = kept[i:]

	m.store.Replace(kept)
}

func (m *Manager) purgeParked(ctx context.Context, e Entry) {
	if bl, ok := m.resolve(e.BackendKind); ok {
		bl.Delete(ctx, e.ParkedLocation)
	}
}

func (m *Manager) ensureRoot(ctx context.Context, bl BackendLister, root backend.Location) error {
	if _, err := bl.Stat(ctx, root); err == nil {
		return nil
	}
	if bl.Kind() == backend.KindPath {
		return os.MkdirAll(string(root), 0o755)
	}
	parent, name := backend.Split(root)
	res := bl.Create(ctx, parent, name, backend.TypeDir, backend.PolicyFail, "")
	if !res.Success {
		return res.Err
	}
	return nil
}

func copyRecursive(src, dst string, isDir bool) error {
	if !isDir {
		return fileutil.CopyFile(src, dst)
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcChild := filepath.Join(src, entry.Name())
		dstChild := filepath.Join(dst, entry.Name())
		if err := copyRecursive(srcChild, dstChild, entry.IsDir()); err != nil {
			return err
		}
	}
	return nil
}
