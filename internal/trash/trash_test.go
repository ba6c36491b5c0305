package trash

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuanyiying/storax/internal/backend"
)

func newTestSetup(t *testing.T) (*Manager, BackendLister, string, string) {
	root := t.TempDir()
	source := filepath.Join(root, "source")
	trashRoot := filepath.Join(root, "trash")
	require.NoError(t, os.MkdirAll(source, 0o755))

	var bl BackendLister = backend.NewPathBackend(backend.NoopMediaIndexNotifier{})
	store := NewStore(filepath.Join(root, "trash_index.json"))

	roots := map[backend.Kind]backend.Location{backend.KindPath: backend.Location(trashRoot)}
	resolve := func(kind backend.Kind) (BackendLister, bool) {
		if kind == backend.KindPath {
			return bl, true
		}
		return nil, false
	}

	mgr := NewManager(store, roots, resolve, 30*24*time.Hour, 5*1024*1024*1024)
	return mgr, bl, source, trashRoot
}

func TestMoveToTrashThenRestore(t *testing.T) {
	mgr, bl, source, _ := newTestSetup(t)
	ctx := context.Background()

	filePath := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	entry, err := mgr.MoveToTrash(ctx, bl, backend.Location(filePath))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", entry.DisplayName)
	assert.NoFileExists(t, filePath)
	assert.FileExists(t, string(entry.ParkedLocation))

	require.NoError(t, mgr.Restore(ctx, entry))
	assert.FileExists(t, filePath)

	entries, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}

func TestMoveToTrashDirectory(t *testing.T) {
	mgr, bl, source, _ := newTestSetup(t)
	ctx := context.Background()

	dirPath := filepath.Join(source, "sub")
	require.NoError(t, os.MkdirAll(dirPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dirPath, "f.txt"), []byte("x"), 0o644))

	entry, err := mgr.MoveToTrash(ctx, bl, backend.Location(dirPath))
	require.NoError(t, err)
	assert.True(t, entry.IsDirectory)
	assert.DirExists(t, string(entry.ParkedLocation))
	assert.NoDirExists(t, dirPath)
}

func TestPurgeEntryRemovesParkedAndIndexRow(t *testing.T) {
	mgr, bl, source, _ := newTestSetup(t)
	ctx := context.Background()

	filePath := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	entry, err := mgr.MoveToTrash(ctx, bl, backend.Location(filePath))
	require.NoError(t, err)

	require.NoError(t, mgr.PurgeEntry(ctx, entry))
	assert.NoFileExists(t, string(entry.ParkedLocation))

	entries, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}

func TestAgeEvictionPurgesOldEntries(t *testing.T) {
	mgr, bl, source, _ := newTestSetup(t)
	mgr.maxAge = time.Minute
	ctx := context.Background()

	filePath := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	entry, err := mgr.MoveToTrash(ctx, bl, backend.Location(filePath))
	require.NoError(t, err)

	// Backdate the entry past the age quota instead of sleeping.
	entry.TrashedAt = time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, mgr.store.Replace([]Entry{entry}))

	mgr.enforcePolicies(ctx)

	entries, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
	assert.NoFileExists(t, string(entry.ParkedLocation), "age eviction must remove the parked object too")
}

func TestListDiscardsRowsWithoutParkedObject(t *testing.T) {
	mgr, bl, source, _ := newTestSetup(t)
	ctx := context.Background()

	filePath := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))
	entry, err := mgr.MoveToTrash(ctx, bl, backend.Location(filePath))
	require.NoError(t, err)

	require.NoError(t, os.Remove(string(entry.ParkedLocation)))

	entries, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 0, "a row whose parked object is gone must be discarded on list")
}

func TestCleanOrphansRemovesUnreferencedParkedObjects(t *testing.T) {
	mgr, bl, source, trashRoot := newTestSetup(t)
	ctx := context.Background()

	filePath := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))
	entry, err := mgr.MoveToTrash(ctx, bl, backend.Location(filePath))
	require.NoError(t, err)

	orphan := filepath.Join(trashRoot, "orphan_b.txt")
	require.NoError(t, os.WriteFile(orphan, []byte("stray"), 0o644))

	mgr.CleanOrphans(ctx)
	assert.NoFileExists(t, orphan)
	assert.FileExists(t, string(entry.ParkedLocation), "referenced parked objects must survive orphan cleanup")
}

func TestSizeQuotaEvictsOldestFirst(t *testing.T) {
	mgr, bl, source, _ := newTestSetup(t)
	mgr.maxSize = 10
	ctx := context.Background()

	path1 := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(path1, make([]byte, 8), 0o644))
	e1, err := mgr.MoveToTrash(ctx, bl, backend.Location(path1))
	require.NoError(t, err)

	// Make e1 unambiguously the oldest: same-millisecond adds would
	// otherwise leave eviction order to a sort tie.
	e1.TrashedAt -= 1000
	require.NoError(t, mgr.store.Replace([]Entry{e1}))

	path2 := filepath.Join(source, "b.txt")
	require.NoError(t, os.WriteFile(path2, make([]byte, 8), 0o644))
	_, err = mgr.MoveToTrash(ctx, bl, backend.Location(path2))
	require.NoError(t, err)

	entries, err := mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEqual(t, e1.ID, entries[0].ID, "oldest entry should have been evicted")
}
