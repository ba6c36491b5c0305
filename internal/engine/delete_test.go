package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/lock"
	"github.com/xuanyiying/storax/internal/trash"
)

func newTestDeleteEngine(t *testing.T) (*DeleteEngine, trash.BackendLister, string, string) {
	t.Helper()
	root := t.TempDir()
	source := filepath.Join(root, "source")
	trashRoot := filepath.Join(root, "trash")
	require.NoError(t, os.MkdirAll(source, 0o755))

	var bl trash.BackendLister = backend.NewPathBackend(nil)
	store := trash.NewStore(filepath.Join(root, "trash_index.json"))
	roots := map[backend.Kind]backend.Location{backend.KindPath: backend.Location(trashRoot)}
	resolve := func(kind backend.Kind) (trash.BackendLister, bool) {
		if kind == backend.KindPath {
			return bl, true
		}
		return nil, false
	}
	mgr := trash.NewManager(store, roots, resolve, 30*24*time.Hour, 5*1024*1024*1024)

	return NewDeleteEngine(lock.New(), mgr), bl, source, trashRoot
}

func TestDeleteEngineToTrash(t *testing.T) {
	e, bl, source, _ := newTestDeleteEngine(t)
	ctx := context.Background()

	filePath := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	entry, err := e.ToTrash(ctx, bl, backend.Location(filePath))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", entry.DisplayName)
	assert.NoFileExists(t, filePath)
	assert.FileExists(t, string(entry.ParkedLocation))
}

func TestDeleteEnginePermanentDelete(t *testing.T) {
	e, bl, source, _ := newTestDeleteEngine(t)
	ctx := context.Background()

	filePath := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	ok, err := e.PermanentDelete(ctx, bl.(backend.Backend), backend.Location(filePath))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, filePath)
}

func TestDeleteEnginePermanentDeleteMissingFileFails(t *testing.T) {
	e, bl, source, _ := newTestDeleteEngine(t)
	ctx := context.Background()

	ok, err := e.PermanentDelete(ctx, bl.(backend.Backend), backend.Location(filepath.Join(source, "missing.txt")))
	require.Error(t, err)
	assert.False(t, ok)
}

func TestDeleteEnginePermanentDeleteFromTrash(t *testing.T) {
	e, bl, source, _ := newTestDeleteEngine(t)
	ctx := context.Background()

	filePath := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	entry, err := e.ToTrash(ctx, bl, backend.Location(filePath))
	require.NoError(t, err)

	ok, err := e.PermanentDeleteFromTrash(ctx, entry)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, string(entry.ParkedLocation))
}
