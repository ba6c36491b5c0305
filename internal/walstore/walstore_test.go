package walstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyStoreWriteListRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewCopyStore(dir)

	rec := CopyRecord{JobID: "job1", Source: "/a", Target: "/b", TotalBytes: 100, CopiedBytes: 40}
	require.NoError(t, s.Write(rec))

	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec, recs[0])

	require.NoError(t, s.Remove("job1"))
	recs, err = s.List()
	require.NoError(t, err)
	assert.Len(t, recs, 0)
}

func TestCopyStoreListSkipsUnparsable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.wal"), []byte("not json"), 0o644))

	s := NewCopyStore(dir)
	recs, err := s.List()
	require.NoError(t, err)
	assert.Len(t, recs, 0)
}

func TestMoveStoreWriteListRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewMoveStore(dir)

	rec := MoveRecord{JobID: "job2", Source: "/a", Destination: "handle://x", Phase: PhaseCopying}
	require.NoError(t, s.Write(rec))

	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec, recs[0])

	rec.Phase = PhaseDeleting
	require.NoError(t, s.Write(rec))
	recs, err = s.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, PhaseDeleting, recs[0].Phase)

	require.NoError(t, s.Remove("job2"))
	recs, err = s.List()
	require.NoError(t, err)
	assert.Len(t, recs, 0)
}
