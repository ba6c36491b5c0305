package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// For any valid configuration, saving to file and loading back SHALL
// produce an equivalent configuration.
func TestConfigurationRoundTrip(t *testing.T) {
	outerT := t
	rapid.Check(t, func(t *rapid.T) {
		cfg := generateRandomConfig(t)

		tmpDir := outerT.TempDir()
		configPath := filepath.Join(tmpDir, "storax_test.yaml")

		manager := NewManager(configPath)
		require.NoError(t, manager.Save(cfg))

		loaded, err := NewManager(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, cfg.JournalDir, loaded.JournalDir)
		assert.Equal(t, cfg.CopyWALDir, loaded.CopyWALDir)
		assert.Equal(t, cfg.MoveWALDir, loaded.MoveWALDir)
		assert.Equal(t, cfg.UndoDir, loaded.UndoDir)
		assert.Equal(t, cfg.TrashIndex, loaded.TrashIndex)
		assert.Equal(t, cfg.TrashDirName, loaded.TrashDirName)
		assert.Equal(t, cfg.LockTimeout, loaded.LockTimeout)
		assert.Equal(t, cfg.UndoCapacity, loaded.UndoCapacity)
		assert.Equal(t, cfg.TrashMaxAge, loaded.TrashMaxAge)
		assert.Equal(t, cfg.TrashMaxSize, loaded.TrashMaxSize)
	})
}

func TestDefaultConfiguration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nonexistent.yaml")

	manager := NewManager(configPath)
	cfg, err := manager.Load()

	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.LockTimeout)
	assert.Equal(t, 100, cfg.UndoCapacity)
	assert.Equal(t, 30*24*time.Hour, cfg.TrashMaxAge)
	assert.Equal(t, int64(5*1024*1024*1024), cfg.TrashMaxSize)
	assert.Equal(t, ".storax_trash", cfg.TrashDirName)
}

func TestConfigurationPersistence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "storax.yaml")

	cfg := &Config{
		JournalDir:   filepath.Join(tmpDir, "storax_journal"),
		CopyWALDir:   filepath.Join(tmpDir, "copy_wal"),
		MoveWALDir:   filepath.Join(tmpDir, "move_wal"),
		UndoDir:      filepath.Join(tmpDir, "storax_undo"),
		TrashIndex:   filepath.Join(tmpDir, "trash_index.json"),
		TrashDirName: ".storax_trash",
		CacheDir:     filepath.Join(tmpDir, "cache"),
		LockTimeout:  10 * time.Second,
		UndoCapacity: 100,
		TrashMaxAge:  30 * 24 * time.Hour,
		TrashMaxSize: 5 * 1024 * 1024 * 1024,
	}

	manager := NewManager(configPath)
	require.NoError(t, manager.Save(cfg))

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.UndoCapacity, loaded.UndoCapacity)
	assert.Equal(t, cfg.TrashDirName, loaded.TrashDirName)
}

func generateRandomConfig(t *rapid.T) *Config {
	undoCapacity := rapid.IntRange(1, 1000).Draw(t, "undoCapacity")
	lockTimeout := time.Duration(rapid.IntRange(1, 120).Draw(t, "lockTimeoutSec")) * time.Second
	trashMaxAge := time.Duration(rapid.IntRange(1, 365).Draw(t, "trashMaxAgeDays")) * 24 * time.Hour
	trashMaxSize := int64(rapid.IntRange(1, 1<<40).Draw(t, "trashMaxSize"))
	trashDirName := rapid.StringMatching(`\.[a-z0-9_]+`).Draw(t, "trashDirName")

	return &Config{
		JournalDir:   "/tmp/storax_journal",
		CopyWALDir:   "/tmp/copy_wal",
		MoveWALDir:   "/tmp/move_wal",
		UndoDir:      "/tmp/storax_undo",
		TrashIndex:   "/tmp/trash_index.json",
		TrashDirName: trashDirName,
		CacheDir:     "/tmp/storax_cache",
		LockTimeout:  lockTimeout,
		UndoCapacity: undoCapacity,
		TrashMaxAge:  trashMaxAge,
		TrashMaxSize: trashMaxSize,
	}
}
