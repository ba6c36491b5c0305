// Package config loads and saves the on-disk layout and tunables storax's
// core reads at startup: journal/WAL/undo/trash roots, the lock timeout,
// the undo log capacity, and the trash age/size quotas.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete configuration for the storax engine.
type Config struct {
	JournalDir   string        `yaml:"journalDir" mapstructure:"journalDir"`
	CopyWALDir   string        `yaml:"copyWalDir" mapstructure:"copyWalDir"`
	MoveWALDir   string        `yaml:"moveWalDir" mapstructure:"moveWalDir"`
	UndoDir      string        `yaml:"undoDir" mapstructure:"undoDir"`
	TrashIndex   string        `yaml:"trashIndexPath" mapstructure:"trashIndexPath"`
	TrashDirName string        `yaml:"trashDirName" mapstructure:"trashDirName"`
	CacheDir     string        `yaml:"cacheDir" mapstructure:"cacheDir"`
	LockTimeout  time.Duration `yaml:"lockTimeout" mapstructure:"lockTimeout"`
	UndoCapacity int           `yaml:"undoCapacity" mapstructure:"undoCapacity"`
	TrashMaxAge  time.Duration `yaml:"trashMaxAge" mapstructure:"trashMaxAge"`
	TrashMaxSize int64         `yaml:"trashMaxSize" mapstructure:"trashMaxSize"`
}

// Manager handles configuration loading and saving.
type Manager struct {
	v    *viper.Viper
	path string
}

// NewManager creates a configuration manager reading/writing path.
func NewManager(configPath string) *Manager {
	return &Manager{
		v:    viper.New(),
		path: configPath,
	}
}

// Load loads configuration from file, applying defaults for anything the
// file doesn't set, or returns pure defaults if the file doesn't exist.
func (m *Manager) Load() (*Config, error) {
	m.setDefaults()

	if _, err := os.Stat(m.path); err == nil {
		m.v.SetConfigFile(m.path)
		m.v.SetConfigType("yaml")

		if err := m.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg to the manager's path.
func (m *Manager) Save(cfg *Config) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.v.Set("journalDir", cfg.JournalDir)
	m.v.Set("copyWalDir", cfg.CopyWALDir)
	m.v.Set("moveWalDir", cfg.MoveWALDir)
	m.v.Set("undoDir", cfg.UndoDir)
	m.v.Set("trashIndexPath", cfg.TrashIndex)
	m.v.Set("trashDirName", cfg.TrashDirName)
	m.v.Set("cacheDir", cfg.CacheDir)
	m.v.Set("lockTimeout", cfg.LockTimeout)
	m.v.Set("undoCapacity", cfg.UndoCapacity)
	m.v.Set("trashMaxAge", cfg.TrashMaxAge)
	m.v.Set("trashMaxSize", cfg.TrashMaxSize)

	if err := m.v.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Defaults returns the built-in configuration without touching disk, for
// callers whose config file turned out unreadable.
func Defaults() *Config {
	m := &Manager{v: viper.New()}
	m.setDefaults()

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return &Config{}
	}
	return &cfg
}

// setDefaults lays out every directory and file storax needs, rooted
// under the user's app-private directory.
func (m *Manager) setDefaults() {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".storax")

	m.v.SetDefault("journalDir", filepath.Join(root, "storax_journal"))
	m.v.SetDefault("copyWalDir", filepath.Join(root, "copy_wal"))
	m.v.SetDefault("moveWalDir", filepath.Join(root, "move_wal"))
	m.v.SetDefault("undoDir", filepath.Join(root, "storax_undo"))
	m.v.SetDefault("trashIndexPath", filepath.Join(root, "trash_index.json"))
	m.v.SetDefault("trashDirName", ".storax_trash")
	m.v.SetDefault("cacheDir", filepath.Join(root, "cache"))

	m.v.SetDefault("lockTimeout", 10*time.Second)
	m.v.SetDefault("undoCapacity", 100)
	m.v.SetDefault("trashMaxAge", 30*24*time.Hour)
	m.v.SetDefault("trashMaxSize", int64(5*1024*1024*1024))
}
