// Package main implements the storax command-line front end: a cobra
// command tree exposing the orchestrator's method surface, with global
// persistent flags, a package-level Execute(), and an init() that wires
// managers.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/config"
	"github.com/xuanyiying/storax/internal/engine"
	"github.com/xuanyiying/storax/internal/orchestrator"
	"github.com/xuanyiying/storax/internal/output"
	"github.com/xuanyiying/storax/internal/progress"
	"github.com/xuanyiying/storax/pkg/storaxlog"
)

var (
	configPath    string
	forceProgress bool
	noTUI         bool

	configMgr *config.Manager
	orch      *orchestrator.Orchestrator
	console   *output.Console
	log       zerolog.Logger
	sink      *consoleEventSink
	backends  map[backend.Kind]engine.BackendLister
)

// Version is set during build time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "storax",
	Short: "Crash-safe file-operation engine",
	Long: `storax performs create, rename, delete-to-trash, copy, and move across
a filesystem backend and an opaque document-tree backend, guaranteeing
that a crash mid-operation never leaves a partially visible state.

Version: ` + Version,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultConfigPath := filepath.Join(homeDir, ".storax", "config.yaml")

	configMgr = config.NewManager(defaultConfigPath)
	console = output.NewConsole(os.Stdout)
	log = storaxlog.New(os.Stderr, zerolog.InfoLevel)

	cfg, err := configMgr.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config, using defaults: %v\n", err)
		cfg = config.Defaults()
	}

	pathBackend := backend.NewPathBackend(backend.NoopMediaIndexNotifier{})
	backends = map[backend.Kind]engine.BackendLister{
		backend.KindPath: pathBackend,
	}
	trashRoots := map[backend.Kind]backend.Location{
		backend.KindPath: backend.Location(filepath.Join(homeDir, cfg.TrashDirName)),
	}

	sink = newConsoleEventSink(console)
	orch, err = orchestrator.New(cfg, backends, trashRoots, log, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: failed to initialize storax engine: %v\n", err)
		os.Exit(1)
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file (not read: configuration is always loaded from ~/.storax/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&forceProgress, "force-progress", false, "Force the transactional, resumable copy path even for small files")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "Disable the interactive progress view and print a line-based progress bar instead")

	rootCmd.AddCommand(createCmd, renameCmd, moveCmd, copyCmd, deleteCmd, permanentlyDeleteCmd)
	rootCmd.AddCommand(trashCmd, undoCmd, redoCmd, historyCmd, recoverCmd)
	rootCmd.AddCommand(lsCmd, treeCmd, traverseCmd, versionCmd)
}

// consoleEventSink is the single EventSink the orchestrator is built with.
// transferProgress fans out to per-job subscriber channels: the copy
// command subscribes to a job it shows in the interactive TUI. Updates for
// a job with no subscriber (a --no-tui or non-interactive copy, a recovered
// job resumed at startup, or updates sent before the copy command has
// subscribed) are printed by the sink as a line-based bar.
type consoleEventSink struct {
	console *output.Console

	mu   sync.Mutex
	subs map[string][]chan float64
	bars map[string]*progress.Bar
}

func newConsoleEventSink(c *output.Console) *consoleEventSink {
	return &consoleEventSink{console: c, subs: make(map[string][]chan float64), bars: make(map[string]*progress.Bar)}
}

// Subscribe returns a channel receiving percent updates for jobID. The
// channel is closed when the job reaches 100%.
func (s *consoleEventSink) Subscribe(jobID string) <-chan float64 {
	ch := make(chan float64, 16)
	s.mu.Lock()
	s.subs[jobID] = append(s.subs[jobID], ch)
	s.mu.Unlock()
	return ch
}

func (s *consoleEventSink) TransferProgress(jobID string, percent float64) {
	if jobID == "" {
		return
	}

	s.mu.Lock()
	chans := append([]chan float64(nil), s.subs[jobID]...)
	s.mu.Unlock()

	if len(chans) == 0 {
		s.renderLine(jobID, percent)
	} else {
		for _, ch := range chans {
			select {
			case ch <- percent:
			default:
			}
		}
	}

	if percent >= 100 {
		s.mu.Lock()
		for _, ch := range s.subs[jobID] {
			close(ch)
		}
		delete(s.subs, jobID)
		s.mu.Unlock()
	}
}

func (s *consoleEventSink) UndoStateChanged(canUndo, canRedo bool) {}

func (s *consoleEventSink) renderLine(jobID string, percent float64) {
	s.mu.Lock()
	bar, ok := s.bars[jobID]
	if !ok {
		bar = progress.NewBar(100, "copy "+jobID, os.Stdout)
		s.bars[jobID] = bar
	}
	s.mu.Unlock()

	bar.Set(int64(percent))
	if percent >= 100 {
		bar.Finish()
		s.mu.Lock()
		delete(s.bars, jobID)
		s.mu.Unlock()
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("storax v%s\n", Version)
	},
}
