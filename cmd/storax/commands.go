package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xuanyiying/storax/cmd/storax/tui"
	"github.com/xuanyiying/storax/internal/backend"
	"github.com/xuanyiying/storax/internal/output"
	"github.com/xuanyiying/storax/internal/trash"
	"github.com/xuanyiying/storax/internal/visualizer"
)

// isInteractive reports whether stdout looks like a color-capable
// terminal, the same detection output.Console already performs for its
// own rendering.
func isInteractive() bool {
	return console.DetectColorSupport() != output.ColorNone
}

var (
	policyFlag int
	manualFlag string
	typeFlag   int
	maxDepth   int
)

func addConflictFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&policyFlag, "policy", 0, "Conflict policy: 0=FAIL, 1=REPLACE, 2=RENAME_NEW, 3=RENAME_MANUAL")
	cmd.Flags().StringVar(&manualFlag, "manual-name", "", "Manual replacement name, used when --policy=3")
}

var createCmd = &cobra.Command{
	Use:   "create <parent> <name>",
	Short: "Create a file or directory under parent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, name := backend.Location(args[0]), args[1]
		nodeType := backend.TypeFile
		if typeFlag == int(backend.TypeDir) {
			nodeType = backend.TypeDir
		}

		result, err := orch.Create(context.Background(), parent, name, nodeType, backend.ConflictPolicy(policyFlag), manualFlag)
		if err != nil {
			console.Error("create failed: %v", err)
			return err
		}
		console.Success("created %s", result.Location)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <source> <new-name>",
	Short: "Rename source within its current directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := orch.Rename(context.Background(), backend.Location(args[0]), args[1], backend.ConflictPolicy(policyFlag), manualFlag)
		if err != nil {
			console.Error("rename failed: %v", err)
			return err
		}
		if !ok {
			console.Warning("rename declined (conflict policy FAIL)")
			return nil
		}
		console.Success("renamed %s to %s", args[0], args[1])
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <source> <dest-parent> <new-name>",
	Short: "Move source to dest-parent, under new-name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := orch.Move(context.Background(), backend.Location(args[0]), backend.Location(args[1]), args[2], backend.ConflictPolicy(policyFlag), manualFlag)
		if err != nil {
			console.Error("move failed: %v", err)
			return err
		}
		if !ok {
			console.Warning("move declined (conflict policy FAIL)")
			return nil
		}
		console.Success("moved %s to %s/%s", args[0], args[1], args[2])
		return nil
	},
}

var copyCmd = &cobra.Command{
	Use:   "copy <source> <dest-parent> <new-name>",
	Short: "Copy source to dest-parent, under new-name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		handle, err := orch.Copy(ctx, backend.Location(args[0]), backend.Location(args[1]), args[2], backend.ConflictPolicy(policyFlag), manualFlag, forceProgress)
		if err != nil {
			console.Error("copy failed: %v", err)
			return err
		}

		if handle.JobID != "" {
			console.Info("transactional copy started, job id %s", handle.JobID)
			if !noTUI && isInteractive() {
				updates := sink.Subscribe(handle.JobID)
				tui.RunCopyProgressWithController(handle.JobID, updates, orchController{})
			}
			// With --no-tui, or on a non-interactive console, nothing
			// subscribes to this job, so the bare event sink prints a
			// line-based bar for its updates (consoleEventSink's fallback
			// render path) and there's nothing else to drain here.
		}

		target, err := handle.Job.Wait()
		if err != nil {
			console.Error("copy failed: %v", err)
			return err
		}
		console.Success("copied to %s", target)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <target>",
	Short: "Move target to trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := orch.Delete(context.Background(), backend.Location(args[0]))
		if err != nil {
			console.Error("delete failed: %v", err)
			return err
		}
		if ok {
			console.Success("moved %s to trash", args[0])
		}
		return nil
	},
}

var permanentlyDeleteCmd = &cobra.Command{
	Use:   "permanently-delete <path>",
	Short: "Delete path directly, bypassing trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := orch.PermanentlyDelete(context.Background(), backend.Location(args[0]))
		if err != nil {
			console.Error("permanent delete failed: %v", err)
			return err
		}
		if ok {
			console.Success("permanently deleted %s", args[0])
		}
		return nil
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Inspect and manage the trash",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trashed entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := orch.ListTrash()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			console.Info("trash is empty")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.ID, e.DisplayName, e.BackendKind.String(), fmt.Sprintf("%d", e.TrashedAt)})
		}
		console.Table([]string{"ID", "NAME", "BACKEND", "TRASHED_AT"}, rows)
		return nil
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a trashed entry by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, ok, err := findTrashEntry(args[0])
		if err != nil {
			return err
		}
		if !ok {
			console.Error("no trash entry with id %s", args[0])
			return fmt.Errorf("trash entry %s not found", args[0])
		}
		if _, err := orch.RestoreFromTrash(context.Background(), entry); err != nil {
			console.Error("restore failed: %v", err)
			return err
		}
		console.Success("restored %s", entry.OriginalLocation)
		return nil
	},
}

var trashPurgeCmd = &cobra.Command{
	Use:   "purge <id>",
	Short: "Permanently delete a trashed entry by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, ok, err := findTrashEntry(args[0])
		if err != nil {
			return err
		}
		if !ok {
			console.Error("no trash entry with id %s", args[0])
			return fmt.Errorf("trash entry %s not found", args[0])
		}
		if _, err := orch.PermanentlyDeleteFromTrash(context.Background(), entry); err != nil {
			console.Error("purge failed: %v", err)
			return err
		}
		console.Success("purged %s", entry.DisplayName)
		return nil
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently delete every trashed entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := orch.EmptyTrash(context.Background())
		if err != nil {
			console.Error("empty trash failed: %v", err)
			return err
		}
		if ok {
			console.Success("trash emptied")
		}
		return nil
	},
}

// orchController adapts the package-level orch to tui.Controller so the
// interactive progress view's p/r/c keys reach the running copy job.
type orchController struct{}

func (orchController) Cancel(jobID string) bool { return orch.CancelCopy(jobID) }
func (orchController) Pause(jobID string) bool  { return orch.PauseCopy(jobID) }
func (orchController) Resume(jobID string) bool { return orch.ResumeCopy(jobID) }

func findTrashEntry(id string) (trash.Entry, bool, error) {
	entries, err := orch.ListTrash()
	if err != nil {
		return trash.Entry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return trash.Entry{}, false, nil
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the most recent action",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := orch.Undo(context.Background())
		if err != nil {
			console.Error("undo failed: %v", err)
			return err
		}
		if !ok {
			console.Info("nothing to undo")
			return nil
		}
		console.Success("undone")
		return nil
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Redo the most recently undone action",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := orch.Redo(context.Background())
		if err != nil {
			console.Error("redo failed: %v", err)
			return err
		}
		if !ok {
			console.Info("nothing to redo")
			return nil
		}
		console.Success("redone")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show undo/redo stack depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		console.Info("undo: %d action(s), redo: %d action(s)", orch.UndoCount(), orch.RedoCount())
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Drain the journal and copy/move WAL directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := orch.RecoverPendingOperations(context.Background())
		if err != nil {
			console.Error("recovery failed: %v", err)
			return err
		}
		console.Box("Recovery", []string{
			fmt.Sprintf("journal records processed: %d", len(report.Journal)),
			fmt.Sprintf("copy jobs resumed: %d", len(report.CopyJobs)),
		})
		if report.MoveErr != nil {
			console.Warning("move recovery: %v", report.MoveErr)
		}
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls <target>",
	Short: "List target's immediate children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := orch.ListDirectory(context.Background(), backend.Location(args[0]))
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(nodes))
		for _, n := range nodes {
			kind := "file"
			if n.IsDirectory {
				kind = "dir"
			}
			rows = append(rows, []string{n.Name, kind, fmt.Sprintf("%d", n.Size)})
		}
		console.Table([]string{"NAME", "TYPE", "SIZE"}, rows)
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <target>",
	Short: "Render target's directory tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		loc := backend.Location(args[0])
		bl, ok := backends[backend.Detect(loc)]
		if !ok {
			return fmt.Errorf("no backend registered for %s", loc)
		}

		root, err := bl.Stat(ctx, loc)
		if err != nil {
			return err
		}

		depth := maxDepth
		if depth < 0 {
			depth = 0 // the visualizer treats 0 as unlimited
		}
		viz := visualizer.NewTreeVisualizer(console, &visualizer.TreeOptions{
			MaxDepth:   depth,
			ShowSize:   true,
			UseColor:   isInteractive(),
			UseUnicode: isInteractive(),
			IndentSize: 3,
		})
		node, err := viz.BuildTreeFromBackend(ctx, bl, root)
		if err != nil {
			return err
		}
		return viz.RenderToWriter(node, cmd.OutOrStdout())
	},
}

var traverseCmd = &cobra.Command{
	Use:   "traverse <target>",
	Short: "Walk target breadth-first and print every location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := orch.TraverseDirectory(context.Background(), backend.Location(args[0]), maxDepth)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			fmt.Println(n.Location)
		}
		return nil
	},
}

func init() {
	addConflictFlags(createCmd)
	addConflictFlags(renameCmd)
	addConflictFlags(moveCmd)
	addConflictFlags(copyCmd)
	createCmd.Flags().IntVar(&typeFlag, "type", 0, "Node type: 0=FILE, 1=DIRECTORY")
	treeCmd.Flags().IntVar(&maxDepth, "max-depth", -1, "Maximum traversal depth, -1 for unlimited")
	traverseCmd.Flags().IntVar(&maxDepth, "max-depth", -1, "Maximum traversal depth, -1 for unlimited")

	trashCmd.AddCommand(trashListCmd, trashRestoreCmd, trashPurgeCmd, trashEmptyCmd)
}
