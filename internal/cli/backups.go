package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/store"
)

// backupsCmd represents the backups command
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect and prune Active store snapshots",
	Long: `Snapshots of the Active store are taken before every write. Timestamped
snapshots keep the newest retention.keep_snapshots; run-indexed snapshots
keep the highest retention.keep_run_snapshots run numbers.`,
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, mgr, err := backupManager()
		if err != nil {
			return err
		}
		snaps, err := mgr.List(store.Stem(cfg.Store.ActivePath))
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Fprintf(os.Stderr, "No snapshots in %s\n", mgr.Dir())
			return nil
		}
		for _, s := range snaps {
			run := "-"
			if s.Kind == store.SnapshotRunIndexed {
				run = fmt.Sprint(s.RunID)
			}
			fmt.Printf("%-12s %-6s %-20s %10d  %s\n",
				s.Kind, run, s.Taken.Format("2006-01-02 15:04:05"), s.Size, filepath.Base(s.Path))
		}
		return nil
	},
}

var backupsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots beyond the retention caps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, mgr, err := backupManager()
		if err != nil {
			return err
		}
		pruned, err := mgr.Prune(store.Stem(cfg.Store.ActivePath))
		for _, p := range pruned {
			fmt.Printf("✓ Removed %s\n", p)
		}
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Pruned %d snapshot(s)\n", len(pruned))
		return nil
	},
}

func backupManager() (*model.Config, *store.BackupManager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.BackupDir == "" {
		return nil, nil, fmt.Errorf("store.backup_dir is not configured")
	}
	mgr := store.NewBackupManager(cfg.Store.BackupDir,
		cfg.Retention.KeepSnapshots, cfg.Retention.KeepRunSnapshots, logger)
	return cfg, mgr, nil
}

func init() {
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsPruneCmd)
}
