// ABOUTME: Sync command rebuilding or incrementally updating the index
// ABOUTME: Walks ledger files against bookmarks and embeds new chunks
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncRebuild bool

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Update the search index from the ledger",
		Long: `Update the SQLite index from the JSONL ledgers.

Incremental by default: files whose mtime matches the stored bookmark
are skipped, and only lines past the bookmark are indexed. --rebuild
drops the index and reindexes everything, which is the recovery path
after in-place edits.

Examples:
  recall sync
  recall sync --rebuild`,
		RunE: runSync,
	}

	cmd.Flags().BoolVar(&syncRebuild, "rebuild", false, "Drop the index and reindex from scratch")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "sync")
	}

	indexed, err := newEngine(cfg, led).Sync(cmd.Context(), syncRebuild)
	if err != nil {
		return fmt.Errorf("syncing index: %w", err)
	}

	if textOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks\n", indexed)
		return nil
	}
	return emitJSON(cmd, "sync", map[string]any{
		"chunks_indexed": indexed,
		"rebuild":        syncRebuild,
	})
}
