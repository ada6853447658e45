// ABOUTME: Root CLI command with global flags and subcommand registration
// ABOUTME: Defines the recall command tree and shared output settings
package commands

import (
	"github.com/spf13/cobra"
)

// Global flags shared across all commands
var (
	verbose      bool
	quiet        bool
	outputFormat string
	projectPath  string
)

// exitStatus carries search-style exit codes (no results, index missing)
// past Cobra back to main.
var exitStatus int

const banner = `
██████╗ ███████╗ ██████╗ █████╗ ██╗     ██╗
██╔══██╗██╔════╝██╔════╝██╔══██╗██║     ██║
██████╔╝█████╗  ██║     ███████║██║     ██║
██╔══██╗██╔══╝  ██║     ██╔══██║██║     ██║
██║  ██║███████╗╚██████╗██║  ██║███████╗███████╗
╚═╝  ╚═╝╚══════╝ ╚═════╝╚═╝  ╚═╝╚══════╝╚══════╝`

// NewRootCmd creates the root command with all subcommands
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "File-backed persistent memory for coding agents",
		Long: banner + `

Recall keeps an append-only ledger of facts and session summaries in
plain JSONL files, with a rebuildable SQLite index for full-text and
vector search. The files are the source of truth; the index is a cache.

Data lives in .recall/ next to your project (override with
RECALL_DATA_DIR). Drop a .memory-disable file in the data root to turn
every command into a no-op.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, json, or text")
	cmd.PersistentFlags().StringVar(&projectPath, "project", "", "Project directory anchoring the data root (default: cwd)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewSaveCmd(),
		NewSearchCmd(),
		NewSyncCmd(),
		NewContextCmd(),
		NewManageCmd(),
		NewSessionCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	exitStatus = 0
	return NewRootCmd().Execute()
}

// ExitCode returns the exit code set by the last command run. Commands that
// complete without an error but want a non-zero exit (search with no
// results, doctor finding problems) set it instead of failing.
func ExitCode() int {
	return exitStatus
}
