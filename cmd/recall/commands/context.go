// ABOUTME: Context command producing the session-start context block
// ABOUTME: Core memory doc plus decay-filtered recent facts and last summary
package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/loader"
)

var (
	contextSession   string
	contextWorkspace string
	contextNoLog     bool
)

// NewContextCmd creates the context command
func NewContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Build the session-start context block",
		Long: `Build the markdown context block injected at session start: the
core memory document, recent facts filtered by time decay, and the
last session summary. Also records a session_start entry unless
--no-log is given.

Examples:
  recall context
  recall context --session hook-123 --workspace ~/src/app`,
		RunE: runContext,
	}

	cmd.Flags().StringVar(&contextSession, "session", "", "Session id for the start entry (default: generated)")
	cmd.Flags().StringVar(&contextWorkspace, "workspace", "", "Workspace path recorded with the start entry")
	cmd.Flags().BoolVar(&contextNoLog, "no-log", false, "Skip writing the session_start entry")

	return cmd
}

func runContext(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "context")
	}

	ld := loader.New(cfg, led)
	block, err := ld.LoadContext()
	if err != nil {
		return fmt.Errorf("loading context: %w", err)
	}

	sessionID := contextSession
	if sessionID == "" {
		sessionID = "cli-" + uuid.NewString()
	}
	if !contextNoLog {
		if err := ld.LogSessionStart(contextWorkspace, sessionID); err != nil {
			return fmt.Errorf("recording session start: %w", err)
		}
	}

	if textOutput() {
		fmt.Fprintln(cmd.OutOrStdout(), block)
		return nil
	}
	return emitJSON(cmd, "context", map[string]any{
		"context":    block,
		"session_id": sessionID,
	})
}
