// ABOUTME: Session command group over the cross-process session state
// ABOUTME: check, metrics, and end-of-session maintenance
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/session"
)

var (
	sessionID         string
	sessionEndReason  string
	sessionDurationMs int64
	sessionEndError   string
)

// NewSessionCmd creates the session command group
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and close coordination state for a session",
		Long: `Inspect the per-session state file shared between processes, or
run the end-of-session maintenance pass (auto-summary fallback,
metrics, ledger truncation, stale state cleanup).

Examples:
  recall session check --session hook-123
  recall session end --session hook-123 --reason completed`,
	}

	cmd.AddCommand(newSessionCheckCmd(), newSessionMetricsCmd(), newSessionEndCmd())

	return cmd
}

func newSessionCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the raw state for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := openLedger()
			if err != nil {
				return err
			}
			if cfg.Disabled() {
				return emitDisabled(cmd, "session check")
			}
			state := session.New(cfg).ReadState(sessionID)
			return emitJSON(cmd, "session check", state)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (required)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newSessionMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show write counters for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := openLedger()
			if err != nil {
				return err
			}
			if cfg.Disabled() {
				return emitDisabled(cmd, "session metrics")
			}
			state := session.New(cfg).ReadState(sessionID)
			source := state.SummarySource
			if source == "" {
				source = "none"
			}
			return emitJSON(cmd, "session metrics", map[string]any{
				"session_id":          sessionID,
				"fact_count":          state.FactCount,
				"stage_summary_count": state.StageSummaryCount,
				"summary_saved":       state.SummarySaved,
				"summary_source":      source,
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (required)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newSessionEndCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end",
		Short: "Run end-of-session maintenance",
		Long: `Run the full end-of-session pass: truncate the sessions ledger,
auto-generate a fallback summary when the session saved none, warn
on deliberate closes without a summary, and record end and metrics
entries. Each step degrades independently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, led, err := openLedger()
			if err != nil {
				return err
			}
			if cfg.Disabled() {
				return emitDisabled(cmd, "session end")
			}
			if sessionEndReason == "" {
				return fmt.Errorf("reason must not be empty")
			}
			maint := session.NewMaintenance(cfg, led, session.New(cfg))
			report := maint.EndSession(sessionID, sessionEndReason, sessionDurationMs, sessionEndError)
			return emitJSON(cmd, "session end", report)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (required)")
	cmd.Flags().StringVar(&sessionEndReason, "reason", "completed", "Why the session ended (completed, user_close, crash, ...)")
	cmd.Flags().Int64Var(&sessionDurationMs, "duration-ms", 0, "Session duration in milliseconds")
	cmd.Flags().StringVar(&sessionEndError, "error", "", "Error message when the session ended abnormally")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
