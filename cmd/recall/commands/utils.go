// ABOUTME: Shared utility functions for CLI commands
// ABOUTME: Config loading, the JSON response envelope, and small formatters
package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/embedding"
	"github.com/recallhq/recall/internal/indexer"
	"github.com/recallhq/recall/internal/ledger"
)

// cmdResponse is the single JSON object every command emits on stdout
// unless text output is selected.
type cmdResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// loadConfig resolves configuration for the current invocation. The .env
// load is best-effort; API keys may come from the real environment.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load(projectPath)
}

// openLedger loads config and wraps the ledger over it.
func openLedger() (*config.Config, *ledger.Ledger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, ledger.New(cfg), nil
}

// newEngine builds a sync engine with whatever embedding provider the
// environment offers.
func newEngine(cfg *config.Config, led *ledger.Ledger) *indexer.Engine {
	return indexer.NewEngine(cfg, led, embedding.ActiveProvider(cfg))
}

// textOutput reports whether human-readable output was requested. The
// default ("auto") is the machine surface: one JSON object per command.
func textOutput() bool {
	return outputFormat == "text"
}

// emitJSON writes the success envelope for a command.
func emitJSON(cmd *cobra.Command, command string, data any) error {
	return emitResponse(cmd, cmdResponse{Status: "ok", Command: command, Data: data})
}

// emitDisabled writes the no-op envelope used when the disable marker is
// present in the data root.
func emitDisabled(cmd *cobra.Command, command string) error {
	return emitResponse(cmd, cmdResponse{Status: "disabled", Command: command})
}

// emitError writes the error envelope without failing the command; callers
// decide the exit code separately.
func emitError(cmd *cobra.Command, command, msg string) error {
	return emitResponse(cmd, cmdResponse{Status: "error", Command: command, Error: msg})
}

func emitResponse(cmd *cobra.Command, resp cmdResponse) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	return nil
}

// truncateText shortens a string to maxLen runes, adding "..." if truncated
func truncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else if diff < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}
