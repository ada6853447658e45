// ABOUTME: Save command for writing facts and session summaries
// ABOUTME: Appends to the daily ledger or the size-capped sessions ledger
package commands

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/registry"
	"github.com/recallhq/recall/internal/session"
)

var (
	saveFactContent    string
	saveFactType       string
	saveFactEntities   []string
	saveFactConfidence float64
	saveFactSession    string

	saveSummaryTopic     string
	saveSummaryText      string
	saveSummarySession   string
	saveSummarySource    string
	saveSummaryDecisions []string
	saveSummaryTodos     []string
	saveSummaryTags      []string
)

// NewSaveCmd creates the save command group
func NewSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a fact or session summary",
		Long: `Save a fact to today's daily ledger, or a summary to the
sessions ledger.

Examples:
  recall save fact "prefers tabs over spaces" --type O
  recall save summary --topic "auth refactor" --summary "moved token checks into middleware"`,
	}

	cmd.AddCommand(newSaveFactCmd(), newSaveSummaryCmd())

	return cmd
}

func newSaveFactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fact [content]",
		Short: "Append a fact to today's ledger",
		Args:  cobra.ArbitraryArgs,
		RunE:  runSaveFact,
	}

	cmd.Flags().StringVar(&saveFactContent, "content", "", "Fact content (alternative to positional args)")
	cmd.Flags().StringVar(&saveFactType, "type", models.MemoryWorld, "Memory type: W, B, O, or S")
	cmd.Flags().StringSliceVar(&saveFactEntities, "entities", nil, "Entities mentioned in the fact")
	cmd.Flags().Float64Var(&saveFactConfidence, "confidence", 0.8, "Confidence 0-1")
	cmd.Flags().StringVar(&saveFactSession, "session", "", "Session id to attribute the fact to")

	return cmd
}

func runSaveFact(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "save fact")
	}

	content := saveFactContent
	if content == "" {
		content = strings.Join(args, " ")
	}
	if content == "" {
		return fmt.Errorf("content is required (positional or --content)")
	}
	if !models.ValidMemoryType(saveFactType) {
		return fmt.Errorf("type must be one of W, B, O, S; got %q", saveFactType)
	}
	if saveFactConfidence < 0 || saveFactConfidence > 1 {
		return fmt.Errorf("confidence must be 0-1, got %f", saveFactConfidence)
	}

	entry := &models.FactEntry{
		Type:       models.TypeFact,
		MemoryType: saveFactType,
		Content:    content,
		Entities:   saveFactEntities,
		Confidence: saveFactConfidence,
	}
	if saveFactSession != "" {
		entry.Source = &models.EntrySource{Session: saveFactSession}
	}

	id, err := led.Append(entry)
	if err != nil {
		return fmt.Errorf("saving fact: %w", err)
	}

	if err := registry.New(cfg).Record(models.TypeFact); err != nil && !quiet {
		log.Printf("[CLI] type registry update failed: %v", err)
	}
	if saveFactSession != "" {
		if err := session.New(cfg).IncrementFactCount(saveFactSession, saveFactType); err != nil && !quiet {
			log.Printf("[CLI] session counter update failed: %v", err)
		}
	}

	if textOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved fact %s (%s)\n", id, saveFactType)
		return nil
	}
	return emitJSON(cmd, "save fact", map[string]any{
		"id":          id,
		"memory_type": saveFactType,
	})
}

func newSaveSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Append a session summary",
		Long: `Append a summary line to sessions.jsonl. With --session the save
is atomic per session: a second save for the same session reports
"exists" instead of writing a duplicate line.`,
		RunE: runSaveSummary,
	}

	cmd.Flags().StringVar(&saveSummaryTopic, "topic", "", "Short topic line (required)")
	cmd.Flags().StringVar(&saveSummaryText, "summary", "", "Summary text (required)")
	cmd.Flags().StringVar(&saveSummarySession, "session", "", "Session id for at-most-once saving")
	cmd.Flags().StringVar(&saveSummarySource, "source", models.SourceLayer1Rules, "Save layer that produced the summary")
	cmd.Flags().StringSliceVar(&saveSummaryDecisions, "decisions", nil, "Decisions made this session")
	cmd.Flags().StringSliceVar(&saveSummaryTodos, "todos", nil, "Open todos")
	cmd.Flags().StringSliceVar(&saveSummaryTags, "tags", nil, "Freeform tags")
	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("summary")

	return cmd
}

func runSaveSummary(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "save summary")
	}

	line := &models.SessionSummary{
		SessionID: saveSummarySession,
		Topic:     saveSummaryTopic,
		Summary:   saveSummaryText,
		Decisions: saveSummaryDecisions,
		Todos:     saveSummaryTodos,
		Tags:      saveSummaryTags,
		Source:    saveSummarySource,
	}

	status := string(models.SaveSaved)
	reason := ""
	if saveSummarySession != "" {
		result := session.New(cfg).SaveSummaryAtomic(saveSummarySession, saveSummarySource, func() error {
			return led.AppendSummaryLine(line)
		})
		status, reason = string(result.Status), result.Reason
		if result.Status == models.SaveError {
			exitStatus = 1
			if textOutput() {
				fmt.Fprintf(cmd.OutOrStdout(), "Summary error: %s\n", reason)
				return nil
			}
			return emitError(cmd, "save summary", reason)
		}
	} else if err := led.AppendSummaryLine(line); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}

	if textOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), "Summary %s: %s\n", status, saveSummaryTopic)
		return nil
	}
	return emitJSON(cmd, "save summary", map[string]any{
		"status": status,
		"reason": reason,
		"topic":  saveSummaryTopic,
	})
}
