// ABOUTME: Manage command group for ledger lifecycle operations
// ABOUTME: list, stats, delete, restore, edit, export, cleanup, doctor
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/lifecycle"
	"github.com/recallhq/recall/internal/session"
	"github.com/recallhq/recall/internal/util"
)

var (
	manageScope          string
	manageID             string
	manageType           string
	manageKeyword        string
	manageFrom           string
	manageTo             string
	manageBefore         string
	manageIncludeDeleted bool
	manageLimit          int
	manageOffset         int

	manageAll     bool
	managePurge   bool
	manageConfirm bool
	manageNoSync  bool

	restoreFromDate   string
	restoreFromBackup string

	editFile       string
	editContent    string
	editMemoryType string
	editConfidence float64
	editEntities   []string

	exportScope  string
	exportOutput string

	statsFull bool

	cleanupOlderThan    int
	cleanupSystemEvents bool
	cleanupPurgeDeleted bool
	cleanupStates       bool
)

// NewManageCmd creates the manage command group
func NewManageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manage",
		Short: "Inspect and maintain the memory ledgers",
		Long: `Inspect and maintain the JSONL ledgers: list and export records,
soft-delete and restore them, edit fields in place, run retention
cleanup, and check data health.

Destructive subcommands preview by default and only mutate with
--confirm. Every confirmed mutation takes a backup and writes an
audit record before the index is resynced.`,
	}

	cmd.AddCommand(
		newManageListCmd(),
		newManageStatsCmd(),
		newManageDeleteCmd(),
		newManageRestoreCmd(),
		newManageEditCmd(),
		newManageExportCmd(),
		newManageCleanupCmd(),
		newManageRebuildIndexCmd(),
		newManageDoctorCmd(),
	)

	return cmd
}

// newManager wires a lifecycle manager whose post-mutation resync runs the
// incremental index engine.
func newManager(cfg *config.Config, led *ledger.Ledger) *lifecycle.Manager {
	m := lifecycle.NewManager(cfg, led)
	m.Resync = func() error {
		_, err := newEngine(cfg, led).Sync(context.Background(), false)
		return err
	}
	return m
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&manageID, "id", "", "Match a single entry id")
	cmd.Flags().StringVar(&manageType, "type", "", "Match entry type (fact, session_start, ...)")
	cmd.Flags().StringVar(&manageKeyword, "keyword", "", "Case-insensitive content substring")
	cmd.Flags().StringVar(&manageFrom, "from", "", "Inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&manageTo, "to", "", "Inclusive end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&manageBefore, "before", "", "Entries dated on or before (YYYY-MM-DD)")
}

func filterOpts() ledger.FilterOpts {
	return ledger.FilterOpts{
		ID:       manageID,
		Type:     manageType,
		Keyword:  manageKeyword,
		DateFrom: manageFrom,
		DateTo:   manageTo,
		Before:   manageBefore,
	}
}

func newManageListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries",
		RunE:  runManageList,
	}

	cmd.Flags().StringVar(&manageScope, "scope", ledger.ScopeDaily, "Ledger scope: daily, sessions, or all")
	cmd.Flags().BoolVar(&manageIncludeDeleted, "include-deleted", false, "Include soft-deleted entries")
	cmd.Flags().IntVar(&manageLimit, "limit", 50, "Maximum entries to show")
	cmd.Flags().IntVar(&manageOffset, "offset", 0, "Entries to skip")
	addFilterFlags(cmd)

	return cmd
}

func runManageList(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "manage list")
	}

	entries := ledger.Filter(led.ReadAllRaw(manageScope, manageIncludeDeleted), filterOpts())
	total := len(entries)
	if manageOffset > 0 {
		if manageOffset >= len(entries) {
			entries = nil
		} else {
			entries = entries[manageOffset:]
		}
	}
	if manageLimit > 0 && len(entries) > manageLimit {
		entries = entries[:manageLimit]
	}

	if textOutput() {
		printEntryTable(cmd, entries)
		return nil
	}
	records := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Export())
	}
	return emitJSON(cmd, "manage list", map[string]any{
		"total":   total,
		"shown":   len(records),
		"entries": records,
	})
}

func printEntryTable(cmd *cobra.Command, entries []ledger.RawEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No entries")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTYPE\tDATE\tCONTENT\n")
	for _, e := range entries {
		date := e.Timestamp()
		if ts := util.ParseISO(date); !ts.IsZero() {
			date = formatTime(ts)
		} else if len(date) >= 10 {
			date = date[:10]
		}
		content := e.Content()
		if e.Deleted() {
			content = "[deleted] " + content
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID(), e.Type(), date, truncateText(content, 60))
	}
	w.Flush()
}

func newManageStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ledger and index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, led, err := openLedger()
			if err != nil {
				return err
			}
			if cfg.Disabled() {
				return emitDisabled(cmd, "manage stats")
			}
			stats, err := newManager(cfg, led).Stats()
			if err != nil {
				return fmt.Errorf("collecting stats: %w", err)
			}
			if textOutput() {
				printStats(cmd, stats)
				return nil
			}
			return emitJSON(cmd, "manage stats", stats)
		},
	}
	cmd.Flags().BoolVar(&statsFull, "full", false, "Include per-type and registry detail in text output")
	return cmd
}

func printStats(cmd *cobra.Command, s *lifecycle.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Data root:  %s (%d bytes)\n", s.DataDir, s.DiskBytes)
	fmt.Fprintf(out, "Entries:    %d total, %d active, %d deleted\n", s.TotalEntries, s.ActiveEntries, s.DeletedEntries)
	fmt.Fprintf(out, "Sessions:   %d", s.Sessions)
	if s.LatestTopic != "" {
		fmt.Fprintf(out, " (latest: %s)", truncateText(s.LatestTopic, 50))
	}
	fmt.Fprintln(out)
	if s.IndexChunks > 0 || s.LastSync != "" {
		fmt.Fprintf(out, "Index:      %d chunks, %d embedded, last sync %s\n", s.IndexChunks, s.IndexEmbedded, s.LastSync)
	} else {
		fmt.Fprintln(out, "Index:      missing (run: recall sync)")
	}
	fmt.Fprintf(out, "Backups:    %d\n", s.Backups)
	if statsFull {
		fmt.Fprintln(out, "Per type:")
		for name, c := range s.EntriesByType {
			fmt.Fprintf(out, "  %-16s %d active, %d deleted\n", name, c.Active, c.Deleted)
		}
		if len(s.KnownTypes) > 0 {
			fmt.Fprintf(out, "Registered types: %s\n", strings.Join(s.KnownTypes, ", "))
		}
	}
}

func newManageDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Soft-delete (or purge) matching entries",
		Long: `Soft-delete matching entries, or remove them physically with
--purge. Previews matches by default; --confirm applies the change
under the manage lock, after taking a backup and writing an audit
record. Requires a filter flag or --all.`,
		RunE: runManageDelete,
	}

	cmd.Flags().StringVar(&manageScope, "scope", ledger.ScopeDaily, "Ledger scope: daily, sessions, or all")
	cmd.Flags().BoolVar(&manageAll, "all", false, "Target every entry in scope")
	cmd.Flags().BoolVar(&managePurge, "purge", false, "Remove entries physically instead of soft-deleting")
	cmd.Flags().BoolVar(&manageConfirm, "confirm", false, "Apply the change instead of previewing")
	cmd.Flags().BoolVar(&manageNoSync, "no-sync", false, "Skip the index resync after mutating")
	addFilterFlags(cmd)

	return cmd
}

func runManageDelete(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "manage delete")
	}

	result, err := newManager(cfg, led).Delete(lifecycle.DeleteOptions{
		Scope:   manageScope,
		Filter:  filterOpts(),
		All:     manageAll,
		Purge:   managePurge,
		Confirm: manageConfirm,
		NoSync:  manageNoSync,
	})
	if err != nil {
		return err
	}
	return emitJSON(cmd, "manage delete", result)
}

func newManageRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore soft-deleted entries or a backup",
		Long: `Clear soft-delete stamps by id, by deletion date, or for every
deleted entry. --from-backup instead copies a named backup snapshot
over the current ledger files.`,
		RunE: runManageRestore,
	}

	cmd.Flags().StringVar(&manageID, "id", "", "Restore a single entry id")
	cmd.Flags().StringVar(&restoreFromDate, "from-date", "", "Restore entries deleted on or after (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&manageAll, "all", false, "Restore every soft-deleted entry")
	cmd.Flags().StringVar(&restoreFromBackup, "from-backup", "", "Backup snapshot name to restore from")
	cmd.Flags().BoolVar(&manageNoSync, "no-sync", false, "Skip the index resync after mutating")

	return cmd
}

func runManageRestore(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "manage restore")
	}

	result, err := newManager(cfg, led).Restore(lifecycle.RestoreOptions{
		ID:         manageID,
		FromDate:   restoreFromDate,
		All:        manageAll,
		FromBackup: restoreFromBackup,
		NoSync:     manageNoSync,
	})
	if err != nil {
		return err
	}
	return emitJSON(cmd, "manage restore", result)
}

func newManageEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit fields of one entry in place",
		Long: `Rewrite one entry's fields in its ledger file. The id is
immutable. The index is not resynced: run recall sync --rebuild
afterwards, or wait for doctor to flag the stale file.`,
		RunE: runManageEdit,
	}

	cmd.Flags().StringVar(&manageID, "id", "", "Entry id to edit (required)")
	cmd.Flags().StringVar(&editFile, "file", "", "Ledger file holding the entry (default: today's)")
	cmd.Flags().StringVar(&editContent, "content", "", "New content")
	cmd.Flags().StringVar(&editMemoryType, "memory-type", "", "New memory type (W, B, O, S)")
	cmd.Flags().Float64Var(&editConfidence, "confidence", 0, "New confidence 0-1")
	cmd.Flags().StringSliceVar(&editEntities, "entities", nil, "New entity list")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runManageEdit(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "manage edit")
	}

	updates := map[string]any{}
	if cmd.Flags().Changed("content") {
		updates["content"] = editContent
	}
	if cmd.Flags().Changed("memory-type") {
		updates["memory_type"] = editMemoryType
	}
	if cmd.Flags().Changed("confidence") {
		updates["confidence"] = editConfidence
	}
	if cmd.Flags().Changed("entities") {
		updates["entities"] = editEntities
	}

	file := editFile
	if file == "" {
		file = util.TodayStr() + ".jsonl"
	}

	opID, err := newManager(cfg, led).Edit(file, manageID, updates)
	if err != nil {
		return err
	}
	return emitJSON(cmd, "manage edit", map[string]any{
		"id":    manageID,
		"file":  file,
		"op_id": opID,
	})
}

func newManageExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledger entries as JSONL",
		RunE:  runManageExport,
	}

	cmd.Flags().StringVar(&exportScope, "scope", ledger.ScopeAll, "Ledger scope: daily, sessions, or all")
	cmd.Flags().BoolVar(&manageIncludeDeleted, "include-deleted", false, "Include soft-deleted entries")
	cmd.Flags().StringVar(&exportOutput, "output", "", "Write to file instead of stdout")
	addFilterFlags(cmd)

	return cmd
}

func runManageExport(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "manage export")
	}

	entries := ledger.Filter(led.ReadAllRaw(exportScope, manageIncludeDeleted), filterOpts())

	var sb strings.Builder
	for _, e := range entries {
		line, err := marshalCompact(e.Export())
		if err != nil {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	if exportOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), sb.String())
		return nil
	}
	if err := os.WriteFile(exportOutput, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return emitJSON(cmd, "manage export", map[string]any{
		"entries": len(entries),
		"output":  exportOutput,
	})
}

func newManageCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Apply retention policy to old entries",
		Long: `Soft-delete facts older than the retention window, sweep system
event entries, optionally purge already soft-deleted records, and
prune expired backups and stale session state. Dry-run by default;
--confirm applies.`,
		RunE: runManageCleanup,
	}

	cmd.Flags().IntVar(&cleanupOlderThan, "older-than", 0, "Retention window in days (default: configured)")
	cmd.Flags().BoolVar(&cleanupSystemEvents, "system-events", false, "Also sweep session/audit event entries")
	cmd.Flags().BoolVar(&cleanupPurgeDeleted, "purge-deleted", false, "Physically remove soft-deleted entries")
	cmd.Flags().BoolVar(&cleanupStates, "states", true, "Remove stale session state files")
	cmd.Flags().BoolVar(&manageConfirm, "confirm", false, "Apply instead of dry-run")
	cmd.Flags().BoolVar(&manageNoSync, "no-sync", false, "Skip the index resync after mutating")

	return cmd
}

func runManageCleanup(cmd *cobra.Command, args []string) error {
	cfg, led, err := openLedger()
	if err != nil {
		return err
	}
	if cfg.Disabled() {
		return emitDisabled(cmd, "manage cleanup")
	}

	olderThan := cleanupOlderThan
	if olderThan <= 0 {
		olderThan = cfg.AutoCleanupDays
	}

	result, err := newManager(cfg, led).Cleanup(lifecycle.CleanupOptions{
		OlderThanDays: olderThan,
		SystemEvents:  cleanupSystemEvents,
		PurgeDeleted:  cleanupPurgeDeleted,
		Confirm:       manageConfirm,
		NoSync:        manageNoSync,
	})
	if err != nil {
		return err
	}

	statesRemoved := 0
	if manageConfirm && cleanupStates {
		maint := session.NewMaintenance(cfg, led, session.New(cfg))
		statesRemoved, err = maint.CleanStates(cfg.StateRetainDays)
		if err != nil && !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: cleaning session state: %v\n", err)
		}
	}

	return emitJSON(cmd, "manage cleanup", map[string]any{
		"result":         result,
		"states_removed": statesRemoved,
	})
}

func newManageRebuildIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-index",
		Short: "Drop and rebuild the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, led, err := openLedger()
			if err != nil {
				return err
			}
			if cfg.Disabled() {
				return emitDisabled(cmd, "manage rebuild-index")
			}
			indexed, err := newEngine(cfg, led).Sync(cmd.Context(), true)
			if err != nil {
				return fmt.Errorf("rebuilding index: %w", err)
			}
			return emitJSON(cmd, "manage rebuild-index", map[string]any{
				"chunks_indexed": indexed,
			})
		},
	}
}

func newManageDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check ledger and index health",
		Long: `Check the data root for unparsable lines, duplicate ids, an
unreachable or stale index, and unusual write volume. Exits 1 when
an error-level problem is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, led, err := openLedger()
			if err != nil {
				return err
			}
			if cfg.Disabled() {
				return emitDisabled(cmd, "manage doctor")
			}
			report := newManager(cfg, led).Doctor()
			if !report.Healthy {
				exitStatus = 1
			}
			if textOutput() {
				printDoctorReport(cmd, report)
				return nil
			}
			return emitJSON(cmd, "manage doctor", report)
		},
	}
}

func printDoctorReport(cmd *cobra.Command, report *lifecycle.DoctorReport) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, c := range report.Checks {
		fmt.Fprintf(w, "%s\t%s\t%s\n", strings.ToUpper(c.Status), c.Name, c.Detail)
	}
	w.Flush()
	if report.Healthy {
		fmt.Fprintln(cmd.OutOrStdout(), "Healthy")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Problems found")
	}
}

func marshalCompact(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
