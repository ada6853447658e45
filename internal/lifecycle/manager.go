// ABOUTME: Lifecycle manager: soft-delete, restore, purge, edit, cleanup
// ABOUTME: Every confirmed mutation runs backup -> rewrite -> audit under one lock
package lifecycle

import (
	"fmt"
	"log"
	"sort"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/lockfile"
	"github.com/recallhq/recall/internal/memerr"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

const (
	previewLimit      = 20
	previewContentLen = 80
)

// Manager mutates the ledgers with the safety rails the append path does not
// need: a manage lock serializing rewrites, a file snapshot before every
// rewrite, and an audit line for every operation. Destructive calls preview
// by default and mutate only when confirmed.
type Manager struct {
	cfg    *config.Config
	ledger *ledger.Ledger
	audit  *AuditLog

	// Resync, when set, is invoked after a confirmed mutation unless the
	// caller opted out. Failures are logged, never fatal: the ledger is the
	// source of truth and the index catches up on the next sync.
	Resync func() error
}

// NewManager returns a Manager over the given ledger.
func NewManager(cfg *config.Config, led *ledger.Ledger) *Manager {
	return &Manager{cfg: cfg, ledger: led, audit: NewAuditLog(cfg)}
}

// Audit exposes the manager's audit log.
func (m *Manager) Audit() *AuditLog {
	return m.audit
}

// RecordPreview is the short form of a matched entry shown before a
// destructive operation is confirmed.
type RecordPreview struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
	SourceFile string `json:"source_file"`
}

// DeleteOptions selects entries to delete and how.
type DeleteOptions struct {
	Scope   string // daily, sessions, or all; empty means daily
	Filter  ledger.FilterOpts
	All     bool // required to delete without any filter
	Purge   bool // physical removal instead of a soft-delete stamp
	Confirm bool // without it, only a preview is returned
	NoSync  bool
}

// DeleteResult reports a delete preview or a confirmed mutation.
type DeleteResult struct {
	Matched    int             `json:"matched"`
	Mode       string          `json:"mode"`
	Preview    []RecordPreview `json:"preview,omitempty"`
	Deleted    int             `json:"deleted"`
	Files      []string        `json:"files,omitempty"`
	BackupPath string          `json:"backup_path,omitempty"`
	OpID       string          `json:"op_id,omitempty"`
	Resynced   bool            `json:"resynced"`
}

// Delete soft-deletes (or purges) the entries matching the options. Without
// Confirm it returns the first matches as a preview and touches nothing.
func (m *Manager) Delete(opts DeleteOptions) (*DeleteResult, error) {
	scope, err := normalizeScope(opts.Scope)
	if err != nil {
		return nil, err
	}
	if opts.Filter == (ledger.FilterOpts{}) && !opts.All {
		return nil, fmt.Errorf("%w: refusing to delete everything without --all", memerr.ErrValidation)
	}

	matched := ledger.Filter(m.ledger.ReadAllRaw(scope, false), opts.Filter)
	result := &DeleteResult{Matched: len(matched), Mode: "soft"}
	if opts.Purge {
		result.Mode = "purge"
	}
	if len(matched) == 0 {
		return result, nil
	}
	if !opts.Confirm {
		result.Preview = previewOf(matched)
		return result, nil
	}

	ids := idSet(matched)
	err = m.withManageLock(func() error {
		backupPath, err := m.snapshotFiles(sourceFilesOf(matched))
		if err != nil {
			return err
		}
		result.BackupPath = backupPath

		var mut ledger.MutationResult
		var mutErr error
		if opts.Purge {
			mut, mutErr = m.ledger.PurgeIDs(ids)
		} else {
			mut, mutErr = m.ledger.SoftDeleteIDs(ids, actorAgent)
		}
		result.Deleted = mut.Count
		result.Files = mut.AffectedFiles

		result.OpID = m.record(&models.AuditEntry{
			Command:     "delete",
			Scope:       scope,
			BeforeCount: len(matched),
			AfterCount:  len(matched) - mut.Count,
			BackupPath:  backupPath,
		}, mutErr)
		return mutErr
	})
	if err != nil {
		return result, err
	}

	result.Resynced = m.maybeResync(opts.NoSync)
	return result, nil
}

// RestoreOptions selects soft-deleted entries to bring back, or a whole
// backup snapshot to copy over the live ledger.
type RestoreOptions struct {
	ID         string
	FromDate   string // restore entries soft-deleted on or after this date
	All        bool
	FromBackup string // snapshot name; overrides the id/date selectors
	NoSync     bool
}

// RestoreResult reports a restore.
type RestoreResult struct {
	Restored int      `json:"restored"`
	Files    []string `json:"files,omitempty"`
	OpID     string   `json:"op_id,omitempty"`
	Resynced bool     `json:"resynced"`
}

// Restore clears soft-delete stamps, or copies a backup snapshot back over
// the live files when FromBackup is set.
func (m *Manager) Restore(opts RestoreOptions) (*RestoreResult, error) {
	result := &RestoreResult{}

	if opts.FromBackup != "" {
		err := m.withManageLock(func() error {
			files, err := m.restoreBackupFiles(opts.FromBackup)
			result.Restored = len(files)
			result.Files = files
			result.OpID = m.record(&models.AuditEntry{
				Command:    "restore_backup",
				Scope:      ledger.ScopeAll,
				AfterCount: len(files),
				BackupPath: opts.FromBackup,
			}, err)
			return err
		})
		if err != nil {
			return result, err
		}
		result.Resynced = m.maybeResync(opts.NoSync)
		return result, nil
	}

	if opts.ID == "" && opts.FromDate == "" && !opts.All {
		return nil, fmt.Errorf("%w: restore needs --id, --from-date, or --all", memerr.ErrValidation)
	}

	ids := make(map[string]bool)
	for _, e := range m.ledger.ReadAllRaw(ledger.ScopeAll, true) {
		if !e.Deleted() {
			continue
		}
		switch {
		case opts.ID != "":
			if e.ID() == opts.ID {
				ids[e.ID()] = true
			}
		case opts.FromDate != "":
			deletedAt := e.DeletedAt()
			if len(deletedAt) >= 10 && deletedAt[:10] >= opts.FromDate {
				ids[e.ID()] = true
			}
		default:
			ids[e.ID()] = true
		}
	}
	if len(ids) == 0 {
		return result, nil
	}

	err := m.withManageLock(func() error {
		mut, mutErr := m.ledger.RestoreIDs(ids)
		result.Restored = mut.Count
		result.Files = mut.AffectedFiles
		result.OpID = m.record(&models.AuditEntry{
			Command:     "restore",
			Scope:       ledger.ScopeAll,
			BeforeCount: len(ids),
			AfterCount:  mut.Count,
		}, mutErr)
		return mutErr
	})
	if err != nil {
		return result, err
	}
	result.Resynced = m.maybeResync(opts.NoSync)
	return result, nil
}

// Edit updates fields on one entry in place, preserving everything else on
// the line. The id itself is immutable. Note the index does not see in-place
// edits until a rebuild; doctor flags the condition.
func (m *Manager) Edit(sourceFile, id string, updates map[string]any) (string, error) {
	if id == "" || len(updates) == 0 {
		return "", fmt.Errorf("%w: edit needs an id and at least one field", memerr.ErrValidation)
	}
	if _, ok := updates["id"]; ok {
		return "", fmt.Errorf("%w: entry ids are immutable", memerr.ErrValidation)
	}

	var opID string
	err := m.withManageLock(func() error {
		backupPath, err := m.snapshotFiles([]string{sourceFile})
		if err != nil {
			return err
		}
		found, editErr := m.ledger.UpdateEntry(sourceFile, id, updates)
		if editErr == nil && !found {
			editErr = fmt.Errorf("%w: entry %s in %s", memerr.ErrNotFound, id, sourceFile)
		}
		opID = m.record(&models.AuditEntry{
			Command:     "edit",
			Scope:       sourceFile,
			BeforeCount: 1,
			AfterCount:  1,
			BackupPath:  backupPath,
		}, editErr)
		return editErr
	})
	return opID, err
}

// CleanupOptions selects the retention passes to run.
type CleanupOptions struct {
	OlderThanDays int  // soft-delete facts older than this many days; 0 skips
	SystemEvents  bool // soft-delete session event and warning entries
	PurgeDeleted  bool // physically remove already-soft-deleted entries
	Confirm       bool
	NoSync        bool
}

// CleanupResult reports a cleanup preview or a confirmed run.
type CleanupResult struct {
	SoftDeleteCandidates int    `json:"soft_delete_candidates"`
	PurgeCandidates      int    `json:"purge_candidates"`
	SoftDeleted          int    `json:"soft_deleted"`
	Purged               int    `json:"purged"`
	BackupsPruned        int    `json:"backups_pruned"`
	BackupPath           string `json:"backup_path,omitempty"`
	OpID                 string `json:"op_id,omitempty"`
	Resynced             bool   `json:"resynced"`
}

// Cleanup runs the retention passes: age out old facts, drop system event
// entries, purge the soft-deleted backlog, and prune expired backups.
// Without Confirm it reports candidate counts and changes nothing.
func (m *Manager) Cleanup(opts CleanupOptions) (*CleanupResult, error) {
	result := &CleanupResult{}

	var softTargets []ledger.RawEntry
	if opts.OlderThanDays > 0 {
		cutoff := util.Now().AddDate(0, 0, -opts.OlderThanDays).Format(util.DateFormat)
		softTargets = append(softTargets, ledger.Filter(
			m.ledger.ReadAllRaw(ledger.ScopeDaily, false),
			ledger.FilterOpts{Before: cutoff},
		)...)
	}
	if opts.SystemEvents {
		for _, e := range m.ledger.ReadAllRaw(ledger.ScopeDaily, false) {
			switch e.Type() {
			case models.TypeSessionStart, models.TypeSessionEnd, models.TypeSessionMetrics, models.TypeWarning:
				softTargets = append(softTargets, e)
			}
		}
	}
	var purgeTargets []ledger.RawEntry
	if opts.PurgeDeleted {
		for _, e := range m.ledger.ReadAllRaw(ledger.ScopeAll, true) {
			if e.Deleted() {
				purgeTargets = append(purgeTargets, e)
			}
		}
	}
	result.SoftDeleteCandidates = len(idSet(softTargets))
	result.PurgeCandidates = len(idSet(purgeTargets))

	if !opts.Confirm {
		return result, nil
	}

	mutated := false
	err := m.withManageLock(func() error {
		targets := append(append([]ledger.RawEntry{}, softTargets...), purgeTargets...)
		backupPath, err := m.snapshotFiles(sourceFilesOf(targets))
		if err != nil {
			return err
		}
		result.BackupPath = backupPath

		var runErr error
		if len(softTargets) > 0 {
			mut, err := m.ledger.SoftDeleteIDs(idSet(softTargets), actorAgent)
			result.SoftDeleted = mut.Count
			if err != nil {
				runErr = err
			}
		}
		if runErr == nil && len(purgeTargets) > 0 {
			mut, err := m.ledger.PurgeIDs(idSet(purgeTargets))
			result.Purged = mut.Count
			if err != nil {
				runErr = err
			}
		}
		mutated = result.SoftDeleted+result.Purged > 0

		result.OpID = m.record(&models.AuditEntry{
			Command:     "cleanup",
			Scope:       ledger.ScopeAll,
			BeforeCount: result.SoftDeleteCandidates + result.PurgeCandidates,
			AfterCount:  result.SoftDeleted + result.Purged,
			BackupPath:  backupPath,
		}, runErr)
		return runErr
	})
	if err != nil {
		return result, err
	}

	pruned, err := m.PruneBackups(m.cfg.BackupRetainDays)
	if err != nil {
		log.Printf("[Lifecycle] backup pruning failed: %v", err)
	}
	result.BackupsPruned = pruned

	if mutated {
		result.Resynced = m.maybeResync(opts.NoSync)
	}
	return result, nil
}

// withManageLock serializes mutating operations across processes.
func (m *Manager) withManageLock(fn func() error) error {
	return lockfile.WithLock(m.cfg.ManageLockPath(), m.cfg.LockTimeout, fn)
}

// record appends an audit entry for an operation that ran with the given
// error. Audit failures are logged, not propagated: the mutation outcome is
// what the caller needs to hear about.
func (m *Manager) record(entry *models.AuditEntry, opErr error) string {
	entry.Success = opErr == nil
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	opID, err := m.audit.Append(entry)
	if err != nil {
		log.Printf("[Lifecycle] audit append failed: %v", err)
		return ""
	}
	return opID
}

// maybeResync runs the configured resync hook and reports whether the index
// was brought up to date.
func (m *Manager) maybeResync(noSync bool) bool {
	if noSync || m.Resync == nil {
		return false
	}
	if err := m.Resync(); err != nil {
		log.Printf("[Lifecycle] resync failed, index will catch up on next sync: %v", err)
		return false
	}
	return true
}

func normalizeScope(scope string) (string, error) {
	switch scope {
	case "":
		return ledger.ScopeDaily, nil
	case ledger.ScopeDaily, ledger.ScopeSessions, ledger.ScopeAll:
		return scope, nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", memerr.ErrValidation, scope)
}

func previewOf(entries []ledger.RawEntry) []RecordPreview {
	n := len(entries)
	if n > previewLimit {
		n = previewLimit
	}
	previews := make([]RecordPreview, 0, n)
	for _, e := range entries[:n] {
		content := e.Content()
		if runes := []rune(content); len(runes) > previewContentLen {
			content = string(runes[:previewContentLen])
		}
		previews = append(previews, RecordPreview{
			ID:         e.ID(),
			Type:       e.Type(),
			Content:    content,
			Timestamp:  e.Timestamp(),
			SourceFile: e.SourceFile(),
		})
	}
	return previews
}

func idSet(entries []ledger.RawEntry) map[string]bool {
	ids := make(map[string]bool)
	for _, e := range entries {
		if id := e.ID(); id != "" {
			ids[id] = true
		}
	}
	return ids
}

func sourceFilesOf(entries []ledger.RawEntry) []string {
	seen := make(map[string]bool)
	var files []string
	for _, e := range entries {
		f := e.SourceFile()
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
