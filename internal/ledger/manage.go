// ABOUTME: Lifecycle-facing ledger operations: filter, soft-delete, restore, purge
// ABOUTME: Works on raw JSON objects so unknown fields survive every rewrite
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/util"
)

// RawEntry is one ledger line as a generic JSON object. Manage operations
// use this shape, not the typed structs, so fields this build does not know
// about are preserved on rewrite. The synthetic sourceFileKey is stripped
// before anything is written back.
type RawEntry map[string]any

const sourceFileKey = "_source_file"

// Scopes for ReadAllRaw.
const (
	ScopeDaily    = "daily"
	ScopeSessions = "sessions"
	ScopeAll      = "all"
)

func (r RawEntry) str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// ID returns the entry id, if any.
func (r RawEntry) ID() string { return r.str("id") }

// Type returns the entry type, if any.
func (r RawEntry) Type() string { return r.str("type") }

// Timestamp returns the entry timestamp, if any.
func (r RawEntry) Timestamp() string { return r.str("timestamp") }

// SourceFile returns the basename of the ledger file the entry came from.
func (r RawEntry) SourceFile() string { return r.str(sourceFileKey) }

// Content returns the entry content, if any.
func (r RawEntry) Content() string { return r.str("content") }

// DeletedAt returns the soft-delete stamp, if any.
func (r RawEntry) DeletedAt() string { return r.str("deleted_at") }

// Deleted reports whether the entry carries a soft-delete stamp.
func (r RawEntry) Deleted() bool { return r.DeletedAt() != "" }

// Export returns a copy safe to serialize: the synthetic source-file key is
// replaced with a plain "source_file" field.
func (r RawEntry) Export() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if k == sourceFileKey {
			continue
		}
		out[k] = v
	}
	if sf := r.SourceFile(); sf != "" {
		out["source_file"] = sf
	}
	return out
}

// readRawLines parses a JSONL file into raw entries, skipping bad lines.
func readRawLines(path string) []RawEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var entries []RawEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e RawEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// rewriteRaw atomically replaces a JSONL file: write to a temp file in the
// same directory, fsync, then rename over the original. A crash mid-rewrite
// leaves either the old file or the new one, never a half-written mix.
func rewriteRaw(path string, entries []RawEntry) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		clean := make(RawEntry, len(e))
		for k, v := range e {
			if strings.HasPrefix(k, "_") {
				continue
			}
			clean[k] = v
		}
		line, err := json.Marshal(clean)
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("encoding entry %q: %w", e.ID(), err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("writing temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("flushing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// ReadAllRaw reads every entry in the given scope, tagging each with its
// source file. Soft-deleted entries are filtered out unless requested.
func (l *Ledger) ReadAllRaw(scope string, includeDeleted bool) []RawEntry {
	var entries []RawEntry
	if scope == ScopeDaily || scope == ScopeAll {
		for _, path := range l.DailyFiles() {
			for _, e := range readRawLines(path) {
				e[sourceFileKey] = filepath.Base(path)
				entries = append(entries, e)
			}
		}
	}
	if scope == ScopeSessions || scope == ScopeAll {
		for _, e := range readRawLines(l.cfg.SessionsPath()) {
			e[sourceFileKey] = filepath.Base(l.cfg.SessionsPath())
			entries = append(entries, e)
		}
	}
	if !includeDeleted {
		active := entries[:0]
		for _, e := range entries {
			if !e.Deleted() {
				active = append(active, e)
			}
		}
		entries = active
	}
	return entries
}

// FilterOpts narrows a raw entry set. Zero values mean "no constraint".
// Date fields compare against the YYYY-MM-DD prefix of each timestamp,
// inclusive on both ends.
type FilterOpts struct {
	ID       string
	Type     string
	Keyword  string
	DateFrom string
	DateTo   string
	Before   string
}

// Filter applies the options in sequence.
func Filter(entries []RawEntry, opts FilterOpts) []RawEntry {
	result := entries
	if opts.ID != "" {
		result = keep(result, func(e RawEntry) bool { return e.ID() == opts.ID })
	}
	if opts.Type != "" {
		result = keep(result, func(e RawEntry) bool { return e.Type() == opts.Type })
	}
	if opts.Keyword != "" {
		kw := strings.ToLower(opts.Keyword)
		result = keep(result, func(e RawEntry) bool {
			if strings.Contains(strings.ToLower(e.str("content")), kw) {
				return true
			}
			if ents, ok := e["entities"].([]any); ok {
				for _, ent := range ents {
					if s, ok := ent.(string); ok && strings.Contains(strings.ToLower(s), kw) {
						return true
					}
				}
			}
			return false
		})
	}
	if opts.Before != "" {
		result = keep(result, func(e RawEntry) bool { return datePrefix(e) <= opts.Before })
	}
	if opts.DateFrom != "" {
		result = keep(result, func(e RawEntry) bool { return datePrefix(e) >= opts.DateFrom })
	}
	if opts.DateTo != "" {
		result = keep(result, func(e RawEntry) bool { return datePrefix(e) <= opts.DateTo })
	}
	return result
}

func keep(entries []RawEntry, pred func(RawEntry) bool) []RawEntry {
	var out []RawEntry
	for _, e := range entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func datePrefix(e RawEntry) string {
	ts := e.Timestamp()
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

// MutationResult reports how many entries a rewrite touched and which files
// were rewritten (basenames).
type MutationResult struct {
	Count         int
	AffectedFiles []string
}

// SoftDeleteIDs stamps deleted_at/deleted_by on matching, not-yet-deleted
// entries across both ledgers, rewriting each affected file atomically.
func (l *Ledger) SoftDeleteIDs(ids map[string]bool, actor string) (MutationResult, error) {
	now := util.IsoNow()
	return l.mutateFiles(func(entries []RawEntry) int {
		changed := 0
		for _, e := range entries {
			if ids[e.ID()] && !e.Deleted() {
				e["deleted_at"] = now
				e["deleted_by"] = actor
				changed++
			}
		}
		return changed
	})
}

// RestoreIDs clears deletion stamps from matching soft-deleted entries.
func (l *Ledger) RestoreIDs(ids map[string]bool) (MutationResult, error) {
	return l.mutateFiles(func(entries []RawEntry) int {
		changed := 0
		for _, e := range entries {
			if ids[e.ID()] && e.Deleted() {
				delete(e, "deleted_at")
				delete(e, "deleted_by")
				changed++
			}
		}
		return changed
	})
}

// PurgeIDs physically removes matching entries. There is no undo beyond the
// backups the lifecycle manager takes first.
func (l *Ledger) PurgeIDs(ids map[string]bool) (MutationResult, error) {
	result := MutationResult{}
	paths := append(l.DailyFiles(), l.cfg.SessionsPath())
	for _, path := range paths {
		entries := readRawLines(path)
		if entries == nil {
			continue
		}
		kept := entries[:0]
		removed := 0
		for _, e := range entries {
			if ids[e.ID()] {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if removed == 0 {
			continue
		}
		if err := rewriteRaw(path, kept); err != nil {
			return result, err
		}
		result.Count += removed
		result.AffectedFiles = append(result.AffectedFiles, filepath.Base(path))
	}
	return result, nil
}

// UpdateEntry applies field updates to the entry with the given id in the
// named source file (basename), rewriting that file atomically. Returns
// false if no entry matched.
func (l *Ledger) UpdateEntry(sourceFile, id string, updates map[string]any) (bool, error) {
	path := l.cfg.SessionsPath()
	if sourceFile != config.SessionsFile {
		path = filepath.Join(l.cfg.DailyDir(), sourceFile)
	}
	entries := readRawLines(path)
	found := false
	for _, e := range entries {
		if e.ID() == id {
			for k, v := range updates {
				e[k] = v
			}
			found = true
		}
	}
	if !found {
		return false, nil
	}
	return true, rewriteRaw(path, entries)
}

// mutateFiles runs mutate over each ledger file, rewriting only the files
// where it reports changes.
func (l *Ledger) mutateFiles(mutate func([]RawEntry) int) (MutationResult, error) {
	result := MutationResult{}
	paths := append(l.DailyFiles(), l.cfg.SessionsPath())
	for _, path := range paths {
		entries := readRawLines(path)
		if entries == nil {
			continue
		}
		if changed := mutate(entries); changed > 0 {
			if err := rewriteRaw(path, entries); err != nil {
				return result, err
			}
			result.Count += changed
			result.AffectedFiles = append(result.AffectedFiles, filepath.Base(path))
		}
	}
	return result, nil
}

// TypeCount aggregates entry totals for one type.
type TypeCount struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Deleted int `json:"deleted"`
}

// CountByType tallies every entry, deleted included, grouped by type.
func (l *Ledger) CountByType() map[string]TypeCount {
	counts := make(map[string]TypeCount)
	for _, e := range l.ReadAllRaw(ScopeAll, true) {
		typ := e.Type()
		if typ == "" {
			typ = "unknown"
		}
		c := counts[typ]
		c.Total++
		if e.Deleted() {
			c.Deleted++
		} else {
			c.Active++
		}
		counts[typ] = c
	}
	return counts
}
