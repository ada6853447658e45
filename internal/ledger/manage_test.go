// ABOUTME: Tests for raw-entry management: filter, soft delete, restore, purge
// ABOUTME: Verifies unknown JSON fields survive rewrites
package ledger

import (
	"testing"

	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

func seedLedger(t *testing.T) (*Ledger, []string) {
	t.Helper()
	l := testLedger(t)
	var ids []string
	for _, c := range []string{"postgres uses port 5432", "redis caches sessions", "deploy via fly.io"} {
		id, err := l.Append(&models.FactEntry{Type: models.TypeFact, MemoryType: models.MemoryWorld, Content: c, Entities: []string{"infra"}})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		ids = append(ids, id)
	}
	if err := l.AppendSummaryLine(&models.SessionSummary{SessionID: "sess-1", Topic: "deploy", Summary: "shipped it"}); err != nil {
		t.Fatalf("AppendSummaryLine() error = %v", err)
	}
	return l, ids
}

func TestReadAllRawScopes(t *testing.T) {
	l, _ := seedLedger(t)
	if got := len(l.ReadAllRaw(ScopeDaily, true)); got != 3 {
		t.Errorf("ReadAllRaw(daily) = %d entries, want 3", got)
	}
	if got := len(l.ReadAllRaw(ScopeSessions, true)); got != 1 {
		t.Errorf("ReadAllRaw(sessions) = %d entries, want 1", got)
	}
	all := l.ReadAllRaw(ScopeAll, true)
	if len(all) != 4 {
		t.Fatalf("ReadAllRaw(all) = %d entries, want 4", len(all))
	}
	if all[0].SourceFile() == "" {
		t.Error("ReadAllRaw() entries should carry a source file tag")
	}
}

func TestFilter(t *testing.T) {
	l, ids := seedLedger(t)
	all := l.ReadAllRaw(ScopeAll, true)

	tests := []struct {
		name string
		opts FilterOpts
		want int
	}{
		{"by id", FilterOpts{ID: ids[0]}, 1},
		{"by type", FilterOpts{Type: models.TypeFact}, 3},
		{"keyword in content", FilterOpts{Keyword: "redis"}, 1},
		{"keyword case-insensitive", FilterOpts{Keyword: "POSTGRES"}, 1},
		{"keyword in entities", FilterOpts{Keyword: "infra"}, 3},
		{"no match", FilterOpts{Keyword: "nonexistent"}, 0},
		{"date range covers today", FilterOpts{DateFrom: "2000-01-01", DateTo: "2999-12-31"}, 4},
		{"date range excludes all", FilterOpts{DateTo: "2000-01-01"}, 0},
		{"before includes its own date", FilterOpts{Before: util.TodayStr()}, 4},
		{"before excludes later dates", FilterOpts{Before: "2000-01-01"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Filter(all, tt.opts)); got != tt.want {
				t.Errorf("Filter(%+v) = %d entries, want %d", tt.opts, got, tt.want)
			}
		})
	}
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	l, ids := seedLedger(t)
	target := map[string]bool{ids[1]: true}

	res, err := l.SoftDeleteIDs(target, "cleanup")
	if err != nil {
		t.Fatalf("SoftDeleteIDs() error = %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("SoftDeleteIDs() count = %d, want 1", res.Count)
	}
	if got := len(l.ReadAllRaw(ScopeDaily, false)); got != 2 {
		t.Errorf("active daily entries after delete = %d, want 2", got)
	}

	// Deleting again is a no-op on already-deleted entries.
	res, err = l.SoftDeleteIDs(target, "cleanup")
	if err != nil {
		t.Fatalf("SoftDeleteIDs() second call error = %v", err)
	}
	if res.Count != 0 {
		t.Errorf("SoftDeleteIDs() repeat count = %d, want 0", res.Count)
	}

	res, err = l.RestoreIDs(target)
	if err != nil {
		t.Fatalf("RestoreIDs() error = %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("RestoreIDs() count = %d, want 1", res.Count)
	}
	for _, e := range l.ReadAllRaw(ScopeDaily, true) {
		if e.ID() == ids[1] {
			if _, ok := e["deleted_at"]; ok {
				t.Error("restored entry still carries deleted_at")
			}
			if _, ok := e["deleted_by"]; ok {
				t.Error("restored entry still carries deleted_by")
			}
		}
	}
}

func TestPurgeIsPermanent(t *testing.T) {
	l, ids := seedLedger(t)
	res, err := l.PurgeIDs(map[string]bool{ids[0]: true, ids[2]: true})
	if err != nil {
		t.Fatalf("PurgeIDs() error = %v", err)
	}
	if res.Count != 2 {
		t.Fatalf("PurgeIDs() count = %d, want 2", res.Count)
	}
	remaining := l.ReadAllRaw(ScopeDaily, true)
	if len(remaining) != 1 {
		t.Fatalf("entries after purge = %d, want 1", len(remaining))
	}
	if remaining[0].ID() != ids[1] {
		t.Errorf("surviving entry = %q, want %q", remaining[0].ID(), ids[1])
	}
}

func TestUpdateEntryPreservesUnknownFields(t *testing.T) {
	l, ids := seedLedger(t)
	all := l.ReadAllRaw(ScopeDaily, true)
	src := all[0].SourceFile()

	// Inject a field this build does not model, then rewrite through an edit.
	path := l.DailyPath(all[0].Timestamp()[:10])
	raw := readRawLines(path)
	raw[0]["custom_annotation"] = "hand-added"
	if err := rewriteRaw(path, raw); err != nil {
		t.Fatalf("rewriteRaw() error = %v", err)
	}

	ok, err := l.UpdateEntry(src, ids[0], map[string]any{"content": "edited content", "confidence": 0.5})
	if err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}
	if !ok {
		t.Fatal("UpdateEntry() found no entry")
	}

	for _, e := range readRawLines(path) {
		if e.ID() != ids[0] {
			continue
		}
		if e.str("content") != "edited content" {
			t.Errorf("content = %q after edit", e.str("content"))
		}
		if e.str("custom_annotation") != "hand-added" {
			t.Error("unknown field dropped by rewrite")
		}
	}
}

func TestUpdateEntryMissingID(t *testing.T) {
	l, _ := seedLedger(t)
	all := l.ReadAllRaw(ScopeDaily, true)
	ok, err := l.UpdateEntry(all[0].SourceFile(), "no-such-id", map[string]any{"content": "x"})
	if err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}
	if ok {
		t.Error("UpdateEntry() reported success for a missing id")
	}
}

func TestCountByType(t *testing.T) {
	l, ids := seedLedger(t)
	if _, err := l.SoftDeleteIDs(map[string]bool{ids[0]: true}, "test"); err != nil {
		t.Fatal(err)
	}
	counts := l.CountByType()
	facts := counts[models.TypeFact]
	if facts.Total != 3 || facts.Active != 2 || facts.Deleted != 1 {
		t.Errorf("fact counts = %+v, want total 3 active 2 deleted 1", facts)
	}
}
