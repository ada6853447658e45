// ABOUTME: Tests for ledger append/read paths and session truncation
// ABOUTME: Uses a temp data root per test via config overrides
package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RECALL_DATA_DIR", dir)
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return New(cfg)
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	l := testLedger(t)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := l.Append(&models.FactEntry{
			Type:       models.TypeFact,
			MemoryType: models.MemoryWorld,
			Content:    "fact number",
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		ids = append(ids, id)
	}
	date := util.TodayStr()
	want := []string{date + "-001", date + "-002", date + "-003"}
	for i, id := range ids {
		if id != want[i] {
			t.Errorf("Append() id[%d] = %q, want %q", i, id, want[i])
		}
	}
}

func TestAppendNeverReusesIDsAfterPurge(t *testing.T) {
	l := testLedger(t)
	date := util.TodayStr()
	for i := 0; i < 3; i++ {
		if _, err := l.Append(&models.FactEntry{Type: models.TypeFact, Content: "fact"}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if _, err := l.PurgeIDs(map[string]bool{date + "-002": true}); err != nil {
		t.Fatalf("PurgeIDs() error = %v", err)
	}

	id, err := l.Append(&models.FactEntry{Type: models.TypeFact, Content: "after purge"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if want := date + "-004"; id != want {
		t.Errorf("Append() id = %q, want %q", id, want)
	}

	entries := l.ReadAllRaw(ScopeDaily, true)
	seen := map[string]int{}
	for _, e := range entries {
		seen[e.ID()]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("id %q appears %d times, want unique ids", id, n)
		}
	}
}

func TestAppendKeepsCallerID(t *testing.T) {
	l := testLedger(t)
	id, err := l.Append(&models.FactEntry{ID: "log-123456000-abcd", Type: models.TypeFact, Content: "x"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if id != "log-123456000-abcd" {
		t.Errorf("Append() id = %q, want caller id preserved", id)
	}
}

func TestReadDailyFactsSkipsSystemAndDeleted(t *testing.T) {
	l := testLedger(t)
	if _, err := l.Append(&models.FactEntry{Type: models.TypeFact, Content: "keep me"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := l.Append(&models.FactEntry{Type: models.TypeSessionStart, SessionID: "s1"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := l.Append(&models.FactEntry{Type: models.TypeFact, Content: "gone", DeletedAt: util.IsoNow()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	facts := l.ReadDailyFacts()
	if len(facts) != 1 {
		t.Fatalf("ReadDailyFacts() returned %d facts, want 1", len(facts))
	}
	if facts[0].Content != "keep me" {
		t.Errorf("ReadDailyFacts()[0].Content = %q", facts[0].Content)
	}
}

func TestReadEntriesSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2026-01-01.jsonl")
	content := `{"id":"a","type":"fact","content":"ok"}
not json at all
{"id":"b","type":"fact","content":"also ok"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	entries := ReadEntries(path)
	if len(entries) != 2 {
		t.Fatalf("ReadEntries() returned %d entries, want 2", len(entries))
	}
	if entries[0].SourceFile != "2026-01-01.jsonl" {
		t.Errorf("SourceFile = %q", entries[0].SourceFile)
	}
}

func TestSummariesAndLastSummary(t *testing.T) {
	l := testLedger(t)
	for _, topic := range []string{"first", "second", "third"} {
		if err := l.AppendSummaryLine(&models.SessionSummary{SessionID: "s-" + topic, Topic: topic, Summary: topic}); err != nil {
			t.Fatalf("AppendSummaryLine() error = %v", err)
		}
	}
	if got := len(l.ReadSummaries()); got != 3 {
		t.Fatalf("ReadSummaries() returned %d, want 3", got)
	}
	last := l.LastSummary()
	if last == nil || last.Topic != "third" {
		t.Errorf("LastSummary() = %+v, want topic third", last)
	}
	if !strings.HasPrefix(last.ID, "sum-") {
		t.Errorf("LastSummary() id = %q, want sum- prefix", last.ID)
	}
}

func TestLastSummarySkipsDeleted(t *testing.T) {
	l := testLedger(t)
	if err := l.AppendSummaryLine(&models.SessionSummary{SessionID: "s1", Topic: "alive", Summary: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := l.AppendSummaryLine(&models.SessionSummary{SessionID: "s2", Topic: "dead", Summary: "x", DeletedAt: util.IsoNow()}); err != nil {
		t.Fatal(err)
	}
	last := l.LastSummary()
	if last == nil || last.Topic != "alive" {
		t.Errorf("LastSummary() = %+v, want the non-deleted summary", last)
	}
}

func TestTruncateSessions(t *testing.T) {
	l := testLedger(t)
	for i := 0; i < 10; i++ {
		if err := l.AppendSummaryLine(&models.SessionSummary{SessionID: "s", Topic: strings.Repeat("t", i+1), Summary: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	dropped, err := l.TruncateSessions(4)
	if err != nil {
		t.Fatalf("TruncateSessions() error = %v", err)
	}
	if dropped != 6 {
		t.Errorf("TruncateSessions() dropped = %d, want 6", dropped)
	}
	left := l.ReadSummaries()
	if len(left) != 4 {
		t.Fatalf("after truncation got %d summaries, want 4", len(left))
	}
	if left[0].Topic != strings.Repeat("t", 7) {
		t.Errorf("oldest kept topic = %q, want the 7th", left[0].Topic)
	}
}

func TestTruncateSessionsNoop(t *testing.T) {
	l := testLedger(t)
	if err := l.AppendSummaryLine(&models.SessionSummary{SessionID: "s", Topic: "a", Summary: "x"}); err != nil {
		t.Fatal(err)
	}
	dropped, err := l.TruncateSessions(500)
	if err != nil {
		t.Fatalf("TruncateSessions() error = %v", err)
	}
	if dropped != 0 {
		t.Errorf("TruncateSessions() dropped = %d, want 0", dropped)
	}
}
