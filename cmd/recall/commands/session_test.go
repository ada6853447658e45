// ABOUTME: Tests for the session command group
// ABOUTME: State inspection, metrics, and the end-of-session pass

package commands

import (
	"testing"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/models"
)

func TestSessionCheck_EmptyState(t *testing.T) {
	testDataDir(t)

	out, err := runCLI(t, "session", "check", "--session", "nope")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data := envelopeData(t, out)
	if data["summary_saved"] != false {
		t.Errorf("summary_saved = %v, want false", data["summary_saved"])
	}
}

func TestSessionCheck_RequiresSession(t *testing.T) {
	testDataDir(t)

	if _, err := runCLI(t, "session", "check"); err == nil {
		t.Error("Expected error without --session")
	}
}

func TestSessionMetrics_DefaultsSourceToNone(t *testing.T) {
	testDataDir(t)

	out, err := runCLI(t, "session", "metrics", "--session", "s-1")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data := envelopeData(t, out)
	if data["summary_source"] != "none" {
		t.Errorf("summary_source = %v, want none", data["summary_source"])
	}
	if data["fact_count"] != float64(0) {
		t.Errorf("fact_count = %v, want 0", data["fact_count"])
	}
}

func TestSessionEnd_WritesEndAndMetrics(t *testing.T) {
	testDataDir(t)

	if _, err := runCLI(t, "save", "fact", "closing fact", "--session", "end-1"); err != nil {
		t.Fatalf("save error = %v", err)
	}

	out, err := runCLI(t, "session", "end", "--session", "end-1", "--reason", "crash", "--duration-ms", "1200")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	envelopeData(t, out)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var sawEnd, sawMetrics bool
	for _, e := range ledger.New(cfg).ReadAllRaw(ledger.ScopeDaily, true) {
		switch e.Type() {
		case models.TypeSessionEnd:
			sawEnd = true
		case models.TypeSessionMetrics:
			sawMetrics = true
		}
	}
	if !sawEnd {
		t.Error("session end should write a session_end entry")
	}
	if !sawMetrics {
		t.Error("session end should write a session_metrics entry")
	}
}

func TestSessionEnd_AutoSummaryWhenNoneSaved(t *testing.T) {
	testDataDir(t)

	if _, err := runCLI(t, "save", "fact", "we picked sqlite for the index", "--session", "end-2"); err != nil {
		t.Fatalf("save error = %v", err)
	}

	out, err := runCLI(t, "session", "end", "--session", "end-2", "--reason", "completed")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data := envelopeData(t, out)
	result := data["summary_result"].(map[string]any)
	if result["status"] != "saved" {
		t.Errorf("summary_result.status = %v, want saved", result["status"])
	}

	cfg, _ := config.Load("")
	summaries := ledger.New(cfg).ReadSummaries()
	if len(summaries) != 1 {
		t.Fatalf("ReadSummaries() = %d, want 1 auto summary", len(summaries))
	}
	if summaries[0].Source != models.SourceLayer3Auto {
		t.Errorf("Source = %q, want %q", summaries[0].Source, models.SourceLayer3Auto)
	}
}

func TestSessionEnd_RejectsEmptyReason(t *testing.T) {
	testDataDir(t)

	if _, err := runCLI(t, "session", "end", "--session", "x", "--reason", ""); err == nil {
		t.Error("Expected error for empty reason")
	}
}
