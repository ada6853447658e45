// ABOUTME: Tests for the context command
// ABOUTME: Context block output and the session_start entry

package commands

import (
	"strings"
	"testing"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/models"
)

func countSessionStarts(t *testing.T) int {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	n := 0
	for _, e := range ledger.New(cfg).ReadAllRaw(ledger.ScopeDaily, true) {
		if e.Type() == models.TypeSessionStart {
			n++
		}
	}
	return n
}

func TestContext_BuildsBlockAndLogsStart(t *testing.T) {
	testDataDir(t)
	seedCLIFacts(t, "context seed fact")

	out, err := runCLI(t, "context", "--session", "ctx-1", "--workspace", "/tmp/app")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data := envelopeData(t, out)
	block, _ := data["context"].(string)
	if !strings.Contains(block, "## Core Memory") {
		t.Errorf("context block missing core memory section:\n%s", block)
	}
	if data["session_id"] != "ctx-1" {
		t.Errorf("session_id = %v, want ctx-1", data["session_id"])
	}
	if got := countSessionStarts(t); got != 1 {
		t.Errorf("session_start entries = %d, want 1", got)
	}
}

func TestContext_GeneratesSessionID(t *testing.T) {
	testDataDir(t)

	out, err := runCLI(t, "context")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data := envelopeData(t, out)
	id, _ := data["session_id"].(string)
	if !strings.HasPrefix(id, "cli-") {
		t.Errorf("session_id = %q, want cli- prefix", id)
	}
}

func TestContext_NoLogSkipsStartEntry(t *testing.T) {
	testDataDir(t)

	if _, err := runCLI(t, "context", "--no-log"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := countSessionStarts(t); got != 0 {
		t.Errorf("session_start entries = %d, want 0 with --no-log", got)
	}
}

func TestContext_TextFormatPrintsBlock(t *testing.T) {
	testDataDir(t)

	out, err := runCLI(t, "context", "--format", "text", "--no-log")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Contains(out, `"status"`) {
		t.Error("text output should not be the JSON envelope")
	}
	if !strings.Contains(out, "## Core Memory") {
		t.Errorf("text output missing context block:\n%s", out)
	}
}
