// ABOUTME: Behavioral tests for the MCP tool handlers
// ABOUTME: Runs tools against a temp data root and checks the ledger behind them
package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/indexer"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/models"
)

func testHandlers(t *testing.T) (*Handlers, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RECALL_DATA_DIR", dir)
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	led := ledger.New(cfg)
	return NewHandlers(cfg, led), led
}

func callReq(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return payload
}

func TestSaveFactPersistsEntry(t *testing.T) {
	h, led := testHandlers(t)

	result, err := h.SaveFact(context.Background(), callReq(map[string]any{
		"content":    "prefers table-driven tests",
		"type":       models.MemoryOpinion,
		"entities":   []any{"testing"},
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("SaveFact() error = %v", err)
	}
	payload := resultJSON(t, result)
	if payload["id"] == "" || payload["memory_type"] != models.MemoryOpinion {
		t.Errorf("response = %v", payload)
	}

	facts := led.ReadDailyFacts()
	if len(facts) != 1 {
		t.Fatalf("facts = %d, want 1", len(facts))
	}
	if facts[0].Content != "prefers table-driven tests" || facts[0].SessionOf() != "s1" {
		t.Errorf("fact = %+v", facts[0])
	}

	state := h.coord.ReadState("s1")
	if state.FactCount != 1 {
		t.Errorf("fact_count = %d, want 1", state.FactCount)
	}
}

func TestSaveFactDefaultsToConnectionSession(t *testing.T) {
	h, led := testHandlers(t)
	result, err := h.SaveFact(context.Background(), callReq(map[string]any{
		"content": "a fact with no explicit session",
	}))
	if err != nil {
		t.Fatalf("SaveFact() error = %v", err)
	}
	payload := resultJSON(t, result)
	if payload["session_id"] != h.SessionID() {
		t.Errorf("session_id = %v, want %s", payload["session_id"], h.SessionID())
	}
	if got := led.ReadDailyFacts()[0].SessionOf(); got != h.SessionID() {
		t.Errorf("stored session = %q", got)
	}
}

func TestSaveFactRejectsBadType(t *testing.T) {
	h, led := testHandlers(t)
	result, err := h.SaveFact(context.Background(), callReq(map[string]any{
		"content": "x",
		"type":    "Z",
	}))
	if err != nil {
		t.Fatalf("SaveFact() error = %v", err)
	}
	if !result.IsError {
		t.Error("invalid memory type accepted")
	}
	if len(led.ReadDailyFacts()) != 0 {
		t.Error("entry written despite validation failure")
	}
}

func TestSaveFactRequiresContent(t *testing.T) {
	h, _ := testHandlers(t)
	result, err := h.SaveFact(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatalf("SaveFact() error = %v", err)
	}
	if !result.IsError {
		t.Error("missing content accepted")
	}
}

func TestSaveSummarySecondCallReportsExists(t *testing.T) {
	h, led := testHandlers(t)
	args := map[string]any{
		"topic":      "auth refactor",
		"summary":    "moved sessions to tokens",
		"session_id": "s1",
	}

	first := resultJSON(t, mustCall(t, h.SaveSummary, args))
	if first["status"] != string(models.SaveSaved) {
		t.Fatalf("first save = %v, want saved", first)
	}
	second := resultJSON(t, mustCall(t, h.SaveSummary, args))
	if second["status"] != string(models.SaveExists) {
		t.Errorf("second save = %v, want exists", second)
	}
	if got := len(led.ReadSummaries()); got != 1 {
		t.Errorf("summaries = %d, want 1", got)
	}
}

func mustCall(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), callReq(args))
	if err != nil {
		t.Fatalf("tool call error = %v", err)
	}
	return result
}

func TestSearchMemoryWithoutIndex(t *testing.T) {
	h, _ := testHandlers(t)
	result := mustCall(t, h.SearchMemory, map[string]any{"query": "anything"})
	if !result.IsError {
		t.Fatal("search without an index did not error")
	}
	if !strings.Contains(resultText(t, result), "recall sync") {
		t.Errorf("error text = %q, want a sync hint", resultText(t, result))
	}
}

func TestSearchMemoryFTS(t *testing.T) {
	h, led := testHandlers(t)
	if _, err := led.Append(&models.FactEntry{
		Type:    models.TypeFact,
		Content: "the deploy pipeline uses blue green rollouts",
	}); err != nil {
		t.Fatal(err)
	}
	engine := indexer.NewEngine(h.cfg, led, nil)
	if _, err := engine.Sync(context.Background(), false); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	payload := resultJSON(t, mustCall(t, h.SearchMemory, map[string]any{
		"query":  "deploy pipeline",
		"method": "fts",
	}))
	if payload["count"].(float64) < 1 {
		t.Errorf("count = %v, want >= 1", payload["count"])
	}
}

func TestSearchMemoryRejectsUnknownMethod(t *testing.T) {
	h, _ := testHandlers(t)
	result := mustCall(t, h.SearchMemory, map[string]any{"query": "x", "method": "psychic"})
	if !result.IsError {
		t.Error("unknown method accepted")
	}
}

func TestLoadContextBuildsBlockAndLogsStart(t *testing.T) {
	h, led := testHandlers(t)
	payload := resultJSON(t, mustCall(t, h.LoadContext, map[string]any{"workspace": "/tmp/proj"}))

	text, _ := payload["context"].(string)
	if !strings.Contains(text, "## Core Memory") {
		t.Errorf("context block missing core section: %q", text)
	}

	var sawStart bool
	for _, path := range led.DailyFiles() {
		for _, e := range ledger.ReadEntries(path) {
			if e.Type == models.TypeSessionStart && e.SessionID == h.SessionID() {
				sawStart = true
			}
		}
	}
	if !sawStart {
		t.Error("no session_start entry for this connection")
	}
}

func TestDisabledMarkerMakesToolsNoOps(t *testing.T) {
	h, led := testHandlers(t)
	if err := os.MkdirAll(h.cfg.DataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(h.cfg.DataDir, config.DisableMarker)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	payload := resultJSON(t, mustCall(t, h.SaveFact, map[string]any{"content": "should not persist"}))
	if payload["status"] != "disabled" {
		t.Errorf("response = %v, want disabled", payload)
	}
	if len(led.ReadDailyFacts()) != 0 {
		t.Error("entry written while disabled")
	}
}
