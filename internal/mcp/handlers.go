// ABOUTME: MCP tool handler implementations over the memory core
// ABOUTME: save_fact, save_summary, search_memory, and load_context
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/embedding"
	"github.com/recallhq/recall/internal/index"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/loader"
	"github.com/recallhq/recall/internal/memerr"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/registry"
	"github.com/recallhq/recall/internal/session"
	"github.com/recallhq/recall/internal/util"
)

const defaultConfidence = 0.8

// Handlers implements the MCP tools over the memory core. One Handlers
// serves one stdio connection; sessionID identifies that connection's writes
// unless the client passes its own session id.
type Handlers struct {
	cfg       *config.Config
	ledger    *ledger.Ledger
	coord     *session.Coordinator
	loader    *loader.Loader
	registry  *registry.Registry
	provider  embedding.Provider
	sessionID string
}

// NewHandlers wires the handlers over one data root with a fresh session id.
func NewHandlers(cfg *config.Config, led *ledger.Ledger) *Handlers {
	return &Handlers{
		cfg:       cfg,
		ledger:    led,
		coord:     session.New(cfg),
		loader:    loader.New(cfg, led),
		registry:  registry.New(cfg),
		provider:  embedding.ActiveProvider(cfg),
		sessionID: "mcp-" + uuid.NewString(),
	}
}

// SessionID returns the id stamped on writes without an explicit session.
func (h *Handlers) SessionID() string {
	return h.sessionID
}

// SaveFact handles the save_fact tool.
func (h *Handlers) SaveFact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.cfg.Disabled() {
		return disabledResult(), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content argument is required and must be a string"), nil
	}

	memoryType := request.GetString("type", models.MemoryWorld)
	if !models.ValidMemoryType(memoryType) {
		return mcp.NewToolResultError(fmt.Sprintf("type must be one of W, B, O, S; got %q", memoryType)), nil
	}
	sessionID := request.GetString("session_id", h.sessionID)
	confidence := request.GetFloat("confidence", defaultConfidence)

	entry := &models.FactEntry{
		Type:       models.TypeFact,
		MemoryType: memoryType,
		Content:    content,
		Entities:   stringArray(request, "entities"),
		Confidence: confidence,
		Source:     &models.EntrySource{Session: sessionID},
	}
	id, err := h.ledger.Append(entry)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("saving fact: %v", err)), nil
	}

	if err := h.registry.Record(models.TypeFact); err != nil {
		log.Printf("[MCP] type registry update failed: %v", err)
	}
	if err := h.coord.IncrementFactCount(sessionID, memoryType); err != nil {
		log.Printf("[MCP] session counter update failed: %v", err)
	}

	return jsonResult(map[string]any{
		"id":          id,
		"memory_type": memoryType,
		"session_id":  sessionID,
	})
}

// SaveSummary handles the save_summary tool. The save is atomic per session:
// concurrent callers get exists instead of a duplicate line.
func (h *Handlers) SaveSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.cfg.Disabled() {
		return disabledResult(), nil
	}
	topic, err := request.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError("topic argument is required and must be a string"), nil
	}
	summaryText, err := request.RequireString("summary")
	if err != nil {
		return mcp.NewToolResultError("summary argument is required and must be a string"), nil
	}
	sessionID := request.GetString("session_id", h.sessionID)
	source := request.GetString("source", models.SourceLayer1Rules)

	result := h.coord.SaveSummaryAtomic(sessionID, source, func() error {
		return h.ledger.AppendSummaryLine(&models.SessionSummary{
			SessionID: sessionID,
			Topic:     topic,
			Summary:   summaryText,
			Decisions: stringArray(request, "decisions"),
			Todos:     stringArray(request, "todos"),
			Tags:      stringArray(request, "tags"),
			Source:    source,
		})
	})

	return jsonResult(map[string]any{
		"status":     string(result.Status),
		"reason":     result.Reason,
		"session_id": sessionID,
	})
}

// SearchMemory handles the search_memory tool.
func (h *Handlers) SearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.cfg.Disabled() {
		return disabledResult(), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	limit := request.GetInt("max_results", 5)
	method := request.GetString("method", "hybrid")

	tf := index.TimeFilter{}
	if days := request.GetInt("days", -1); days >= 0 {
		tf.Days = days
		tf.HasDays = true
	}

	db, err := index.OpenExisting(h.cfg.IndexPath())
	if err != nil {
		if errors.Is(err, memerr.ErrIndexMissing) {
			return mcp.NewToolResultError("index missing, run: recall sync"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("opening index: %v", err)), nil
	}
	defer func() { _ = db.Close() }()
	searcher := index.NewSearcher(db, util.TodayStr())

	var results []*models.SearchResult
	switch method {
	case "fts":
		results, err = searcher.SearchFTS(query, limit, tf)
	case "vector":
		vec, embedErr := h.embedQuery(ctx, query)
		if embedErr != nil {
			return mcp.NewToolResultError(embedErr.Error()), nil
		}
		results, err = searcher.SearchVector(vec, limit, tf)
	case "hybrid":
		var vec []float32
		if h.provider != nil {
			if vec, err = h.provider.Embed(ctx, query); err != nil {
				log.Printf("[MCP] query embedding failed, text-only search: %v", err)
				vec = nil
			}
		}
		results, err = searcher.SearchHybrid(query, vec, limit, h.cfg.FTSWeight, h.cfg.VectorWeight, tf)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("method must be hybrid, fts, or vector; got %q", method)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"query":   query,
		"method":  method,
		"count":   len(results),
		"results": results,
	})
}

// LoadContext handles the load_context tool: the decay-filtered context
// block plus a session_start event for this connection.
func (h *Handlers) LoadContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.cfg.Disabled() {
		return disabledResult(), nil
	}
	workspace := request.GetString("workspace", "")

	text, err := h.loader.LoadContext()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading context: %v", err)), nil
	}
	if err := h.loader.LogSessionStart(workspace, h.sessionID); err != nil {
		log.Printf("[MCP] session_start logging failed: %v", err)
	}

	return jsonResult(map[string]any{
		"context":    text,
		"session_id": h.sessionID,
	})
}

// embedQuery embeds a search query, failing loudly when vector search was
// requested without a provider.
func (h *Handlers) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if h.provider == nil {
		return nil, errors.New("vector search needs OPENAI_API_KEY; use method fts instead")
	}
	vec, err := h.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vec, nil
}

func jsonResult(payload map[string]any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func disabledResult() *mcp.CallToolResult {
	result, _ := jsonResult(map[string]any{"status": "disabled"})
	return result
}

// stringArray pulls an optional string-array argument out of the request.
func stringArray(request mcp.CallToolRequest, key string) []string {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
