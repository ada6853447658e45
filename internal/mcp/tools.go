// ABOUTME: MCP tool definitions and registration for the recall server
// ABOUTME: Exposes the memory core as four assistant-facing tools over stdio
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/ledger"
)

// NewServer builds an MCP server with every tool registered and returns it
// with its handlers.
func NewServer(cfg *config.Config, led *ledger.Ledger, version string) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer("recall", version)
	handlers := NewHandlers(cfg, led)
	RegisterTools(server, handlers)
	return server, handlers
}

// RegisterTools registers all tools with the server.
func RegisterTools(server *mcpserver.MCPServer, handlers *Handlers) {
	server.AddTool(mcp.Tool{
		Name:        "save_fact",
		Description: "Save one fact to persistent memory. Facts are classified as W (world), B (biographical), O (opinion), or S (stage summary).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "The fact to remember, one sentence",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Memory classification: W, B, O, or S (default W)",
				},
				"entities": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Named entities the fact mentions",
				},
				"confidence": map[string]interface{}{
					"type":        "number",
					"description": "Confidence 0-1 (default 0.8)",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Owning session id (defaults to this connection's session)",
				},
			},
			Required: []string{"content"},
		},
	}, handlers.SaveFact)

	server.AddTool(mcp.Tool{
		Name:        "save_summary",
		Description: "Save the session summary. At most one summary is persisted per session; concurrent saves report exists instead of duplicating.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"topic": map[string]interface{}{
					"type":        "string",
					"description": "One-line session topic",
				},
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "What happened this session",
				},
				"decisions": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Decisions made",
				},
				"todos": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Open follow-ups",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Freeform tags",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Owning session id (defaults to this connection's session)",
				},
			},
			Required: []string{"topic", "summary"},
		},
	}, handlers.SaveSummary)

	server.AddTool(mcp.Tool{
		Name:        "search_memory",
		Description: "Search persistent memory with hybrid full-text and semantic ranking.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results (default 5)",
					"default":     5,
				},
				"method": map[string]interface{}{
					"type":        "string",
					"description": "hybrid, fts, or vector (default hybrid)",
				},
				"days": map[string]interface{}{
					"type":        "number",
					"description": "Only results from the last N days (0 = today only)",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchMemory)

	server.AddTool(mcp.Tool{
		Name:        "load_context",
		Description: "Load the memory context block: core memory, decay-filtered recent facts, and the last session summary. Also records session start.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workspace": map[string]interface{}{
					"type":        "string",
					"description": "Workspace path for the session_start event",
				},
			},
		},
	}, handlers.LoadContext)
}
