// ABOUTME: SessionSummary is one line of the size-capped sessions ledger
// ABOUTME: Records topic, summary text, and which save layer produced it
package models

// Save layers, in escalation order. Layer1 is the assistant's own summary
// call, layer3 the auto-aggregated fallback, layer4 the stop-hook retry.
const (
	SourceLayer1Rules = "layer1_rules"
	SourceLayer3Auto  = "layer3_auto"
	SourceLayer4Stop  = "layer4_stop"
)

// SessionSummary is appended to sessions.jsonl once per session.
type SessionSummary struct {
	ID            string   `json:"id"`
	SessionID     string   `json:"session_id"`
	Topic         string   `json:"topic"`
	Summary       string   `json:"summary"`
	Decisions     []string `json:"decisions,omitempty"`
	Todos         []string `json:"todos,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Timestamp     string   `json:"timestamp"`
	Source        string   `json:"source"`
	AutoGenerated bool     `json:"auto_generated,omitempty"`
	DeletedAt     string   `json:"deleted_at,omitempty"`
	DeletedBy     string   `json:"deleted_by,omitempty"`
}
