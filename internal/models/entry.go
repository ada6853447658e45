// ABOUTME: FactEntry is one line of the append-only ledger
// ABOUTME: Facts, session events, warnings, and metrics all share this shape
package models

import "encoding/json"

// Entry types written by the core. The set is open: callers may record new
// types at write time and they are tracked in the type registry, not here.
const (
	TypeFact           = "fact"
	TypeSessionStart   = "session_start"
	TypeSessionEnd     = "session_end"
	TypeAudit          = "audit"
	TypeWarning        = "warning"
	TypeSessionMetrics = "session_metrics"
)

// Memory classifications for facts.
const (
	MemoryWorld        = "W" // objective/world facts
	MemoryBiographical = "B" // episodic/project history
	MemoryOpinion      = "O" // user preference
	MemoryStageSummary = "S" // transient stage summary, never promoted or injected
)

// ValidMemoryType reports whether t is one of W/B/O/S.
func ValidMemoryType(t string) bool {
	switch t {
	case MemoryWorld, MemoryBiographical, MemoryOpinion, MemoryStageSummary:
		return true
	}
	return false
}

// EntrySource identifies the session that produced an entry.
type EntrySource struct {
	Session string `json:"session,omitempty"`
}

// FactEntry is one JSON object per ledger line. Created once by a writer;
// only the lifecycle manager may stamp or clear the deletion fields.
type FactEntry struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	MemoryType string       `json:"memory_type,omitempty"`
	Content    string       `json:"content,omitempty"`
	Entities   []string     `json:"entities,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Timestamp  string       `json:"timestamp"`
	Source     *EntrySource `json:"source,omitempty"`
	SessionID  string       `json:"session_id,omitempty"`
	Workspace  string       `json:"workspace,omitempty"`
	DeletedAt  string       `json:"deleted_at,omitempty"`
	DeletedBy  string       `json:"deleted_by,omitempty"`

	// Summary is populated when a sessions-file line is read through this
	// shape; facts never set it.
	Summary string `json:"summary,omitempty"`

	// Session lifecycle extras (session_end / session_metrics lines).
	Reason            string `json:"reason,omitempty"`
	Error             string `json:"error,omitempty"`
	DurationMs        int64  `json:"duration_ms,omitempty"`
	SummarySource     string `json:"summary_source,omitempty"`
	FactCount         int    `json:"fact_count,omitempty"`
	StageSummaryCount int    `json:"stage_summary_count,omitempty"`
	SummarySaved      bool   `json:"summary_saved,omitempty"`

	// SourceFile is set by readers to the ledger file the entry came from.
	// Never serialized back to disk.
	SourceFile string `json:"-"`
}

// Deleted reports whether the entry carries a soft-delete stamp.
func (e *FactEntry) Deleted() bool {
	return e.DeletedAt != ""
}

// SessionOf returns the owning session id from either field layout.
func (e *FactEntry) SessionOf() string {
	if e.Source != nil && e.Source.Session != "" {
		return e.Source.Session
	}
	return e.SessionID
}

// MarshalLine serializes the entry as a single JSON line without a trailing
// newline.
func (e *FactEntry) MarshalLine() ([]byte, error) {
	return json.Marshal(e)
}
