// ABOUTME: SessionState and SaveResult for the cross-process coordinator
// ABOUTME: One state file per session; SaveResult reports SAVED/EXISTS/ERROR
package models

// SessionState is persisted as session_state/<session_id>.json, created on
// first touch and only removed by retention cleanup.
type SessionState struct {
	SessionID         string `json:"session_id"`
	SummarySaved      bool   `json:"summary_saved"`
	SummarySource     string `json:"summary_source,omitempty"`
	FactCount         int    `json:"fact_count,omitempty"`
	StageSummaryCount int    `json:"stage_summary_count,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

// SaveStatus distinguishes the three outcomes of an atomic summary save.
type SaveStatus string

const (
	SaveSaved  SaveStatus = "saved"
	SaveExists SaveStatus = "exists"
	SaveError  SaveStatus = "error"
)

// SaveResult carries the outcome and, for errors, a machine-readable reason
// such as "lock_timeout: ..." or "io_error: ...".
type SaveResult struct {
	Status SaveStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// OK reports whether the write actually happened in this call.
func (r SaveResult) OK() bool {
	return r.Status == SaveSaved
}
