// ABOUTME: AuditEntry records one lifecycle mutation, write-once
// ABOUTME: Appended to audit/operations.jsonl before an operation counts as done
package models

// AuditEntry is appended for every mutating lifecycle operation.
type AuditEntry struct {
	OpID        string `json:"op_id"`
	Timestamp   string `json:"timestamp"`
	Actor       string `json:"actor"`
	Command     string `json:"command"`
	Scope       string `json:"scope"`
	BeforeCount int    `json:"before_count"`
	AfterCount  int    `json:"after_count"`
	BackupPath  string `json:"backup_path,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}
