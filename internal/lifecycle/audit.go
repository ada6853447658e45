// ABOUTME: Append-only audit trail for lifecycle mutations
// ABOUTME: One JSONL line per operation, written before the operation counts as done
package lifecycle

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

// actorAgent is stamped on every mutation this process performs.
const actorAgent = "agent"

// AuditLog appends lifecycle operations to audit/operations.jsonl.
type AuditLog struct {
	cfg *config.Config
}

// NewAuditLog returns an AuditLog over the configured data root.
func NewAuditLog(cfg *config.Config) *AuditLog {
	return &AuditLog{cfg: cfg}
}

// Append writes one audit entry, assigning an op id and timestamp when the
// caller left them empty. Returns the op id.
func (a *AuditLog) Append(entry *models.AuditEntry) (string, error) {
	if entry.OpID == "" {
		entry.OpID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = util.IsoNow()
	}
	if entry.Actor == "" {
		entry.Actor = actorAgent
	}
	if err := os.MkdirAll(a.cfg.AuditDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating audit dir: %w", err)
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encoding audit entry: %w", err)
	}
	f, err := os.OpenFile(a.cfg.AuditLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening audit log: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("appending audit entry: %w", err)
	}
	return entry.OpID, nil
}

// Read returns every parsable audit entry in file order.
func (a *AuditLog) Read() []*models.AuditEntry {
	f, err := os.Open(a.cfg.AuditLogPath())
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var entries []*models.AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e models.AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, &e)
	}
	return entries
}
