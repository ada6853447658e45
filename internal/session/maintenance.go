// ABOUTME: Session-end housekeeping: auto-summary fallback, metrics, retention
// ABOUTME: Runs when a session closes, after the assistant's own summary window
package session

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

const (
	// autoSummaryScanFiles bounds the daily-file scan when aggregating a
	// fallback summary. Sessions do not span months.
	autoSummaryScanFiles = 30

	autoSummaryFactCap = 5
	topicMaxLen        = 100
	summaryMaxLen      = 500
)

// Reasons that mean the user actually finished a session, as opposed to a
// crash or an abort. Only these warrant an unsaved-summary warning.
var deliberateEndReasons = map[string]bool{
	"completed":  true,
	"user_close": true,
}

// Maintenance bundles the housekeeping that runs when a session ends.
type Maintenance struct {
	cfg    *config.Config
	ledger *ledger.Ledger
	coord  *Coordinator
}

// NewMaintenance returns a Maintenance over the given ledger and coordinator.
func NewMaintenance(cfg *config.Config, led *ledger.Ledger, coord *Coordinator) *Maintenance {
	return &Maintenance{cfg: cfg, ledger: led, coord: coord}
}

// EndReport summarizes one session-end pass.
type EndReport struct {
	SummaryResult     models.SaveResult `json:"summary_result"`
	WarningLogged     bool              `json:"warning_logged"`
	SessionsTruncated int               `json:"sessions_truncated"`
	StatesRemoved     int               `json:"states_removed"`
}

// EndSession runs the full close-out pass for one session: cap the sessions
// ledger, save an auto-generated summary if none was saved, warn when a
// deliberate close still has no summary, then record session_end and
// session_metrics entries and drop stale session states. Each step degrades
// independently; a failed step is logged and the pass continues.
func (m *Maintenance) EndSession(sessionID, reason string, durationMs int64, errMsg string) *EndReport {
	report := &EndReport{}

	dropped, err := m.ledger.TruncateSessions(m.cfg.SessionsKeep)
	if err != nil {
		log.Printf("[Session] truncate failed: %v", err)
	} else if dropped > 0 {
		log.Printf("[Session] truncated sessions ledger, dropped %d", dropped)
	}
	report.SessionsTruncated = dropped

	report.SummaryResult = m.AutoSummary(sessionID)
	report.WarningLogged = m.warnIfUnsaved(sessionID, reason)

	if err := m.LogSessionEnd(sessionID, reason, durationMs, errMsg); err != nil {
		log.Printf("[Session] session_end log failed: %v", err)
	}
	if err := m.LogSessionMetrics(sessionID); err != nil {
		log.Printf("[Session] session_metrics log failed: %v", err)
	}

	removed, err := m.CleanStates(m.cfg.StateRetainDays)
	if err != nil {
		log.Printf("[Session] state cleanup failed: %v", err)
	}
	report.StatesRemoved = removed
	return report
}

// AutoSummary aggregates a fallback summary from the session's own ledger
// entries and saves it through the atomic path, so it can never race a
// concurrent save into a duplicate. Stage summaries are preferred material;
// plain facts are the fallback. With nothing to aggregate, nothing is saved.
func (m *Maintenance) AutoSummary(sessionID string) models.SaveResult {
	topic, summary := m.aggregate(sessionID)
	if summary == "" {
		return models.SaveResult{Status: models.SaveError, Reason: "no_session_entries"}
	}

	result := m.coord.SaveSummaryAtomic(sessionID, models.SourceLayer3Auto, func() error {
		return m.ledger.AppendSummaryLine(&models.SessionSummary{
			SessionID:     sessionID,
			Topic:         truncate(topic, topicMaxLen),
			Summary:       truncate(summary, summaryMaxLen),
			Source:        models.SourceLayer3Auto,
			AutoGenerated: true,
		})
	})
	if result.OK() {
		log.Printf("[Session] auto-generated summary for %s", sessionID)
	}
	return result
}

// aggregate scans recent daily files newest-first for this session's entries
// and builds (topic, summary) from them.
func (m *Maintenance) aggregate(sessionID string) (string, string) {
	files := m.ledger.DailyFiles()
	if len(files) > autoSummaryScanFiles {
		files = files[len(files)-autoSummaryScanFiles:]
	}

	var stages, facts []string
	for i := len(files) - 1; i >= 0; i-- {
		for _, e := range ledger.ReadEntries(files[i]) {
			if e.Deleted() || e.Content == "" || e.SessionOf() != sessionID {
				continue
			}
			if e.Type != models.TypeFact && e.Type != "" {
				continue
			}
			if e.MemoryType == models.MemoryStageSummary {
				stages = append(stages, e.Content)
			} else {
				facts = append(facts, e.Content)
			}
		}
	}

	if len(stages) > 0 {
		return stages[0], strings.Join(stages, " → ")
	}
	if len(facts) > 0 {
		if len(facts) > autoSummaryFactCap {
			facts = facts[:autoSummaryFactCap]
		}
		return facts[0], strings.Join(facts, "; ")
	}
	return "", ""
}

// warnIfUnsaved appends a warning entry when a deliberately ended session
// still has no summary of its own in the sessions ledger.
func (m *Maintenance) warnIfUnsaved(sessionID, reason string) bool {
	if !deliberateEndReasons[reason] {
		return false
	}
	if last := m.ledger.LastSummary(); last != nil && last.SessionID == sessionID {
		return false
	}
	_, err := m.ledger.Append(&models.FactEntry{
		Type:      models.TypeWarning,
		Content:   fmt.Sprintf("session %s ended (%s) without a saved summary", sessionID, reason),
		SessionID: sessionID,
	})
	if err != nil {
		log.Printf("[Session] warning log failed: %v", err)
		return false
	}
	return true
}

// LogSessionEnd records the close event itself.
func (m *Maintenance) LogSessionEnd(sessionID, reason string, durationMs int64, errMsg string) error {
	_, err := m.ledger.Append(&models.FactEntry{
		Type:       models.TypeSessionEnd,
		SessionID:  sessionID,
		Reason:     reason,
		DurationMs: durationMs,
		Error:      errMsg,
	})
	return err
}

// LogSessionMetrics snapshots the session's counters into the daily ledger,
// where the doctor and stats commands can see them after the state file is
// eventually cleaned up.
func (m *Maintenance) LogSessionMetrics(sessionID string) error {
	state := m.coord.ReadState(sessionID)
	source := state.SummarySource
	if source == "" {
		source = "none"
	}
	_, err := m.ledger.Append(&models.FactEntry{
		Type:              models.TypeSessionMetrics,
		SessionID:         sessionID,
		SummarySource:     source,
		FactCount:         state.FactCount,
		StageSummaryCount: state.StageSummaryCount,
		SummarySaved:      state.SummarySaved,
	})
	return err
}

// CleanStates removes session state files created more than retainDays ago,
// along with their lock files. Returns how many states were removed.
func (m *Maintenance) CleanStates(retainDays int) (int, error) {
	states, err := m.coord.ListStates()
	if err != nil {
		return 0, err
	}
	cutoff := util.Now().AddDate(0, 0, -retainDays)
	removed := 0
	for _, state := range states {
		created := util.ParseISO(state.CreatedAt)
		if created.IsZero() || !created.Before(cutoff) {
			continue
		}
		if err := os.Remove(m.cfg.SessionStatePath(state.SessionID)); err != nil {
			log.Printf("[Session] removing state %s: %v", state.SessionID, err)
			continue
		}
		_ = os.Remove(m.cfg.SessionLockPath(state.SessionID))
		removed++
	}
	if removed > 0 {
		log.Printf("[Session] removed %d session states older than %s", removed, cutoff.Format(time.RFC3339))
	}
	return removed, nil
}

// truncate caps s at max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
