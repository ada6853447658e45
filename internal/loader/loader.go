// ABOUTME: Decay-based context loader for session start
// ABOUTME: Three-tier recency policy over daily facts plus MEMORY.md and the last summary
package loader

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

// defaultMemoryDoc seeds a fresh project's MEMORY.md so new setups need no
// manual init step.
const defaultMemoryDoc = `# Core Memory

## User Preferences

## Project Background

## Key Decisions
`

// Loader assembles the context block injected at session start.
type Loader struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

// New returns a Loader over the configured data root.
func New(cfg *config.Config, l *ledger.Ledger) *Loader {
	return &Loader{cfg: cfg, ledger: l}
}

// LoadContext builds the full context text: the memory document, recent
// facts filtered by the decay policy, and the last session's summary.
// Returns empty when nothing is stored yet.
func (ld *Loader) LoadContext() (string, error) {
	if err := ld.ensureMemoryDoc(); err != nil {
		return "", err
	}

	var parts []string

	if data, err := os.ReadFile(ld.cfg.MemoryDocPath()); err == nil {
		content := strings.TrimSpace(string(data))
		if content != "" {
			parts = append(parts, "## Core Memory\n\n"+content)
			log.Printf("[Load] memory document (%d chars)", len(content))
		}
	}

	facts := ld.RecentFacts()
	log.Printf("[Load] %d recent facts after decay", len(facts))
	if len(facts) > 0 {
		lines := make([]string, 0, len(facts))
		for _, f := range facts {
			mtype := f.MemoryType
			if mtype == "" {
				mtype = "?"
			}
			date := f.Timestamp
			if len(date) > 10 {
				date = date[:10]
			}
			lines = append(lines, fmt.Sprintf("- [%s][%s] %s", mtype, date, f.Content))
		}
		parts = append(parts, "## Recent Facts\n\n"+strings.Join(lines, "\n"))
	}

	if last := ld.ledger.LastSummary(); last != nil {
		topic := last.Topic
		if topic == "" {
			topic = "unknown"
		}
		summary := last.Summary
		if summary == "" {
			summary = "none"
		}
		parts = append(parts, fmt.Sprintf("## Last Session\n\n- Topic: %s\n- Summary: %s", topic, summary))
	}

	return strings.Join(parts, "\n\n"), nil
}

// RecentFacts applies the three-tier decay policy to all daily facts:
// everything inside the full window, a per-day cap inside the partial
// window, only high-confidence items inside the long window, nothing
// beyond it. Stage summaries are excluded throughout. Newest first,
// truncated to the overall limit.
func (ld *Loader) RecentFacts() []*models.FactEntry {
	all := ld.ledger.ReadDailyFacts()
	if len(all) == 0 {
		return nil
	}
	return ld.applyDecay(all, util.Now())
}

func (ld *Loader) applyDecay(entries []*models.FactEntry, now time.Time) []*models.FactEntry {
	fullCutoff := now.AddDate(0, 0, -ld.cfg.LoadDaysFull)
	partialCutoff := now.AddDate(0, 0, -ld.cfg.LoadDaysPartial)
	maxCutoff := now.AddDate(0, 0, -ld.cfg.LoadDaysMax)

	var full, important []*models.FactEntry
	partialBuckets := map[string][]*models.FactEntry{}

	for _, e := range entries {
		if e.MemoryType == models.MemoryStageSummary {
			continue
		}
		ts := util.ParseISO(e.Timestamp)
		if ts.IsZero() || ts.Before(maxCutoff) {
			continue
		}
		switch {
		case !ts.Before(fullCutoff):
			full = append(full, e)
		case !ts.Before(partialCutoff):
			day := ts.Format(util.DateFormat)
			partialBuckets[day] = append(partialBuckets[day], e)
		default:
			if e.Confidence >= ld.cfg.ImportantConfidence {
				important = append(important, e)
			}
		}
	}

	result := full
	for _, bucket := range partialBuckets {
		// ReadDailyFacts sorts newest first, so the cap keeps the most
		// recently written entries of that day.
		if len(bucket) > ld.cfg.PartialPerDay {
			bucket = bucket[:ld.cfg.PartialPerDay]
		}
		result = append(result, bucket...)
	}
	result = append(result, important...)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})
	if len(result) > ld.cfg.FactsLimit {
		result = result[:ld.cfg.FactsLimit]
	}
	return result
}

// LogSessionStart appends a session_start marker to today's daily file.
func (ld *Loader) LogSessionStart(workspace, sessionID string) error {
	entry := &models.FactEntry{
		ID:        "log-" + util.TimeID(),
		Type:      models.TypeSessionStart,
		SessionID: sessionID,
		Workspace: workspace,
	}
	_, err := ld.ledger.Append(entry)
	return err
}

// ensureMemoryDoc creates a seeded MEMORY.md on first use.
func (ld *Loader) ensureMemoryDoc() error {
	path := ld.cfg.MemoryDocPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(ld.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultMemoryDoc), 0o644); err != nil {
		return fmt.Errorf("seeding %s: %w", config.MemoryDoc, err)
	}
	log.Printf("[Load] created %s", path)
	return nil
}
