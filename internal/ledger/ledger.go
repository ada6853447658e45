// ABOUTME: Append-only JSONL ledger, the source of truth for facts and summaries
// ABOUTME: Day-partitioned daily files plus a size-capped sessions file
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/memerr"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

// Ledger reads and writes the JSONL files under one data root. It carries no
// state of its own; every method re-reads the filesystem, which is the whole
// point of a store shared between short-lived processes.
type Ledger struct {
	cfg *config.Config
}

// New returns a Ledger over the configured data root.
func New(cfg *config.Config) *Ledger {
	return &Ledger{cfg: cfg}
}

// Config exposes the configuration the ledger was built with.
func (l *Ledger) Config() *config.Config {
	return l.cfg
}

// DailyPath returns the ledger file for the given YYYY-MM-DD date.
func (l *Ledger) DailyPath(date string) string {
	return filepath.Join(l.cfg.DailyDir(), date+".jsonl")
}

// DailyFiles returns all daily ledger files in chronological order.
func (l *Ledger) DailyFiles() []string {
	matches, err := filepath.Glob(filepath.Join(l.cfg.DailyDir(), "*.jsonl"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// Append writes one entry to today's daily file. When the caller supplied no
// id, a per-day sequence id (<date>-<NNN>) is assigned under the file's own
// flock so concurrent writers never collide. Returns the entry id.
func (l *Ledger) Append(entry *models.FactEntry) (string, error) {
	if entry.Timestamp == "" {
		entry.Timestamp = util.IsoNow()
	}
	date := util.TodayStr()
	if err := os.MkdirAll(l.cfg.DailyDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating daily dir: %w", err)
	}

	path := l.DailyPath(date)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	// The append itself is a single small write, but id assignment needs a
	// consistent view of the ids already in the file, so hold the file's own
	// flock for the duration.
	if err := flockDeadline(f, l.cfg.LockTimeout); err != nil {
		return "", fmt.Errorf("locking %s: %w", path, err)
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()

	if entry.ID == "" {
		// The sequence comes from the highest suffix still present, not the
		// line count: a purge can remove a mid-file line, and counting would
		// then re-mint an id that is already taken.
		max, err := maxSequence(path, date)
		if err != nil {
			return "", err
		}
		entry.ID = fmt.Sprintf("%s-%03d", date, max+1)
	}

	line, err := entry.MarshalLine()
	if err != nil {
		return "", fmt.Errorf("encoding entry: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("appending to %s: %w", path, err)
	}
	return entry.ID, nil
}

// AppendSummaryLine appends one summary to sessions.jsonl. Callers that need
// at-most-once semantics must hold the global ledger lock (the session
// coordinator does this); plain callers may append directly.
func (l *Ledger) AppendSummaryLine(s *models.SessionSummary) error {
	if s.ID == "" {
		s.ID = "sum-" + util.TimeID()
	}
	if s.Timestamp == "" {
		s.Timestamp = util.IsoNow()
	}
	if err := os.MkdirAll(l.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	line, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	f, err := os.OpenFile(l.cfg.SessionsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening sessions file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending summary: %w", err)
	}
	return nil
}

// ReadEntries reads every parsable entry from a JSONL file. Empty and
// malformed lines are skipped; a corrupt line must never fail the read.
func ReadEntries(path string) []*models.FactEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var entries []*models.FactEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e models.FactEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		e.SourceFile = filepath.Base(path)
		entries = append(entries, &e)
	}
	return entries
}

// ReadDailyFacts merges active fact entries from every daily file, newest
// first. System events, soft-deleted entries, and content-less lines are
// excluded.
func (l *Ledger) ReadDailyFacts() []*models.FactEntry {
	var facts []*models.FactEntry
	for _, path := range l.DailyFiles() {
		for _, e := range ReadEntries(path) {
			if e.Deleted() || e.Content == "" {
				continue
			}
			if e.Type != models.TypeFact && e.Type != "" {
				continue
			}
			facts = append(facts, e)
		}
	}
	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Timestamp > facts[j].Timestamp
	})
	return facts
}

// ReadSummaries returns every parsable session summary in file order.
func (l *Ledger) ReadSummaries() []*models.SessionSummary {
	f, err := os.Open(l.cfg.SessionsPath())
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var summaries []*models.SessionSummary
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var s models.SessionSummary
		if err := json.Unmarshal(line, &s); err != nil {
			continue
		}
		summaries = append(summaries, &s)
	}
	return summaries
}

// LastSummary returns the most recent non-deleted session summary, or nil.
func (l *Ledger) LastSummary() *models.SessionSummary {
	var last *models.SessionSummary
	for _, s := range l.ReadSummaries() {
		if s.DeletedAt == "" {
			last = s
		}
	}
	return last
}

// TruncateSessions keeps only the newest keep summaries, rewriting the file
// atomically. Older summaries live on in the index. Returns how many lines
// were dropped.
func (l *Ledger) TruncateSessions(keep int) (int, error) {
	raw := readRawLines(l.cfg.SessionsPath())
	if len(raw) <= keep {
		return 0, nil
	}
	dropped := len(raw) - keep
	if err := rewriteRaw(l.cfg.SessionsPath(), raw[dropped:]); err != nil {
		return 0, err
	}
	return dropped, nil
}

// flockDeadline takes an exclusive flock on f, polling until timeout. A
// timed-out acquisition surfaces as memerr.ErrLockTimeout.
func flockDeadline(f *os.File, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != syscall.EWOULDBLOCK && err != syscall.EAGAIN {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", memerr.ErrLockTimeout, f.Name())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// maxSequence returns the highest <date>-<NNN> sequence among the ids in the
// daily file; 0 if the file is absent or holds no matching ids.
func maxSequence(path, date string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("scanning ids in %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	prefix := date + "-"
	max := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if !strings.HasPrefix(line.ID, prefix) {
			continue
		}
		if n, err := strconv.Atoi(line.ID[len(prefix):]); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}
