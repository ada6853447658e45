// ABOUTME: Health checks over the ledgers and the derived index
// ABOUTME: Parseability, id uniqueness, index freshness, write-volume anomalies
package lifecycle

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/index"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/memerr"
)

// Check statuses.
const (
	CheckOK      = "ok"
	CheckWarning = "warning"
	CheckError   = "error"
)

// CheckResult is one doctor finding.
type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// DoctorReport aggregates every check. Healthy means no error-level finding;
// warnings still want attention but nothing is broken.
type DoctorReport struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

// Doctor inspects the data root and reports what a maintainer should know:
// unparsable ledger lines, duplicate ids, a missing or stale index, and
// days with anomalous write volume.
func (m *Manager) Doctor() *DoctorReport {
	report := &DoctorReport{Healthy: true}
	add := func(c CheckResult) {
		if c.Status == CheckError {
			report.Healthy = false
		}
		report.Checks = append(report.Checks, c)
	}

	add(m.checkParseable())
	add(m.checkUniqueIDs())
	add(m.checkWriteVolume())
	for _, c := range m.checkIndex() {
		add(c)
	}
	return report
}

// ledgerFiles returns every live ledger file as (basename-relative, full)
// path pairs, using the same relative keys the sync engine bookmarks under.
func (m *Manager) ledgerFiles() map[string]string {
	files := make(map[string]string)
	if _, err := os.Stat(m.cfg.SessionsPath()); err == nil {
		files[config.SessionsFile] = m.cfg.SessionsPath()
	}
	for _, path := range m.ledger.DailyFiles() {
		files[filepath.Join(config.DailyDirName, filepath.Base(path))] = path
	}
	return files
}

func (m *Manager) checkParseable() CheckResult {
	var bad []string
	for rel, path := range m.ledgerFiles() {
		lines, invalid := scanLines(path)
		if invalid > 0 {
			bad = append(bad, fmt.Sprintf("%s: %d of %d lines unparsable", rel, invalid, lines))
		}
	}
	if len(bad) == 0 {
		return CheckResult{Name: "parseability", Status: CheckOK}
	}
	sort.Strings(bad)
	return CheckResult{Name: "parseability", Status: CheckWarning, Detail: strings.Join(bad, "; ")}
}

func (m *Manager) checkUniqueIDs() CheckResult {
	seen := make(map[string]int)
	for _, e := range m.ledger.ReadAllRaw(ledger.ScopeAll, true) {
		if id := e.ID(); id != "" {
			seen[id]++
		}
	}
	var dupes []string
	for id, n := range seen {
		if n > 1 {
			dupes = append(dupes, fmt.Sprintf("%s x%d", id, n))
		}
	}
	if len(dupes) == 0 {
		return CheckResult{Name: "id_uniqueness", Status: CheckOK}
	}
	sort.Strings(dupes)
	// Duplicate ids make id-scoped delete and restore over-match.
	return CheckResult{Name: "id_uniqueness", Status: CheckError, Detail: strings.Join(dupes, ", ")}
}

func (m *Manager) checkWriteVolume() CheckResult {
	var noisy []string
	for _, path := range m.ledger.DailyFiles() {
		lines, _ := scanLines(path)
		if lines > m.cfg.DailyWriteWarning {
			noisy = append(noisy, fmt.Sprintf("%s: %d entries", filepath.Base(path), lines))
		}
	}
	if len(noisy) == 0 {
		return CheckResult{Name: "write_volume", Status: CheckOK}
	}
	sort.Strings(noisy)
	return CheckResult{Name: "write_volume", Status: CheckWarning, Detail: strings.Join(noisy, "; ")}
}

// checkIndex verifies the index exists, opens, and is not behind the ledger.
// A file whose mtime changed without growing was edited in place; an
// incremental sync will not re-read it, only a rebuild will.
func (m *Manager) checkIndex() []CheckResult {
	db, err := index.OpenExisting(m.cfg.IndexPath())
	if err != nil {
		if errors.Is(err, memerr.ErrIndexMissing) {
			return []CheckResult{{Name: "index", Status: CheckWarning, Detail: "index missing, run: recall sync"}}
		}
		return []CheckResult{{Name: "index", Status: CheckError, Detail: err.Error()}}
	}
	defer func() { _ = db.Close() }()
	store := index.NewStore(db)

	checks := []CheckResult{{Name: "index", Status: CheckOK}}

	var behind, edited []string
	for rel, path := range m.ledgerFiles() {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		bookmark, err := store.GetBookmark(rel)
		if err != nil || bookmark.Mtime == info.ModTime().Unix() {
			continue
		}
		lines, _ := scanLines(path)
		if lines > bookmark.LastLine {
			behind = append(behind, rel)
		} else {
			edited = append(edited, rel)
		}
	}
	sort.Strings(behind)
	sort.Strings(edited)

	freshness := CheckResult{Name: "index_freshness", Status: CheckOK}
	switch {
	case len(edited) > 0:
		freshness.Status = CheckWarning
		freshness.Detail = fmt.Sprintf("edited in place, run: recall sync --rebuild (%s)", strings.Join(edited, ", "))
	case len(behind) > 0:
		freshness.Status = CheckWarning
		freshness.Detail = fmt.Sprintf("behind the ledger, run: recall sync (%s)", strings.Join(behind, ", "))
	}
	return append(checks, freshness)
}

// scanLines counts non-empty lines and how many of them are not valid JSON.
func scanLines(path string) (lines, invalid int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			invalid++
		}
	}
	return lines, invalid
}
