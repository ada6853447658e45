// ABOUTME: Pre-rewrite snapshots of ledger files under backups/<timestamp>/
// ABOUTME: sessions.jsonl sits at the snapshot root, daily files under daily/
package lifecycle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/memerr"
	"github.com/recallhq/recall/internal/util"
)

const backupStampLayout = "2006-01-02-150405"

// snapshotFiles copies the named ledger files (basenames) into a fresh
// timestamped backup directory and returns its path. Missing files are
// skipped; an empty file list yields no directory and an empty path.
func (m *Manager) snapshotFiles(files []string) (string, error) {
	if len(files) == 0 {
		return "", nil
	}
	dir := filepath.Join(m.cfg.BackupsDir(), util.Now().Format(backupStampLayout))
	for n := 2; ; n++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		dir = filepath.Join(m.cfg.BackupsDir(), fmt.Sprintf("%s-%d", util.Now().Format(backupStampLayout), n))
	}

	copied := 0
	for _, name := range files {
		src, dst := m.backupPaths(dir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", fmt.Errorf("creating backup dir: %w", err)
		}
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("backing up %s: %w", name, err)
		}
		copied++
	}
	if copied == 0 {
		_ = os.Remove(dir)
		return "", nil
	}
	return dir, nil
}

// backupPaths maps a ledger basename to its live path and its path inside
// the given backup directory.
func (m *Manager) backupPaths(backupDir, name string) (live, snap string) {
	if name == config.SessionsFile {
		return m.cfg.SessionsPath(), filepath.Join(backupDir, name)
	}
	return filepath.Join(m.cfg.DailyDir(), name), filepath.Join(backupDir, config.DailyDirName, name)
}

// ListBackups returns the available snapshot names, oldest first.
func (m *Manager) ListBackups() []string {
	entries, err := os.ReadDir(m.cfg.BackupsDir())
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// restoreBackupFiles copies every file in the named snapshot back over the
// live ledger. Returns the basenames restored.
func (m *Manager) restoreBackupFiles(name string) ([]string, error) {
	dir := filepath.Join(m.cfg.BackupsDir(), filepath.Base(name))
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: backup %s", memerr.ErrNotFound, name)
	}

	var restored []string
	sessionsSnap := filepath.Join(dir, config.SessionsFile)
	if _, err := os.Stat(sessionsSnap); err == nil {
		if err := copyFile(sessionsSnap, m.cfg.SessionsPath()); err != nil {
			return restored, fmt.Errorf("restoring sessions ledger: %w", err)
		}
		restored = append(restored, config.SessionsFile)
	}

	dailySnaps, _ := filepath.Glob(filepath.Join(dir, config.DailyDirName, "*.jsonl"))
	if len(dailySnaps) > 0 {
		if err := os.MkdirAll(m.cfg.DailyDir(), 0o755); err != nil {
			return restored, fmt.Errorf("creating daily dir: %w", err)
		}
	}
	for _, snap := range dailySnaps {
		base := filepath.Base(snap)
		if err := copyFile(snap, filepath.Join(m.cfg.DailyDir(), base)); err != nil {
			return restored, fmt.Errorf("restoring %s: %w", base, err)
		}
		restored = append(restored, base)
	}
	return restored, nil
}

// PruneBackups removes snapshot directories older than retainDays, judged by
// the timestamp in their name. Unparsable names are left alone.
func (m *Manager) PruneBackups(retainDays int) (int, error) {
	cutoff := util.Now().AddDate(0, 0, -retainDays)
	pruned := 0
	for _, name := range m.ListBackups() {
		stamp := name
		if len(stamp) > len(backupStampLayout) {
			stamp = stamp[:len(backupStampLayout)]
		}
		ts, err := time.Parse(backupStampLayout, stamp)
		if err != nil || !ts.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.cfg.BackupsDir(), name)); err != nil {
			return pruned, fmt.Errorf("pruning backup %s: %w", name, err)
		}
		pruned++
	}
	return pruned, nil
}

// copyFile copies src to dst, truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
