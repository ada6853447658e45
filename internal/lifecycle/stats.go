// ABOUTME: Data-root statistics: disk usage, entry counts, index metadata
// ABOUTME: Read-only; degrades gracefully when the index has never been built
package lifecycle

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/recallhq/recall/internal/index"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/memerr"
	"github.com/recallhq/recall/internal/registry"
)

// Stats is a point-in-time snapshot of the whole data root.
type Stats struct {
	DataDir        string                      `json:"data_dir"`
	DiskBytes      int64                       `json:"disk_bytes"`
	DailyFileCount int                         `json:"daily_file_count"`
	EntriesByType  map[string]ledger.TypeCount `json:"entries_by_type"`
	TotalEntries   int                         `json:"total_entries"`
	ActiveEntries  int                         `json:"active_entries"`
	DeletedEntries int                         `json:"deleted_entries"`
	Sessions       int                         `json:"sessions"`
	LatestTopic    string                      `json:"latest_topic,omitempty"`
	MemoryDocBytes int64                       `json:"memory_doc_bytes"`
	IndexChunks    int                         `json:"index_chunks"`
	IndexEmbedded  int                         `json:"index_embedded"`
	LastSync       string                      `json:"last_sync,omitempty"`
	EmbeddingModel string                      `json:"embedding_model,omitempty"`
	KnownTypes     []string                    `json:"known_types,omitempty"`
	Backups        int                         `json:"backups"`
}

// Stats gathers usage numbers across the ledgers, the index, and the
// registry. An unbuilt index simply leaves the index fields zero.
func (m *Manager) Stats() (*Stats, error) {
	stats := &Stats{
		DataDir:        m.cfg.DataDir,
		DailyFileCount: len(m.ledger.DailyFiles()),
		EntriesByType:  m.ledger.CountByType(),
		Backups:        len(m.ListBackups()),
	}

	for _, c := range stats.EntriesByType {
		stats.TotalEntries += c.Total
		stats.ActiveEntries += c.Active
		stats.DeletedEntries += c.Deleted
	}

	stats.DiskBytes = dirSize(m.cfg.DataDir)
	if info, err := os.Stat(m.cfg.MemoryDocPath()); err == nil {
		stats.MemoryDocBytes = info.Size()
	}

	summaries := m.ledger.ReadSummaries()
	stats.Sessions = len(summaries)
	if last := m.ledger.LastSummary(); last != nil {
		stats.LatestTopic = last.Topic
	}

	if types, err := registry.New(m.cfg).Known(); err == nil {
		stats.KnownTypes = types
	}

	db, err := index.OpenExisting(m.cfg.IndexPath())
	if err != nil {
		if errors.Is(err, memerr.ErrIndexMissing) {
			return stats, nil
		}
		return stats, err
	}
	defer func() { _ = db.Close() }()
	store := index.NewStore(db)

	if n, err := store.CountChunks(); err == nil {
		stats.IndexChunks = n
	}
	if n, err := store.CountEmbedded(); err == nil {
		stats.IndexEmbedded = n
	}
	stats.LastSync, _ = store.GetMeta("last_sync")
	stats.EmbeddingModel, _ = store.GetMeta("embedding_model")
	return stats, nil
}

// dirSize sums regular-file sizes under root; 0 if the root does not exist.
func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
