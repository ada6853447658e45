// ABOUTME: Incremental JSONL-to-SQLite sync engine
// ABOUTME: Bookmarks per source file; mtime skip, last_line slice, idempotent upserts
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/embedding"
	"github.com/recallhq/recall/internal/index"
	"github.com/recallhq/recall/internal/ledger"
	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

// Engine drives sync from the JSONL ledger into the search index. The ledger
// is the source of truth; the index is a rebuildable derivative.
type Engine struct {
	cfg      *config.Config
	ledger   *ledger.Ledger
	provider embedding.Provider

	// Set when an embedding call fails mid-run; the rest of the run indexes
	// full-text only instead of aborting.
	embeddingDown bool
}

// NewEngine returns a sync engine. provider may be nil for FTS-only indexing.
func NewEngine(cfg *config.Config, l *ledger.Ledger, provider embedding.Provider) *Engine {
	return &Engine{cfg: cfg, ledger: l, provider: provider}
}

// Sync brings the index up to date with the ledger and returns how many
// chunks were added or refreshed. With rebuild, the index file is deleted
// first and everything is re-indexed from scratch.
func (e *Engine) Sync(ctx context.Context, rebuild bool) (int, error) {
	if rebuild {
		log.Printf("[Sync] rebuild requested, removing %s", e.cfg.IndexPath())
		if err := index.Remove(e.cfg.IndexPath()); err != nil {
			return 0, err
		}
	}

	db, err := index.Open(e.cfg.IndexPath())
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	store := index.NewStore(db)

	total := 0

	if n, err := e.syncLineFile(ctx, store, config.SessionsFile, e.cfg.SessionsPath()); err != nil {
		return total, err
	} else {
		total += n
	}

	for _, path := range e.ledger.DailyFiles() {
		rel := filepath.Join(config.DailyDirName, filepath.Base(path))
		n, err := e.syncLineFile(ctx, store, rel, path)
		if err != nil {
			return total, err
		}
		total += n
	}

	if n, err := e.syncMemoryDoc(ctx, store); err != nil {
		return total, err
	} else {
		total += n
	}

	chunkCount, err := store.CountChunks()
	if err != nil {
		return total, err
	}
	if err := store.SetMeta("total_chunks", fmt.Sprintf("%d", chunkCount)); err != nil {
		return total, err
	}
	if err := store.SetMeta("last_sync", util.IsoNow()); err != nil {
		return total, err
	}
	if e.provider != nil && !e.embeddingDown {
		if err := store.SetMeta("embedding_model", e.provider.Model()); err != nil {
			return total, err
		}
	}

	log.Printf("[Sync] done: %d new, %d total chunks", total, chunkCount)
	return total, nil
}

// syncLineFile incrementally indexes one JSONL file. An unchanged mtime
// skips the file entirely; otherwise only lines past the bookmark are read.
func (e *Engine) syncLineFile(ctx context.Context, store *index.Store, relPath, fullPath string) (int, error) {
	mtime := fileMtime(fullPath)
	if mtime == 0 {
		return 0, nil
	}
	bookmark, err := store.GetBookmark(relPath)
	if err != nil {
		return 0, err
	}
	if bookmark.Mtime == mtime {
		return 0, nil
	}

	entries := ledger.ReadEntries(fullPath)
	start := bookmark.LastLine
	if start > len(entries) {
		// File shrank underneath the bookmark (manual edit or truncation);
		// re-read it from the top.
		start = 0
	}
	newEntries := entries[start:]

	count := 0
	lastID := bookmark.LastID
	for _, entry := range newEntries {
		if entry.Type == models.TypeSessionStart {
			continue
		}
		content := entry.Content
		if content == "" {
			content = entry.Summary
		}
		if content == "" {
			continue
		}

		chunkID := entry.ID
		if chunkID == "" {
			chunkID = fmt.Sprintf("%s-%d", relPath, start+count)
		}
		chunk := &models.Chunk{
			ID:         chunkID,
			Content:    content,
			Type:       chunkType(entry.Type),
			MemoryType: entry.MemoryType,
			Entities:   marshalEntities(entry.Entities),
			Confidence: entry.Confidence,
			SourceFile: relPath,
			SourceID:   entry.ID,
			Timestamp:  entry.Timestamp,
			Embedding:  e.embed(ctx, content),
		}
		if err := store.UpsertChunk(chunk); err != nil {
			return count, err
		}
		if entry.ID != "" {
			lastID = entry.ID
		}
		count++
	}

	err = store.PutBookmark(&models.SyncBookmark{
		FilePath: relPath,
		LastLine: len(entries),
		LastID:   lastID,
		Mtime:    mtime,
		SyncedAt: util.Now().Unix(),
	})
	return count, err
}

// syncMemoryDoc re-chunks MEMORY.md under derived core-N ids whenever its
// mtime changes. Old core chunks are dropped first so a shrinking document
// cannot strand stale rows.
func (e *Engine) syncMemoryDoc(ctx context.Context, store *index.Store) (int, error) {
	path := e.cfg.MemoryDocPath()
	mtime := fileMtime(path)
	if mtime == 0 {
		return 0, nil
	}
	bookmark, err := store.GetBookmark(config.MemoryDoc)
	if err != nil {
		return 0, err
	}
	if bookmark.Mtime == mtime {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	text := string(data)
	chunks := ChunkMarkdown(text, e.cfg.ChunkTokens, e.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := store.DeleteChunksByType(models.ChunkCore); err != nil {
		return 0, err
	}
	for i, content := range chunks {
		chunk := &models.Chunk{
			ID:         fmt.Sprintf("core-%d", i),
			Content:    content,
			Type:       models.ChunkCore,
			SourceFile: config.MemoryDoc,
			Embedding:  e.embed(ctx, content),
		}
		if err := store.UpsertChunk(chunk); err != nil {
			return i, err
		}
	}

	err = store.PutBookmark(&models.SyncBookmark{
		FilePath: config.MemoryDoc,
		Mtime:    mtime,
		SyncedAt: util.Now().Unix(),
	})
	return len(chunks), err
}

// embed returns a vector for content, or nil when no provider is configured
// or an earlier call in this run already failed. One failure downgrades the
// whole run to full-text-only rather than aborting the sync.
func (e *Engine) embed(ctx context.Context, content string) []float32 {
	if e.provider == nil || e.embeddingDown {
		return nil
	}
	vec, err := e.provider.Embed(ctx, content)
	if err != nil {
		log.Printf("[Sync] embedding failed, continuing with full-text only: %v", err)
		e.embeddingDown = true
		return nil
	}
	return vec
}

func chunkType(entryType string) string {
	switch entryType {
	case "", models.TypeFact:
		return models.ChunkFact
	case models.TypeSessionEnd:
		return models.ChunkSummary
	default:
		return entryType
	}
}

func marshalEntities(entities []string) string {
	if len(entities) == 0 {
		return "[]"
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func fileMtime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}
