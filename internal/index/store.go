// ABOUTME: CRUD over the chunks, sync_state, and meta tables
// ABOUTME: Embeddings are packed as little-endian float32 BLOBs
package index

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/recallhq/recall/internal/models"
)

// Store exposes the index's persistence operations.
type Store struct {
	db *DB
}

// NewStore wraps an open index database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// UpsertChunk inserts or replaces a chunk keyed by id. Re-syncing the same
// source line is therefore idempotent.
func (s *Store) UpsertChunk(c *models.Chunk) error {
	_, err := s.db.Exec(`
		INSERT INTO chunks (id, content, type, memory_type, entities, confidence, source_file, source_id, timestamp, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			type = excluded.type,
			memory_type = excluded.memory_type,
			entities = excluded.entities,
			confidence = excluded.confidence,
			source_file = excluded.source_file,
			source_id = excluded.source_id,
			timestamp = excluded.timestamp,
			embedding = excluded.embedding
	`, c.ID, c.Content, c.Type, c.MemoryType, c.Entities, c.Confidence,
		c.SourceFile, c.SourceID, c.Timestamp, packEmbedding(c.Embedding))
	if err != nil {
		return fmt.Errorf("upserting chunk %s: %w", c.ID, err)
	}
	return nil
}

// GetChunk fetches one chunk by id, or nil if absent.
func (s *Store) GetChunk(id string) (*models.Chunk, error) {
	var c models.Chunk
	var typ, memType, entities, srcFile, srcID, ts sql.NullString
	var blob []byte
	err := s.db.QueryRow(`
		SELECT id, content, type, memory_type, entities, confidence, source_file, source_id, timestamp, embedding
		FROM chunks WHERE id = ?
	`, id).Scan(&c.ID, &c.Content, &typ, &memType, &entities,
		&c.Confidence, &srcFile, &srcID, &ts, &blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching chunk %s: %w", id, err)
	}
	c.Type = typ.String
	c.MemoryType = memType.String
	c.Entities = entities.String
	c.SourceFile = srcFile.String
	c.SourceID = srcID.String
	c.Timestamp = ts.String
	c.Embedding = unpackEmbedding(blob)
	return &c, nil
}

// DeleteChunksByType removes every chunk of the given type. Used before
// re-chunking the memory document so shrinking it cannot strand stale
// core-N rows.
func (s *Store) DeleteChunksByType(chunkType string) error {
	_, err := s.db.Exec(`DELETE FROM chunks WHERE type = ?`, chunkType)
	if err != nil {
		return fmt.Errorf("deleting %s chunks: %w", chunkType, err)
	}
	return nil
}

// DeleteChunksBySourceID removes chunks derived from the given ledger entry.
func (s *Store) DeleteChunksBySourceID(sourceID string) error {
	_, err := s.db.Exec(`DELETE FROM chunks WHERE source_id = ?`, sourceID)
	if err != nil {
		return fmt.Errorf("deleting chunks for %s: %w", sourceID, err)
	}
	return nil
}

// CountChunks returns the total chunk count.
func (s *Store) CountChunks() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// CountEmbedded returns how many chunks carry an embedding.
func (s *Store) CountEmbedded() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embedded chunks: %w", err)
	}
	return n, nil
}

// GetBookmark returns the sync bookmark for a source file, or a zero
// bookmark if the file has never been synced.
func (s *Store) GetBookmark(filePath string) (*models.SyncBookmark, error) {
	b := &models.SyncBookmark{FilePath: filePath}
	var lastID sql.NullString
	err := s.db.QueryRow(`
		SELECT last_line, last_id, mtime, synced_at FROM sync_state WHERE file_path = ?
	`, filePath).Scan(&b.LastLine, &lastID, &b.Mtime, &b.SyncedAt)
	if err == sql.ErrNoRows {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching bookmark for %s: %w", filePath, err)
	}
	b.LastID = lastID.String
	return b, nil
}

// PutBookmark stores a sync bookmark.
func (s *Store) PutBookmark(b *models.SyncBookmark) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_state (file_path, last_line, last_id, mtime, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			last_line = excluded.last_line,
			last_id = excluded.last_id,
			mtime = excluded.mtime,
			synced_at = excluded.synced_at
	`, b.FilePath, b.LastLine, b.LastID, b.Mtime, b.SyncedAt)
	if err != nil {
		return fmt.Errorf("storing bookmark for %s: %w", b.FilePath, err)
	}
	return nil
}

// SetMeta stores one metadata key.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("storing meta %s: %w", key, err)
	}
	return nil
}

// GetMeta fetches one metadata key; empty string if absent.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fetching meta %s: %w", key, err)
	}
	return value, nil
}

// packEmbedding serializes a vector as little-endian float32s; nil in, nil out.
func packEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	blob := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// unpackEmbedding deserializes a float32 blob; nil or ragged blobs yield nil.
func unpackEmbedding(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
