// ABOUTME: Chunk is one indexed, search-ready unit in the SQLite store
// ABOUTME: Derived from ledger entries or MEMORY.md sections; always rebuildable
package models

// Chunk types in the index.
const (
	ChunkFact    = "fact"
	ChunkCore    = "core"
	ChunkSummary = "summary"
)

// Chunk is a row of the chunks table. Its ID is derived deterministically
// from its origin (the entry id, or core-N for MEMORY.md sections) so
// re-sync upserts instead of duplicating.
type Chunk struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Type       string    `json:"type,omitempty"`
	MemoryType string    `json:"memory_type,omitempty"`
	Entities   string    `json:"entities,omitempty"` // JSON array, serialized
	Confidence float64   `json:"confidence"`
	SourceFile string    `json:"source_file,omitempty"`
	SourceID   string    `json:"source_id,omitempty"`
	Timestamp  string    `json:"timestamp,omitempty"`
	Embedding  []float32 `json:"-"` // binary-packed in the store, nil if no provider
}

// SearchResult is a chunk with its retrieval score. Score direction is
// normalized: higher is always more relevant, whatever the method.
type SearchResult struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Type       string  `json:"type,omitempty"`
	MemoryType string  `json:"memory_type,omitempty"`
	Entities   string  `json:"entities,omitempty"`
	Confidence float64 `json:"confidence"`
	SourceFile string  `json:"source_file,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Score      float64 `json:"score"`
}

// SyncBookmark tracks incremental sync progress for one source file. A file
// whose current mtime equals the bookmarked mtime is skipped entirely.
type SyncBookmark struct {
	FilePath string `json:"file_path"`
	LastLine int    `json:"last_line"`
	LastID   string `json:"last_id"`
	Mtime    int64  `json:"mtime"`
	SyncedAt int64  `json:"synced_at"`
}
