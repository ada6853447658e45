// ABOUTME: Tests for chunk upserts, bookmarks, meta, and embedding packing
// ABOUTME: Runs against an in-memory SQLite index
package index

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/recallhq/recall/internal/memerr"
	"github.com/recallhq/recall/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestUpsertChunkIsIdempotent(t *testing.T) {
	s := testStore(t)
	chunk := &models.Chunk{
		ID:         "2026-01-01-001",
		Content:    "postgres runs on port 5432",
		Type:       models.ChunkFact,
		MemoryType: models.MemoryWorld,
		Confidence: 0.8,
		Timestamp:  "2026-01-01T10:00:00Z",
	}
	if err := s.UpsertChunk(chunk); err != nil {
		t.Fatalf("UpsertChunk() error = %v", err)
	}
	chunk.Content = "postgres moved to port 5433"
	if err := s.UpsertChunk(chunk); err != nil {
		t.Fatalf("UpsertChunk() second error = %v", err)
	}

	n, err := s.CountChunks()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountChunks() = %d after double upsert, want 1", n)
	}
	got, err := s.GetChunk("2026-01-01-001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "postgres moved to port 5433" {
		t.Errorf("GetChunk().Content = %q, want updated content", got.Content)
	}
}

func TestGetChunkMissing(t *testing.T) {
	s := testStore(t)
	got, err := s.GetChunk("absent")
	if err != nil {
		t.Fatalf("GetChunk() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetChunk(absent) = %+v, want nil", got)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	s := testStore(t)
	vec := []float32{0.1, -0.5, 0.9, 0}
	if err := s.UpsertChunk(&models.Chunk{ID: "c1", Content: "x", Embedding: vec}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetChunk("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Embedding) != len(vec) {
		t.Fatalf("embedding length = %d, want %d", len(got.Embedding), len(vec))
	}
	for i := range vec {
		if got.Embedding[i] != vec[i] {
			t.Errorf("embedding[%d] = %v, want %v", i, got.Embedding[i], vec[i])
		}
	}

	embedded, err := s.CountEmbedded()
	if err != nil {
		t.Fatal(err)
	}
	if embedded != 1 {
		t.Errorf("CountEmbedded() = %d, want 1", embedded)
	}
}

func TestChunkWithoutEmbedding(t *testing.T) {
	s := testStore(t)
	if err := s.UpsertChunk(&models.Chunk{ID: "c1", Content: "plain"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetChunk("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Embedding != nil {
		t.Errorf("embedding = %v, want nil", got.Embedding)
	}
}

func TestDeleteChunksByType(t *testing.T) {
	s := testStore(t)
	for i, typ := range []string{models.ChunkCore, models.ChunkCore, models.ChunkFact} {
		if err := s.UpsertChunk(&models.Chunk{ID: string(rune('a' + i)), Content: "x", Type: typ}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.DeleteChunksByType(models.ChunkCore); err != nil {
		t.Fatalf("DeleteChunksByType() error = %v", err)
	}
	n, err := s.CountChunks()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountChunks() = %d after core delete, want 1", n)
	}
}

func TestBookmarkRoundTrip(t *testing.T) {
	s := testStore(t)
	fresh, err := s.GetBookmark("daily/2026-01-01.jsonl")
	if err != nil {
		t.Fatalf("GetBookmark() error = %v", err)
	}
	if fresh.LastLine != 0 || fresh.Mtime != 0 {
		t.Errorf("fresh bookmark = %+v, want zero", fresh)
	}

	b := &models.SyncBookmark{FilePath: "daily/2026-01-01.jsonl", LastLine: 42, LastID: "2026-01-01-042", Mtime: 1700000000, SyncedAt: 1700000001}
	if err := s.PutBookmark(b); err != nil {
		t.Fatalf("PutBookmark() error = %v", err)
	}
	b.LastLine = 50
	if err := s.PutBookmark(b); err != nil {
		t.Fatalf("PutBookmark() update error = %v", err)
	}

	got, err := s.GetBookmark("daily/2026-01-01.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastLine != 50 || got.LastID != "2026-01-01-042" {
		t.Errorf("GetBookmark() = %+v", got)
	}
}

func TestMeta(t *testing.T) {
	s := testStore(t)
	version, err := s.GetMeta("schema_version")
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Errorf("schema_version = %q, want %q", version, SchemaVersion)
	}
	if err := s.SetMeta("embedding_model", "text-embedding-3-small"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetMeta("embedding_model")
	if err != nil {
		t.Fatal(err)
	}
	if got != "text-embedding-3-small" {
		t.Errorf("embedding_model = %q", got)
	}
	missing, err := s.GetMeta("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != "" {
		t.Errorf("GetMeta(nope) = %q, want empty", missing)
	}
}

func TestOpenExistingMissingFile(t *testing.T) {
	_, err := OpenExisting(filepath.Join(t.TempDir(), "index.sqlite"))
	if !errors.Is(err, memerr.ErrIndexMissing) {
		t.Errorf("OpenExisting() error = %v, want ErrIndexMissing", err)
	}
}
