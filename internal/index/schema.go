// ABOUTME: Schema for the search index: chunks, FTS5 mirror, sync bookmarks, meta
// ABOUTME: Triggers keep the full-text index in lockstep with the chunks table
package index

// SchemaVersion is stored in the meta table on creation.
const SchemaVersion = "1"

// Schema contains all SQL statements for index initialization.
const Schema = `
-- Search-ready units derived from ledger entries and MEMORY.md sections.
-- Always rebuildable; the JSONL ledger is the source of truth.
CREATE TABLE IF NOT EXISTS chunks (
    id          TEXT PRIMARY KEY,
    content     TEXT NOT NULL,
    type        TEXT,
    memory_type TEXT,
    entities    TEXT,
    confidence  REAL DEFAULT 0,
    source_file TEXT,
    source_id   TEXT,
    timestamp   TEXT,
    embedding   BLOB
);

CREATE INDEX IF NOT EXISTS idx_chunks_timestamp ON chunks(timestamp);
CREATE INDEX IF NOT EXISTS idx_chunks_type ON chunks(type);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    content,
    content=chunks,
    content_rowid=rowid
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
    INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
END;

-- Incremental sync progress, one row per tracked source file.
CREATE TABLE IF NOT EXISTS sync_state (
    file_path TEXT PRIMARY KEY,
    last_line INTEGER DEFAULT 0,
    last_id   TEXT,
    mtime     INTEGER DEFAULT 0,
    synced_at INTEGER DEFAULT 0
);

-- Generic key/value metadata: schema version, last sync, embedding model.
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT
);

INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', '1');
`
