package vectorstore

import "github.com/mdevan/promptdex/internal/storage"

// CurrentSchemaVersion is the vector store schema version.
const CurrentSchemaVersion = "1.0.0"

// AllMigrations lists every vector store migration in order.
var AllMigrations = []storage.Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- One row per chunk: provenance plus the model that produced its vector,
-- so embeddings from a stale model can be detected and excluded
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id TEXT PRIMARY KEY,
    item_name TEXT NOT NULL,
    content TEXT NOT NULL,
    content_hash BLOB NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    language TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    vector BLOB NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_item_name ON chunks(item_name);
CREATE INDEX IF NOT EXISTS idx_chunks_model ON chunks(model);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_chunks_model;
DROP INDEX IF EXISTS idx_chunks_item_name;

DROP TABLE IF EXISTS chunks;
DROP TABLE IF EXISTS schema_version;
`
