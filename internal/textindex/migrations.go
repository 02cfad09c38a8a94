package textindex

import "github.com/mdevan/promptdex/internal/storage"

const (
	// CurrentSchemaVersion tracks the text index schema version
	CurrentSchemaVersion = "1.0.0"
)

// AllMigrations contains all text index migrations in order
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

-- One row per item: the stored field values backing both the FTS index and
-- the regex scan path
CREATE TABLE IF NOT EXISTS items (
    name TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);

-- Field-weighted full-text index over items
CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
    name, title, description, category, tags, body,
    content='items',
    content_rowid='rowid'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items BEGIN
    INSERT INTO items_fts(rowid, name, title, description, category, tags, body)
    VALUES (new.rowid, new.name, new.title, new.description, new.category, new.tags, new.body);
END;

CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
    INSERT INTO items_fts(items_fts, rowid, name, title, description, category, tags, body)
    VALUES ('delete', old.rowid, old.name, old.title, old.description, old.category, old.tags, old.body);
END;

CREATE TRIGGER IF NOT EXISTS items_au AFTER UPDATE ON items BEGIN
    INSERT INTO items_fts(items_fts, rowid, name, title, description, category, tags, body)
    VALUES ('delete', old.rowid, old.name, old.title, old.description, old.category, old.tags, old.body);
    INSERT INTO items_fts(rowid, name, title, description, category, tags, body)
    VALUES (new.rowid, new.name, new.title, new.description, new.category, new.tags, new.body);
END;
`

const migrationV1Down = `
DROP TRIGGER IF EXISTS items_au;
DROP TRIGGER IF EXISTS items_ad;
DROP TRIGGER IF EXISTS items_ai;

DROP TABLE IF EXISTS items_fts;
DROP TABLE IF EXISTS items;
DROP TABLE IF EXISTS schema_version;
`
