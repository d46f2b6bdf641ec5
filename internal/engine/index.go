// Package engine materializes directive files into a queryable snapshot.
//
// The rebuild step parses every directive file in the workspace and writes
// the result into a SQLite index under _build/. Readers load the index into
// an in-memory Snapshot; nothing in the engine ever writes back to the
// directive files, which remain the single source of truth.
package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mnemo-sh/mnemo/internal/workspace"
)

// Schema is the snapshot index DDL. The index is a disposable build artifact:
// rebuild drops and recreates it wholesale, so there is no migration story.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	status       TEXT NOT NULL,
	title        TEXT NOT NULL,
	body         TEXT NOT NULL DEFAULT '',
	confidence   TEXT NOT NULL DEFAULT '',
	scope        TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	owner        TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL DEFAULT '',
	review_after TEXT NOT NULL DEFAULT '',
	expires_at   TEXT NOT NULL DEFAULT '',
	source_file  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entity_tags (
	entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	tag       TEXT NOT NULL,
	PRIMARY KEY (entity_id, position)
);

CREATE TABLE IF NOT EXISTS entity_links (
	entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	kind      TEXT NOT NULL,
	position  INTEGER NOT NULL,
	target    TEXT NOT NULL,
	PRIMARY KEY (entity_id, kind, position)
);

CREATE INDEX IF NOT EXISTS idx_entities_type   ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_status ON entities(status);
CREATE INDEX IF NOT EXISTS idx_tags_tag        ON entity_tags(tag);
CREATE INDEX IF NOT EXISTS idx_links_target    ON entity_links(target);
`

// openIndex opens the snapshot index database, configures WAL mode, and
// ensures the schema exists.
func openIndex(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create build dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	// SQLite allows one writer at a time. A single connection avoids
	// SQLITE_BUSY between the rebuild transaction and concurrent readers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// IndexExists reports whether the workspace has a built snapshot index.
func IndexExists(ws *workspace.Workspace) bool {
	info, err := os.Stat(ws.IndexPath())
	return err == nil && !info.IsDir()
}
