// Package index persists pipeline snapshots and stage history in SQLite, with
// optional FTS5 full-text search over record subjects.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL DEFAULT '',
	step        INTEGER NOT NULL DEFAULT 0,
	search_text TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL DEFAULT '{}',
	seq         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_records_stage ON records(stage);

CREATE TABLE IF NOT EXISTS edges (
	source  TEXT NOT NULL,
	target  TEXT NOT NULL,
	kind    TEXT NOT NULL,
	subtype TEXT NOT NULL DEFAULT '',
	score   REAL,
	UNIQUE(source, target, kind, subtype)
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);

CREATE TABLE IF NOT EXISTS stage_history (
	id          TEXT PRIMARY KEY,
	record_id   TEXT NOT NULL,
	stage       TEXT NOT NULL,
	step        INTEGER NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	recorded_at DATETIME NOT NULL,
	seq         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_record ON stage_history(record_id, seq);

CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	size       INTEGER NOT NULL DEFAULT 0,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with snapshot and history operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
