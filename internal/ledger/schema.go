// Package ledger keeps a SQLite history of card sync outcomes.
package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS syncs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	path       TEXT NOT NULL,
	card_index INTEGER NOT NULL,
	card_key   TEXT NOT NULL,
	note_id    INTEGER NOT NULL DEFAULT 0,
	hash       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	synced_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_syncs_path ON syncs(path, synced_at);
CREATE INDEX IF NOT EXISTS idx_syncs_key ON syncs(path, card_key);

CREATE TABLE IF NOT EXISTS files (
	path      TEXT PRIMARY KEY,
	checksum  TEXT NOT NULL,
	hash_algo TEXT NOT NULL DEFAULT '',
	synced_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
