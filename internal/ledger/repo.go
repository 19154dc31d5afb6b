package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/cardsync/internal/apperr"
)

// Entry is one row of the syncs table.
type Entry struct {
	Path      string
	CardIndex int
	CardKey   string
	NoteID    int64
	Hash      string
	Status    string
	Reason    string
	SyncedAt  time.Time
}

// Record appends entries within a single transaction. A zero SyncedAt is
// replaced by the current time.
func (db *DB) Record(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.Prepare(`
		INSERT INTO syncs (path, card_index, card_key, note_id, hash, status, reason, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("ledger: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		at := e.SyncedAt.UTC()
		if e.SyncedAt.IsZero() {
			at = now
		}
		if _, err := stmt.Exec(e.Path, e.CardIndex, e.CardKey, e.NoteID, e.Hash, e.Status, e.Reason, at); err != nil {
			return fmt.Errorf("ledger: insert: %w", err)
		}
	}
	return tx.Commit()
}

// History returns the most recent entries for path, newest first. A
// non-positive limit returns every entry.
func (db *DB) History(path string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`
		SELECT path, card_index, card_key, note_id, hash, status, reason, synced_at
		FROM syncs
		WHERE path = ?
		ORDER BY synced_at DESC, id DESC
		LIMIT ?
	`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastByKey returns the newest entry for the card with the given heading
// key, or apperr.ErrNotFound.
func (db *DB) LastByKey(path, key string) (Entry, error) {
	row := db.conn.QueryRow(`
		SELECT path, card_index, card_key, note_id, hash, status, reason, synced_at
		FROM syncs
		WHERE path = ? AND card_key = ?
		ORDER BY synced_at DESC, id DESC
		LIMIT 1
	`, path, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, apperr.ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: last by key: %w", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	err := s.Scan(&e.Path, &e.CardIndex, &e.CardKey, &e.NoteID, &e.Hash, &e.Status, &e.Reason, &e.SyncedAt)
	return e, err
}

// FileState is the content checksum of a file after its last clean sync.
type FileState struct {
	Path     string
	Checksum string
	// HashAlgo is the card fingerprint algorithm the sync ran with.
	HashAlgo string
	SyncedAt time.Time
}

// SetFileState inserts or replaces the state of one file.
func (db *DB) SetFileState(f FileState) error {
	at := f.SyncedAt.UTC()
	if f.SyncedAt.IsZero() {
		at = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO files (path, checksum, hash_algo, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum  = excluded.checksum,
			hash_algo = excluded.hash_algo,
			synced_at = excluded.synced_at
	`, f.Path, f.Checksum, f.HashAlgo, at)
	if err != nil {
		return fmt.Errorf("ledger: set file state: %w", err)
	}
	return nil
}

// GetFileState returns the stored state of path, or apperr.ErrNotFound.
func (db *DB) GetFileState(path string) (FileState, error) {
	var f FileState
	err := db.conn.QueryRow(`
		SELECT path, checksum, hash_algo, synced_at FROM files WHERE path = ?
	`, path).Scan(&f.Path, &f.Checksum, &f.HashAlgo, &f.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FileState{}, apperr.ErrNotFound
	}
	if err != nil {
		return FileState{}, fmt.Errorf("ledger: get file state: %w", err)
	}
	return f, nil
}

// ClearFileState forgets the state of path so the next sync runs in full.
func (db *DB) ClearFileState(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("ledger: clear file state: %w", err)
	}
	return nil
}
