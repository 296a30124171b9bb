// Package sqlstore persists cache blobs in a SQLite database, so that a
// cache can be restored after a reconnect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS imap_cache (
	account TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store keeps one cache blob per account.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get returns the blob saved for account. It returns nil if there is none.
func (s *Store) Get(ctx context.Context, account string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM imap_cache WHERE account = ?", account).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return data, err
}

// Put saves the blob for account, replacing any previous one.
func (s *Store) Put(ctx context.Context, account string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO imap_cache (account, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, account, data, time.Now().Unix())
	return err
}

// Delete removes the blob saved for account.
func (s *Store) Delete(ctx context.Context, account string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM imap_cache WHERE account = ?", account)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
