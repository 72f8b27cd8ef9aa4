package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteStateStore is a StateStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStateStore struct {
	db *sql.DB
}

// Ensure SQLiteStateStore implements StateStore.
var _ StateStore = (*SQLiteStateStore)(nil)

// NewSQLiteStateStore initializes the required schema in the given
// database and returns a new SQLiteStateStore.
func NewSQLiteStateStore(db *sql.DB) (*SQLiteStateStore, error) {
	s := &SQLiteStateStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStateStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS canvas_state (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteStateStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM canvas_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	return value, nil
}

func (s *SQLiteStateStore) Save(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canvas_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().UnixNano(),
	)
	return err
}

func (s *SQLiteStateStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM canvas_state WHERE key = ?`, key)
	return err
}

func (s *SQLiteStateStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	// LIKE would fold ASCII case and treat % and _ as wildcards.
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM canvas_state WHERE substr(key, 1, length(?)) = ? ORDER BY key`,
		prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
