package persistence

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStateStore is a StateStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresStateStore struct {
	db *sql.DB
}

// Ensure PostgresStateStore implements StateStore.
var _ StateStore = (*PostgresStateStore)(nil)

// NewPostgresStateStore initializes the required schema in the given
// database and returns a new PostgresStateStore.
func NewPostgresStateStore(ctx context.Context, db *sql.DB) (*PostgresStateStore, error) {
	s := &PostgresStateStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStateStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS canvas_state (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (s *PostgresStateStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM canvas_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	return value, nil
}

func (s *PostgresStateStore) Save(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canvas_state (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value      = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at
	`,
		key,
		value,
	)
	return err
}

func (s *PostgresStateStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM canvas_state WHERE key = $1`, key)
	return err
}

func (s *PostgresStateStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key
		FROM canvas_state
		WHERE starts_with(key, $1)
		ORDER BY key COLLATE "C"
	`,
		prefix,
	)
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
