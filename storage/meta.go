package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// MetaStore provides access to the vault_meta singleton key-value table:
// schema version, vault id, and feature flags.
type MetaStore struct {
	db DBTX
}

// Get returns the value stored under key.
func (s *MetaStore) Get(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx, "SELECT value FROM vault_meta WHERE key = ?;", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}

	return value, err
}

// Set upserts the value stored under key.
func (s *MetaStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_meta (key, value, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, last_updated = excluded.last_updated;`,
		key, value, time.Now().UTC().Format(timeLayout),
	)

	return err
}
