// Package storage is the vault's Storage Engine: a single embedded
// relational database file holding image records, tag/annotation
// ciphertext projections, vault metadata, and an in-database mirror of
// authentication events.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/ladzaretti/migrate"

	// Package sqlite is a CGo-free port of SQLite/SQLite3.
	_ "modernc.org/sqlite"
)

// timeLayout formats timestamps with fixed-width, zero-padded
// nanoseconds so that lexical ("ORDER BY date_added") and chronological
// order agree for TEXT columns. [time.RFC3339Nano] trims trailing zero
// fractional digits, which breaks that invariant.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// pragma is applied on every fresh connection. Foreign keys are enforced,
// WAL gives readers and writers independent progress, secure_delete
// overwrites freed pages instead of leaving plaintext page remnants, and
// the larger cache and incremental auto-vacuum trade a little memory and
// background work for fewer stalls on a vault that grows over time.
const pragma = `
PRAGMA foreign_keys = ON;
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA secure_delete = ON;
PRAGMA cache_size = -65536;
PRAGMA auto_vacuum = INCREMENTAL;
`

var (
	//go:embed migrations/sqlite
	embedFS embed.FS

	embeddedMigrations = migrate.EmbeddedMigrations{
		FS:   embedFS,
		Path: "migrations/sqlite",
	}
)

// Storage is the handle to a vault's database/vault.db file.
type Storage struct {
	db *sql.DB
}

func errf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Open opens (creating if absent) the SQLite file at path, applies the
// connection pragmas, and brings the schema up to date.
func Open(ctx context.Context, path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errf("sqlite open: %v", err)
	}

	if _, err := db.ExecContext(ctx, pragma); err != nil {
		_ = db.Close()
		return nil, errf("apply pragmas: %v", err)
	}

	m := migrate.New(db, migrate.SQLiteDialect{})
	if _, err := m.Apply(embeddedMigrations); err != nil {
		_ = db.Close()
		return nil, errf("migration: %v", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers that need to manage
// their own transaction, e.g. image intake's insert-after-duplicate-check
// flow.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Images returns an accessor for the images table bound to s's
// connection.
func (s *Storage) Images() *ImageStore {
	return &ImageStore{db: s.db}
}

// ImagesTx returns an accessor for the images table bound to an open
// transaction, for callers that must enforce hash-uniqueness and the
// insert within one atomic unit.
func (s *Storage) ImagesTx(tx *sql.Tx) *ImageStore {
	return &ImageStore{db: tx}
}

// Meta returns an accessor for the vault_meta table.
func (s *Storage) Meta() *MetaStore {
	return &MetaStore{db: s.db}
}

// AuthLogs returns an accessor for the auth_logs table.
func (s *Storage) AuthLogs() *AuthLogStore {
	return &AuthLogStore{db: s.db}
}

// Tags returns an accessor for the tags table.
func (s *Storage) Tags() *TagStore {
	return &TagStore{db: s.db}
}

// Annotations returns an accessor for the annotations table.
func (s *Storage) Annotations() *AnnotationStore {
	return &AnnotationStore{db: s.db}
}
