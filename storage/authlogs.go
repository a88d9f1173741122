package storage

import (
	"context"
	"database/sql"
	"time"
)

// AuthLogEntry mirrors a single audit-log authentication event inside
// the database, so auth history can be joined against image operations
// without reparsing the external log file.
type AuthLogEntry struct {
	ID        int64
	EventType string
	Timestamp time.Time
	Status    string
	Details   sql.NullString
}

// AuthLogStore provides access to the auth_logs table.
type AuthLogStore struct {
	db DBTX
}

// Log appends an authentication event with a UTC timestamp.
func (s *AuthLogStore) Log(ctx context.Context, eventType, status, details string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO auth_logs (event_type, timestamp, status, details) VALUES (?, ?, ?, ?);",
		eventType, time.Now().UTC().Format(timeLayout), status, nullableTagType(details),
	)

	return err
}

// Recent returns the most recent n auth_logs rows, newest first.
func (s *AuthLogStore) Recent(ctx context.Context, n int) ([]AuthLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_type, timestamp, status, details FROM auth_logs ORDER BY timestamp DESC LIMIT ?;",
		n,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AuthLogEntry

	for rows.Next() {
		var (
			e  AuthLogEntry
			ts string
		)

		if err := rows.Scan(&e.ID, &e.EventType, &ts, &e.Status, &e.Details); err != nil {
			return nil, err
		}

		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, err
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
