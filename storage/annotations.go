package storage

import (
	"context"
	"time"
)

// Annotation is an encrypted note blob attached to an image.
type Annotation struct {
	ID            int64
	ImageID       string
	EncryptedNote []byte
	CreatedAt     time.Time
}

// AnnotationStore provides access to the annotations table.
type AnnotationStore struct {
	db DBTX
}

// Insert adds a ciphertext annotation row for an image.
func (s *AnnotationStore) Insert(ctx context.Context, imageID string, encryptedNote []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO annotations (image_id, note, created_at) VALUES (?, ?, ?);",
		imageID, encryptedNote, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// ListByImage returns every annotation row for an image.
func (s *AnnotationStore) ListByImage(ctx context.Context, imageID string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, image_id, note, created_at FROM annotations WHERE image_id = ?;",
		imageID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Annotation

	for rows.Next() {
		var (
			a         Annotation
			createdAt string
		)

		if err := rows.Scan(&a.ID, &a.ImageID, &a.EncryptedNote, &createdAt); err != nil {
			return nil, err
		}

		if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, rows.Err()
}
