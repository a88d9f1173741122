package storage

import (
	"context"
	"time"
)

// Tag is an indexed projection of a single ciphertext tag blob. Intake
// does not populate this table — tag lists travel inside
// images.encrypted_tags — but it exists for a future indexed-join search
// path. validate_integrity does not inspect it.
type Tag struct {
	ID            int64
	ImageID       string
	EncryptedName []byte
	TagType       string
	CreatedAt     time.Time
}

// TagStore provides access to the tags table.
type TagStore struct {
	db DBTX
}

// Insert adds a ciphertext tag row for an image.
func (s *TagStore) Insert(ctx context.Context, imageID string, encryptedName []byte, tagType string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO tags (image_id, tag_name, tag_type, created_at) VALUES (?, ?, ?, ?);",
		imageID, encryptedName, nullableTagType(tagType), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// ListByImage returns every tag row for an image.
func (s *TagStore) ListByImage(ctx context.Context, imageID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, image_id, tag_name, COALESCE(tag_type, ''), created_at FROM tags WHERE image_id = ?;",
		imageID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Tag

	for rows.Next() {
		var (
			t         Tag
			createdAt string
		)

		if err := rows.Scan(&t.ID, &t.ImageID, &t.EncryptedName, &t.TagType, &createdAt); err != nil {
			return nil, err
		}

		if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

func nullableTagType(s string) any {
	if s == "" {
		return nil
	}

	return s
}
