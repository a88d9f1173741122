package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Image is a single images row. EncryptedTags and EncryptedMetadata are
// opaque ciphertext sealed under the tag key and file key respectively;
// this package never inspects their contents. ID is an opaque 128-bit
// value rendered as a UUID string (spec §3), assigned by the caller
// before insert rather than by the database, so it is stable across the
// record's entire lifetime, including the on-disk blob filename.
type Image struct {
	ID                string
	Name              string
	EncryptedPath     string
	OriginalSize      int64
	EncryptedSize     int64
	MimeType          string
	FileHash          string
	DateAdded         time.Time
	DateModified      time.Time
	EncryptedTags     []byte
	EncryptedMetadata []byte
	ThumbnailPath     sql.NullString
	IsEncrypted       bool
}

// ImageStore provides access to the images table.
type ImageStore struct {
	db DBTX
}

const insertImage = `
INSERT INTO images (
	id, name, encrypted_path, original_size, encrypted_size, mime_type,
	file_hash, date_added, date_modified, encrypted_tags,
	encrypted_metadata, thumbnail_path, is_encrypted
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

// InsertImage adds a new row under img.ID, which the caller must have
// already assigned (see [github.com/google/uuid]). It fails with
// [ErrDuplicateHash] if file_hash is already present. Callers that need
// the duplicate check and the insert to be atomic with respect to
// concurrent intake must run this through a store bound to a single
// transaction (see [Storage.ImagesTx]).
func (s *ImageStore) InsertImage(ctx context.Context, img Image) (string, error) {
	_, err := s.db.ExecContext(ctx, insertImage,
		img.ID, img.Name, img.EncryptedPath, img.OriginalSize, img.EncryptedSize, img.MimeType,
		img.FileHash, img.DateAdded.UTC().Format(timeLayout), img.DateModified.UTC().Format(timeLayout),
		img.EncryptedTags, img.EncryptedMetadata, img.ThumbnailPath, img.IsEncrypted,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return "", ErrDuplicateHash
		}

		return "", err
	}

	return img.ID, nil
}

const selectImageColumns = `
	id, name, encrypted_path, original_size, encrypted_size, mime_type,
	file_hash, date_added, date_modified, encrypted_tags,
	encrypted_metadata, thumbnail_path, is_encrypted
`

func scanImage(row interface{ Scan(...any) error }) (Image, error) {
	var (
		img                     Image
		dateAdded, dateModified string
		isEncrypted             int
	)

	if err := row.Scan(
		&img.ID, &img.Name, &img.EncryptedPath, &img.OriginalSize, &img.EncryptedSize, &img.MimeType,
		&img.FileHash, &dateAdded, &dateModified, &img.EncryptedTags,
		&img.EncryptedMetadata, &img.ThumbnailPath, &isEncrypted,
	); err != nil {
		return Image{}, err
	}

	img.IsEncrypted = isEncrypted != 0

	var err error

	if img.DateAdded, err = time.Parse(timeLayout, dateAdded); err != nil {
		return Image{}, err
	}

	if img.DateModified, err = time.Parse(timeLayout, dateModified); err != nil {
		return Image{}, err
	}

	return img, nil
}

// GetImage looks up an image by id.
func (s *ImageStore) GetImage(ctx context.Context, id string) (Image, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectImageColumns+" FROM images WHERE id = ?;", id)

	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, ErrNotFound
	}

	return img, err
}

// GetImageByHash looks up an image by its content hash.
func (s *ImageStore) GetImageByHash(ctx context.Context, hash string) (Image, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectImageColumns+" FROM images WHERE file_hash = ?;", hash)

	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, ErrNotFound
	}

	return img, err
}

// ListImages returns images ordered by date_added descending.
func (s *ImageStore) ListImages(ctx context.Context, limit, offset int) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectImageColumns+" FROM images ORDER BY date_added DESC LIMIT ? OFFSET ?;",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Image

	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, img)
	}

	return out, rows.Err()
}

// ImageUpdate whitelists the fields [ImageStore.UpdateImage] may change;
// a nil pointer leaves the corresponding column untouched.
type ImageUpdate struct {
	Name              *string
	EncryptedTags     []byte
	EncryptedMetadata []byte
	ThumbnailPath     *string
}

// UpdateImage applies a partial update and bumps date_modified to now.
func (s *ImageStore) UpdateImage(ctx context.Context, id string, u ImageUpdate) error {
	img, err := s.GetImage(ctx, id)
	if err != nil {
		return err
	}

	name := img.Name
	if u.Name != nil {
		name = *u.Name
	}

	tags := img.EncryptedTags
	if u.EncryptedTags != nil {
		tags = u.EncryptedTags
	}

	meta := img.EncryptedMetadata
	if u.EncryptedMetadata != nil {
		meta = u.EncryptedMetadata
	}

	thumb := img.ThumbnailPath
	if u.ThumbnailPath != nil {
		thumb = sql.NullString{String: *u.ThumbnailPath, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE images
		 SET name = ?, encrypted_tags = ?, encrypted_metadata = ?, thumbnail_path = ?, date_modified = ?
		 WHERE id = ?;`,
		name, tags, meta, thumb, time.Now().UTC().Format(timeLayout), id,
	)

	return err
}

// DeleteImage removes a row; the foreign keys on tags/annotations cascade.
func (s *ImageStore) DeleteImage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?;", id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// SearchFilters limits server-side search to structurally indexable
// predicates; text and tag matching happen after decryption, outside
// this package.
type SearchFilters struct {
	MimePrefix string
	MinSize    int64
	MaxSize    int64 // 0 means unbounded
	After      time.Time
	Before     time.Time // zero means unbounded
}

// SearchImages applies the given filters, ordered by date_added
// descending.
func (s *ImageStore) SearchImages(ctx context.Context, f SearchFilters) ([]Image, error) {
	query := "SELECT " + selectImageColumns + " FROM images WHERE 1=1"

	var args []any

	if f.MimePrefix != "" {
		query += " AND mime_type LIKE ?"
		args = append(args, f.MimePrefix+"%")
	}

	if f.MinSize > 0 {
		query += " AND original_size >= ?"
		args = append(args, f.MinSize)
	}

	if f.MaxSize > 0 {
		query += " AND original_size <= ?"
		args = append(args, f.MaxSize)
	}

	if !f.After.IsZero() {
		query += " AND date_added >= ?"
		args = append(args, f.After.UTC().Format(timeLayout))
	}

	if !f.Before.IsZero() {
		query += " AND date_added <= ?"
		args = append(args, f.Before.UTC().Format(timeLayout))
	}

	query += " ORDER BY date_added DESC;"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Image

	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, img)
	}

	return out, rows.Err()
}

// modernc.org/sqlite reports constraint violations via a plain
// *sqlite.Error whose message includes "UNIQUE constraint failed"; it has
// no exported sentinel, so match on the driver's own wording.
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
