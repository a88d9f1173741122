package storage

import "errors"

var (
	// ErrDuplicateHash is returned by InsertImage when file_hash already
	// exists among non-deleted images.
	ErrDuplicateHash = errors.New("storage: duplicate file hash")

	// ErrNotFound is returned when a lookup by id, hash, or key matches
	// no row.
	ErrNotFound = errors.New("storage: not found")
)
