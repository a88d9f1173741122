// Package imagemeta is the seam for the external image collaborator:
// anything that can report an image's dimensions, format, and EXIF tags,
// and produce a resampled thumbnail. Decode/EXIF extraction is out of
// scope for the vault itself (spec's external-collaborator boundary);
// this package defines the interface the rest of the vault codes
// against and ships one concrete implementation backed by the standard
// image package plus golang.org/x/image/draw.
package imagemeta

import "context"

// Info is what intake needs out of a decoded image before it ever
// touches the database.
type Info struct {
	Width  int
	Height int
	Format string // "jpeg", "png", "gif", "webp", ...
	EXIF   map[string]string
}

// Collaborator decodes image bytes and produces plaintext JPEG
// thumbnails. Implementations may fail on malformed or unsupported
// input; callers treat thumbnail failures as non-fatal per spec §4.5.
type Collaborator interface {
	// Inspect reports dimensions, format, and any EXIF tags found in
	// data. It does not decode pixel data that Thumbnail doesn't need.
	Inspect(ctx context.Context, data []byte) (Info, error)

	// Thumbnail returns a JPEG-encoded thumbnail of data, resampled to
	// fit within maxW x maxH while preserving aspect ratio.
	Thumbnail(ctx context.Context, data []byte, maxW, maxH int) ([]byte, error)
}
