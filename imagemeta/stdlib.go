package imagemeta

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	// Register the GIF and PNG decoders (JPEG comes with image/jpeg
	// above). WebP and BMP, also in the default accepted list, have no
	// decoder registered, so Inspect and Thumbnail fail on them.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

// thumbnailQuality is the JPEG quality spec §4.5 names for thumbnails.
const thumbnailQuality = 85

// StdCollaborator implements [Collaborator] using the standard image
// package for decode/dimensions and golang.org/x/image/draw's
// Catmull-Rom resampler for thumbnailing. It reports an empty EXIF map:
// EXIF tag extraction needs a dedicated parser this package does not
// carry, so callers that need EXIF should supply their own
// [Collaborator]; intake treats a nil/empty EXIF map as "no EXIF data".
type StdCollaborator struct{}

var _ Collaborator = StdCollaborator{}

func (StdCollaborator) Inspect(_ context.Context, data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, err
	}

	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Thumbnail decodes data and resamples it to fit within maxW x maxH,
// preserving aspect ratio, using Catmull-Rom interpolation (the
// resampler golang.org/x/image/draw actually ships; it plays the same
// "smooth downscale" role the spec's Lanczos mention calls for).
func (StdCollaborator) Thumbnail(_ context.Context, data []byte, maxW, maxH int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxW, maxH)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// fitWithin scales (srcW, srcH) down to fit within (maxW, maxH),
// preserving aspect ratio. It never scales up.
func fitWithin(srcW, srcH, maxW, maxH int) (w, h int) {
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}

	wRatio := float64(maxW) / float64(srcW)
	hRatio := float64(maxH) / float64(srcH)

	ratio := wRatio
	if hRatio < ratio {
		ratio = hRatio
	}

	w = max(1, int(float64(srcW)*ratio))
	h = max(1, int(float64(srcH)*ratio))

	return w, h
}
