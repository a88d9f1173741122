package imagemeta_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ZiyanaliSaiyed/GraphiVault/imagemeta"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	return buf.Bytes()
}

func TestInspectReportsDimensionsAndFormat(t *testing.T) {
	data := encodePNG(t, 640, 480)

	c := imagemeta.StdCollaborator{}

	info, err := c.Inspect(context.Background(), data)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	if info.Width != 640 || info.Height != 480 {
		t.Fatalf("unexpected dimensions: %+v", info)
	}

	if info.Format != "png" {
		t.Fatalf("unexpected format: %q", info.Format)
	}
}

func TestInspectMalformedInputFails(t *testing.T) {
	c := imagemeta.StdCollaborator{}

	if _, err := c.Inspect(context.Background(), []byte("not an image")); err == nil {
		t.Fatalf("expected an error for malformed input")
	}
}

func TestThumbnailBoundedAndAspectPreserved(t *testing.T) {
	data := encodePNG(t, 1024, 512)

	c := imagemeta.StdCollaborator{}

	out, err := c.Thumbnail(context.Background(), data, 256, 256)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}

	if format != "jpeg" {
		t.Fatalf("expected jpeg thumbnail, got %q", format)
	}

	b := decoded.Bounds()
	if b.Dx() > 256 || b.Dy() > 256 {
		t.Fatalf("thumbnail exceeds bounds: %dx%d", b.Dx(), b.Dy())
	}

	// source is 2:1, so the thumbnail should stay roughly 2:1 too.
	gotRatio := float64(b.Dx()) / float64(b.Dy())
	if gotRatio < 1.8 || gotRatio > 2.2 {
		t.Fatalf("aspect ratio not preserved: %dx%d", b.Dx(), b.Dy())
	}
}

func TestThumbnailNeverUpscales(t *testing.T) {
	data := encodePNG(t, 64, 32)

	c := imagemeta.StdCollaborator{}

	out, err := c.Thumbnail(context.Background(), data, 256, 256)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}

	b := decoded.Bounds()
	if b.Dx() != 64 || b.Dy() != 32 {
		t.Fatalf("expected source dimensions preserved for small image, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestThumbnailMalformedInputFails(t *testing.T) {
	c := imagemeta.StdCollaborator{}

	if _, err := c.Thumbnail(context.Background(), []byte("garbage"), 256, 256); err == nil {
		t.Fatalf("expected an error for malformed input")
	}
}
