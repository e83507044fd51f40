package thumbnail

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"

	// Decoders registered with the image package.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"media-tagger/internal/filesystem"
)

const (
	// MaxImageDimension is the largest width or height decoded at full
	// resolution. Larger sources are downscaled before fitting.
	MaxImageDimension = 4096

	// MaxImagePixels caps width*height before fitting (about 80MB of RGBA).
	MaxImagePixels = 20_000_000
)

// constrain returns the dimensions a width x height image is reduced to so
// that neither side exceeds maxDimension and the area stays under maxPixels.
// ok is false when no reduction is needed.
func constrain(width, height, maxDimension, maxPixels int) (w, h int, ok bool) {
	if width <= maxDimension && height <= maxDimension && width*height <= maxPixels {
		return width, height, false
	}

	w, h = width, height
	if w > maxDimension || h > maxDimension {
		if w > h {
			h = h * maxDimension / w
			w = maxDimension
		} else {
			w = w * maxDimension / h
			h = maxDimension
		}
	}
	if w*h > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(w*h))
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	return max(w, 1), max(h, 1), true
}

// loadConstrained decodes an image with EXIF orientation applied, reducing
// oversized sources so a single job cannot exhaust memory.
func loadConstrained(ctx context.Context, path string, retry filesystem.RetryConfig, maxDimension, maxPixels int) (image.Image, error) {
	f, err := filesystem.OpenWithRetry(ctx, path, retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", path, err)
	}

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}

	if w, h, ok := constrain(cfg.Width, cfg.Height, maxDimension, maxPixels); ok {
		log.Info("Constraining large image %s from %dx%d to %dx%d", path, cfg.Width, cfg.Height, w, h)
		img = imaging.Resize(img, w, h, imaging.Box)
	}
	return img, nil
}
