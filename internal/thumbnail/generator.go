package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"time"

	"github.com/disintegration/imaging"

	"media-tagger/internal/filesystem"
	"media-tagger/internal/logging"
)

var log = logging.For("thumbnail")

const jpegQuality = 85

// ImageGenerator produces thumbnails from files on disk. Images are resized
// with libvips when it is enabled, otherwise with imaging. Video frames come
// from ffmpeg. Everything else gets a coloured placeholder.
type ImageGenerator struct {
	useVips      bool
	ffmpegPath   string
	retry        filesystem.RetryConfig
	maxDimension int
	maxPixels    int
}

// GeneratorOption configures an ImageGenerator.
type GeneratorOption func(*ImageGenerator)

// WithVips enables the libvips fast path. It only takes effect once InitVips
// has been called.
func WithVips(enabled bool) GeneratorOption {
	return func(g *ImageGenerator) { g.useVips = enabled }
}

// WithFFmpeg sets the ffmpeg binary. An empty path disables frame extraction.
func WithFFmpeg(path string) GeneratorOption {
	return func(g *ImageGenerator) { g.ffmpegPath = path }
}

// WithRetryConfig overrides the NFS retry policy for source access.
func WithRetryConfig(cfg filesystem.RetryConfig) GeneratorOption {
	return func(g *ImageGenerator) { g.retry = cfg }
}

// WithLimits overrides the decode limits for oversized images.
func WithLimits(maxDimension, maxPixels int) GeneratorOption {
	return func(g *ImageGenerator) {
		g.maxDimension = maxDimension
		g.maxPixels = maxPixels
	}
}

// NewImageGenerator creates a generator. ffmpeg is looked up on PATH unless
// WithFFmpeg is given.
func NewImageGenerator(opts ...GeneratorOption) *ImageGenerator {
	g := &ImageGenerator{
		retry:        filesystem.DefaultRetryConfig(),
		maxDimension: MaxImageDimension,
		maxPixels:    MaxImagePixels,
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		g.ffmpegPath = p
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders path at the given size class.
func (g *ImageGenerator) Generate(ctx context.Context, path string, size Size) (*Thumbnail, error) {
	box := size.Dimensions()
	if box == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSize, size)
	}

	info, err := filesystem.StatWithRetry(ctx, path, g.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, path)
	}

	mimeType := DetectMimeType(ctx, path, g.retry)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	var outType string
	switch family(mimeType) {
	case "image":
		data, outType, err = g.renderImage(ctx, path, box)
	case "video":
		data, outType, err = g.renderVideo(ctx, path, mimeType, box)
	default:
		data, err = renderPlaceholder(mimeType, box)
		outType = "image/png"
	}
	if err != nil {
		return nil, err
	}

	log.Debug("Generated %s thumbnail for %s (%s, %d bytes)", size, path, mimeType, len(data))
	return &Thumbnail{
		Size:        size,
		Data:        data,
		MimeType:    outType,
		GeneratedAt: time.Now(),
	}, nil
}

func (g *ImageGenerator) renderImage(ctx context.Context, path string, box int) ([]byte, string, error) {
	if g.useVips {
		data, mimeType, err := renderWithVips(path, box)
		if err == nil {
			return data, mimeType, nil
		}
		if !errors.Is(err, errVipsUnavailable) {
			log.Debug("vips failed for %s, falling back to imaging: %v", path, err)
		}
	}

	img, err := loadConstrained(ctx, path, g.retry, g.maxDimension, g.maxPixels)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedFormat) {
			return nil, "", err
		}
		frame, ffErr := extractFrame(ctx, g.ffmpegPath, path)
		if ffErr != nil {
			return nil, "", fmt.Errorf("%w (ffmpeg fallback: %v)", err, ffErr)
		}
		img = frame
	}
	return encodeFitted(img, box)
}

func (g *ImageGenerator) renderVideo(ctx context.Context, path, mimeType string, box int) ([]byte, string, error) {
	frame, err := extractFrame(ctx, g.ffmpegPath, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		log.Debug("No frame for %s, using placeholder: %v", path, err)
		data, err := renderPlaceholder(mimeType, box)
		return data, "image/png", err
	}
	return encodeFitted(frame, box)
}

// encodeFitted fits img inside a box x box square preserving aspect ratio.
// Opaque results are encoded as JPEG, anything with transparency as PNG.
func encodeFitted(img image.Image, box int) ([]byte, string, error) {
	fitted := imaging.Fit(img, box, box, imaging.Lanczos)

	var buf bytes.Buffer
	if fitted.Opaque() {
		if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
