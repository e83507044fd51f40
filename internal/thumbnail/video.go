package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
)

var errFFmpegUnavailable = errors.New("ffmpeg not found")

// extractFrame decodes a single frame through ffmpeg. It seeks one second in
// first to skip black intros and retries from the start for short clips.
// It also serves still formats the Go decoders cannot read.
func extractFrame(ctx context.Context, ffmpegPath, path string) (image.Image, error) {
	if ffmpegPath == "" {
		return nil, errFFmpegUnavailable
	}

	run := func(args ...string) (*bytes.Buffer, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, ffmpegPath, args...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
		}
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
		}
		return &stdout, nil
	}

	out, err := run("-v", "error", "-ss", "00:00:01", "-i", path,
		"-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug("Seeked frame extraction failed for %s, retrying from start: %v", path, err)
		out, err = run("-v", "error", "-i", path,
			"-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-")
		if err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg output: %w", err)
	}
	return img, nil
}
