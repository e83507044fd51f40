package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var placeholderColors = map[string]color.NRGBA{
	"text":  {R: 74, G: 144, B: 226, A: 255},
	"pdf":   {R: 231, G: 76, B: 60, A: 255},
	"video": {R: 155, G: 89, B: 182, A: 255},
	"audio": {R: 46, G: 204, B: 113, A: 255},
	"other": {R: 149, G: 165, B: 166, A: 255},
}

// PlaceholderColor returns the fill colour used for a MIME type's
// placeholder icon.
func PlaceholderColor(mimeType string) color.NRGBA {
	if c, ok := placeholderColors[family(mimeType)]; ok {
		return c
	}
	return placeholderColors["other"]
}

// renderPlaceholder draws a square PNG icon for files that have no visual
// content: a solid tile with a lighter inset panel.
func renderPlaceholder(mimeType string, box int) ([]byte, error) {
	fill := PlaceholderColor(mimeType)
	canvas := imaging.New(box, box, fill)

	inset := box / 4
	panel := imaging.New(box-2*inset, box-2*inset, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	canvas = imaging.Overlay(canvas, panel, image.Pt(inset, inset), 0.3)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
