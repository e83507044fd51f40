package thumbnail

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"media-tagger/internal/filesystem"
)

// extensionTypes covers formats the platform mime table often lacks.
var extensionTypes = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png",
	".gif": "image/gif", ".bmp": "image/bmp", ".webp": "image/webp",
	".tiff": "image/tiff", ".tif": "image/tiff", ".heic": "image/heif",
	".heif": "image/heif", ".avif": "image/avif", ".jxl": "image/jxl",
	".mp4": "video/mp4", ".mkv": "video/x-matroska", ".avi": "video/x-msvideo",
	".mov": "video/quicktime", ".webm": "video/webm", ".m4v": "video/mp4",
	".mpeg": "video/mpeg", ".mpg": "video/mpeg", ".wmv": "video/x-ms-wmv",
	".mp3": "audio/mpeg", ".flac": "audio/flac", ".wav": "audio/wav",
	".ogg": "audio/ogg", ".m4a": "audio/mp4",
	".txt": "text/plain", ".md": "text/markdown", ".csv": "text/csv",
	".pdf": "application/pdf",
}

// sniffHeader identifies a format from its leading bytes. It returns ""
// when nothing matches.
func sniffHeader(header []byte) string {
	switch {
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(header, []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	case bytes.HasPrefix(header, []byte("GIF8")):
		return "image/gif"
	case len(header) >= 12 && bytes.HasPrefix(header, []byte("RIFF")) && string(header[8:12]) == "WEBP":
		return "image/webp"
	case len(header) >= 12 && bytes.HasPrefix(header, []byte("RIFF")) && string(header[8:12]) == "AVI ":
		return "video/x-msvideo"
	case bytes.HasPrefix(header, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(header, []byte{'I', 'I', 0x2A, 0x00}), bytes.HasPrefix(header, []byte{'M', 'M', 0x00, 0x2A}):
		return "image/tiff"
	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		switch string(header[8:12]) {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return "image/heif"
		case "avif", "avis":
			return "image/avif"
		case "M4A ":
			return "audio/mp4"
		case "qt  ":
			return "video/quicktime"
		}
		return "video/mp4"
	case bytes.HasPrefix(header, []byte{0xFF, 0x0A}),
		bytes.HasPrefix(header, []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' '}):
		return "image/jxl"
	case bytes.HasPrefix(header, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "video/x-matroska"
	case bytes.HasPrefix(header, []byte("%PDF")):
		return "application/pdf"
	case bytes.HasPrefix(header, []byte("ID3")), bytes.HasPrefix(header, []byte{0xFF, 0xFB}):
		return "audio/mpeg"
	case bytes.HasPrefix(header, []byte("fLaC")):
		return "audio/flac"
	case bytes.HasPrefix(header, []byte("OggS")):
		return "audio/ogg"
	}
	return ""
}

// mimeFromExtension maps a file name to a MIME type, defaulting to
// application/octet-stream.
func mimeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	return "application/octet-stream"
}

// DetectMimeType sniffs the file's magic bytes and falls back to its
// extension when the header is unrecognised or unreadable.
func DetectMimeType(ctx context.Context, path string, retry filesystem.RetryConfig) string {
	f, err := filesystem.OpenWithRetry(ctx, path, retry)
	if err != nil {
		log.Debug("Could not open %s for sniffing: %v", path, err)
		return mimeFromExtension(path)
	}
	defer f.Close()

	header := make([]byte, 32)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return mimeFromExtension(path)
	}
	if t := sniffHeader(header[:n]); t != "" {
		return t
	}
	return mimeFromExtension(path)
}

// family returns the top-level MIME family used for routing and
// placeholder colours.
func family(mimeType string) string {
	switch {
	case mimeType == "application/pdf":
		return "pdf"
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case strings.HasPrefix(mimeType, "text/"):
		return "text"
	}
	return "other"
}
