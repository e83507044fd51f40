package thumbnail

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no thumbnail exists for
	// a (file, size) pair.
	ErrNotFound = errors.New("thumbnail not found")
	// ErrSourceNotFound means the source file no longer exists.
	ErrSourceNotFound = errors.New("source file not found")
	// ErrUnsupportedFormat means the source could not be decoded.
	ErrUnsupportedFormat = errors.New("unsupported source format")
	// ErrInvalidSize means an unknown size class was requested.
	ErrInvalidSize = errors.New("invalid thumbnail size")
)

// Thumbnail is a freshly generated, not yet persisted thumbnail.
type Thumbnail struct {
	Size        Size
	Data        []byte
	MimeType    string
	GeneratedAt time.Time
}

// Record is a persisted thumbnail. There is at most one Record per
// (FileID, Size).
type Record struct {
	ID        int64     `json:"id"`
	FileID    int64     `json:"fileId"`
	Size      Size      `json:"size"`
	Data      []byte    `json:"-"`
	MimeType  string    `json:"mimeType"`
	FileSize  int64     `json:"fileSize"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SourceFile identifies a catalogued file that thumbnails are generated for.
type SourceFile struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// StorageStats summarises persisted thumbnails.
type StorageStats struct {
	Total      int64            `json:"total"`
	BySize     map[Size]int64   `json:"bySize"`
	ByMimeType map[string]int64 `json:"byMimeType"`
	TotalBytes int64            `json:"totalBytes"`
}
