package pipeline

import (
	"context"

	"media-tagger/internal/thumbnail"
)

// Repository persists generated thumbnails. CreateOrUpdateThumbnail must be
// an upsert keyed on (fileID, size). FindThumbnail returns
// thumbnail.ErrNotFound when nothing is stored.
type Repository interface {
	CreateOrUpdateThumbnail(ctx context.Context, fileID int64, thumb *thumbnail.Thumbnail) (*thumbnail.Record, error)
	FindThumbnail(ctx context.Context, fileID int64, size thumbnail.Size) (*thumbnail.Record, error)
	DeleteThumbnailsForFile(ctx context.Context, fileID int64) (int64, error)
}

// Generator renders a thumbnail for a source file.
type Generator interface {
	Generate(ctx context.Context, path string, size thumbnail.Size) (*thumbnail.Thumbnail, error)
}

// Catalog lists catalogued files that may lack at least one of sizes, in
// ascending ID order starting after afterID. Entries are candidates only;
// the processor confirms each against its Repository.
type Catalog interface {
	FilesMissingThumbnails(ctx context.Context, sizes []thumbnail.Size, afterID int64, limit int) ([]thumbnail.SourceFile, error)
}

// PressureGauge reports whether workers should hold off taking new jobs.
// memory.Monitor satisfies it.
type PressureGauge interface {
	IsPaused() bool
}
