package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-tagger/internal/thumbnail"
)

// CreateOrUpdateThumbnail stores thumb for fileID, replacing any existing
// thumbnail of the same size. The original CreatedAt is preserved on update.
func (d *Database) CreateOrUpdateThumbnail(ctx context.Context, fileID int64, thumb *thumbnail.Thumbnail) (*thumbnail.Record, error) {
	if thumb == nil {
		return nil, errors.New("nil thumbnail")
	}
	if !thumb.Size.Valid() {
		return nil, fmt.Errorf("%w: %q", thumbnail.ErrInvalidSize, thumb.Size)
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_thumbnail", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	generated := thumb.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	now := time.Now()

	rec := &thumbnail.Record{
		FileID:   fileID,
		Size:     thumb.Size,
		Data:     thumb.Data,
		MimeType: thumb.MimeType,
		FileSize: int64(len(thumb.Data)),
	}

	var createdMs, updatedMs int64
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO thumbnails (file_id, size, data, mime_type, file_size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, size) DO UPDATE SET
			data = excluded.data,
			mime_type = excluded.mime_type,
			file_size = excluded.file_size,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`, fileID, string(thumb.Size), thumb.Data, thumb.MimeType, rec.FileSize,
		generated.UnixMilli(), now.UnixMilli()).Scan(&rec.ID, &createdMs, &updatedMs)
	if err != nil {
		return nil, fmt.Errorf("store %s thumbnail for file %d: %w", thumb.Size, fileID, err)
	}

	rec.CreatedAt = time.UnixMilli(createdMs)
	rec.UpdatedAt = time.UnixMilli(updatedMs)
	return rec, nil
}

// FindThumbnail returns the stored thumbnail for (fileID, size), or
// thumbnail.ErrNotFound.
func (d *Database) FindThumbnail(ctx context.Context, fileID int64, size thumbnail.Size) (*thumbnail.Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_thumbnail", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec := &thumbnail.Record{FileID: fileID, Size: size}
	var createdMs, updatedMs int64
	err = d.db.QueryRowContext(ctx, `
		SELECT id, data, mime_type, file_size, created_at, updated_at
		FROM thumbnails
		WHERE file_id = ? AND size = ?
	`, fileID, string(size)).Scan(&rec.ID, &rec.Data, &rec.MimeType, &rec.FileSize, &createdMs, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		// a miss is not a query failure
		err = nil
		return nil, thumbnail.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = time.UnixMilli(createdMs)
	rec.UpdatedAt = time.UnixMilli(updatedMs)
	return rec, nil
}

// DeleteThumbnailsForFile removes every thumbnail of fileID and reports how
// many were deleted.
func (d *Database) DeleteThumbnailsForFile(ctx context.Context, fileID int64) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_thumbnails", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE file_id = ?", fileID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOrphanedThumbnails removes thumbnails whose file is no longer in the
// catalog. Only rows written while foreign keys were disabled can be orphans.
func (d *Database) DeleteOrphanedThumbnails(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_orphans", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		DELETE FROM thumbnails
		WHERE file_id NOT IN (SELECT id FROM files)
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StorageStats summarises stored thumbnails by size and MIME type.
func (d *Database) StorageStats(ctx context.Context) (thumbnail.StorageStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("thumbnail_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := thumbnail.StorageStats{
		BySize:     make(map[thumbnail.Size]int64),
		ByMimeType: make(map[string]int64),
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT size, mime_type, COUNT(*), COALESCE(SUM(file_size), 0)
		FROM thumbnails
		GROUP BY size, mime_type
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			size, mimeType string
			count, bytes   int64
		)
		if err = rows.Scan(&size, &mimeType, &count, &bytes); err != nil {
			return stats, err
		}
		stats.Total += count
		stats.TotalBytes += bytes
		stats.BySize[thumbnail.Size(size)] += count
		stats.ByMimeType[mimeType] += count
	}
	err = rows.Err()
	return stats, err
}
