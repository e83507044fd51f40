package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"media-tagger/internal/filesystem"
	"media-tagger/internal/thumbnail"
)

// ErrFileNotFound is returned when a catalog lookup finds nothing.
var ErrFileNotFound = errors.New("file not found in catalog")

// UpsertFile registers path in the catalog, refreshing its size and
// modification time if it is already known. The path is stored absolute.
func (d *Database) UpsertFile(ctx context.Context, path string) (thumbnail.SourceFile, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_file", start, err) }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return thumbnail.SourceFile{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	info, err := filesystem.StatWithRetry(ctx, abs, filesystem.DefaultRetryConfig())
	if err != nil {
		return thumbnail.SourceFile{}, err
	}
	if info.IsDir() {
		err = fmt.Errorf("%s is a directory", abs)
		return thumbnail.SourceFile{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var id int64
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO files (path, name, size, mod_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mod_time = excluded.mod_time,
			updated_at = strftime('%s', 'now')
		RETURNING id
	`, abs, filepath.Base(abs), info.Size(), info.ModTime().Unix()).Scan(&id)
	if err != nil {
		return thumbnail.SourceFile{}, fmt.Errorf("upsert file %s: %w", abs, err)
	}

	return thumbnail.SourceFile{ID: id, Path: abs}, nil
}

// GetFile looks a catalogued file up by ID.
func (d *Database) GetFile(ctx context.Context, id int64) (thumbnail.SourceFile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	file := thumbnail.SourceFile{ID: id}
	err := d.db.QueryRowContext(ctx, "SELECT path FROM files WHERE id = ?", id).Scan(&file.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return thumbnail.SourceFile{}, ErrFileNotFound
	}
	if err != nil {
		return thumbnail.SourceFile{}, err
	}
	return file, nil
}

// FileExists reports whether id is catalogued.
func (d *Database) FileExists(ctx context.Context, id int64) (bool, error) {
	_, err := d.GetFile(ctx, id)
	if errors.Is(err, ErrFileNotFound) {
		return false, nil
	}
	return err == nil, err
}

// DeleteFile removes a file from the catalog together with its thumbnails.
func (d *Database) DeleteFile(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFileNotFound
	}
	return nil
}

// FilesMissingThumbnails returns up to limit catalogued files with an ID
// above afterID that lack at least one of sizes in the thumbnails table,
// in ID order. When thumbnails live in another store every file qualifies.
func (d *Database) FilesMissingThumbnails(ctx context.Context, sizes []thumbnail.Size, afterID int64, limit int) ([]thumbnail.SourceFile, error) {
	if len(sizes) == 0 {
		return nil, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("files_missing_thumbnails", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sizes)), ",")
	query := fmt.Sprintf(`
		SELECT f.id, f.path
		FROM files f
		WHERE f.id > ? AND (
			SELECT COUNT(DISTINCT t.size) FROM thumbnails t
			WHERE t.file_id = f.id AND t.size IN (%s)
		) < ?
		ORDER BY f.id
		LIMIT ?
	`, placeholders)

	args := make([]any, 0, len(sizes)+3)
	args = append(args, afterID)
	for _, s := range sizes {
		args = append(args, string(s))
	}
	args = append(args, len(sizes), limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []thumbnail.SourceFile
	for rows.Next() {
		var f thumbnail.SourceFile
		if err = rows.Scan(&f.ID, &f.Path); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	err = rows.Err()
	return files, err
}
