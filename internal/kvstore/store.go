package kvstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"media-tagger/internal/logging"
	"media-tagger/internal/thumbnail"
)

const (
	thumbPrefix = "thumb/"
	sequenceKey = "meta/next-id"
)

var log = logging.For("kvstore")

// Store is a thumbnail repository backed by a Pebble key/value database.
type Store struct {
	db *pebble.DB
	mu sync.RWMutex
}

// entry is the stored form of a thumbnail.Record.
type entry struct {
	ID        int64     `json:"id"`
	FileID    int64     `json:"fileId"`
	Size      string    `json:"size"`
	Data      []byte    `json:"data"`
	MimeType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e entry) record() *thumbnail.Record {
	return &thumbnail.Record{
		ID:        e.ID,
		FileID:    e.FileID,
		Size:      thumbnail.Size(e.Size),
		Data:      e.Data,
		MimeType:  e.MimeType,
		FileSize:  int64(len(e.Data)),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// Open opens (creating if needed) a store under dataDir/thumbnails.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "thumbnails")

	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}

	log.Info("Opened thumbnail store at %s", dbPath)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ThumbKey returns the key a file's thumbnail of the given size lives under.
// Zero padding keeps all sizes of one file adjacent in key order.
func ThumbKey(fileID int64, size thumbnail.Size) string {
	return fmt.Sprintf("%s%020d/%s", thumbPrefix, fileID, size)
}

func filePrefix(fileID int64) string {
	return fmt.Sprintf("%s%020d/", thumbPrefix, fileID)
}

// CreateOrUpdateThumbnail stores thumb, keeping the ID and CreatedAt of any
// existing entry for the same file and size.
func (s *Store) CreateOrUpdateThumbnail(ctx context.Context, fileID int64, thumb *thumbnail.Thumbnail) (*thumbnail.Record, error) {
	if thumb == nil {
		return nil, errors.New("nil thumbnail")
	}
	if !thumb.Size.Valid() {
		return nil, fmt.Errorf("%w: %q", thumbnail.ErrInvalidSize, thumb.Size)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ThumbKey(fileID, thumb.Size)
	now := time.Now()

	e, err := s.get(key)
	created := false
	switch {
	case errors.Is(err, thumbnail.ErrNotFound):
		id, err := s.nextID()
		if err != nil {
			return nil, err
		}
		generated := thumb.GeneratedAt
		if generated.IsZero() {
			generated = now
		}
		e = entry{ID: id, FileID: fileID, Size: string(thumb.Size), CreatedAt: generated}
		created = true
	case err != nil:
		return nil, err
	}

	e.Data = thumb.Data
	e.MimeType = thumb.MimeType
	e.UpdatedAt = now

	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal thumbnail: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(key), value, nil); err != nil {
		return nil, err
	}
	if created {
		if err := batch.Set([]byte(sequenceKey), encodeID(e.ID), nil); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("store %s thumbnail for file %d: %w", thumb.Size, fileID, err)
	}

	return e.record(), nil
}

// FindThumbnail returns the stored thumbnail or thumbnail.ErrNotFound.
func (s *Store) FindThumbnail(ctx context.Context, fileID int64, size thumbnail.Size) (*thumbnail.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.get(ThumbKey(fileID, size))
	if err != nil {
		return nil, err
	}
	return e.record(), nil
}

// DeleteThumbnailsForFile removes every size stored for fileID.
func (s *Store) DeleteThumbnailsForFile(ctx context.Context, fileID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var keys [][]byte
	err := s.iteratePrefix(filePrefix(fileID), func(key string, _ []byte) error {
		keys = append(keys, []byte(key))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		if err := batch.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// FileChecker reports whether a file is still in the catalog.
type FileChecker interface {
	FileExists(ctx context.Context, fileID int64) (bool, error)
}

// DeleteOrphanedThumbnails removes the thumbnails of every file the catalog
// no longer knows. The catalog is consulted without holding the store lock.
func (s *Store) DeleteOrphanedThumbnails(ctx context.Context, files FileChecker) (int64, error) {
	ids, err := s.fileIDs(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, id := range ids {
		ok, err := files.FileExists(ctx, id)
		if err != nil {
			return removed, fmt.Errorf("check file %d: %w", id, err)
		}
		if ok {
			continue
		}
		n, err := s.DeleteThumbnailsForFile(ctx, id)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if removed > 0 {
		log.Info("Removed %d orphaned thumbnail(s)", removed)
	}
	return removed, nil
}

// fileIDs lists the distinct file IDs that have at least one thumbnail, in
// ascending order.
func (s *Store) fileIDs(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	err := s.iteratePrefix(thumbPrefix, func(key string, _ []byte) error {
		raw, _, ok := strings.Cut(strings.TrimPrefix(key, thumbPrefix), "/")
		if !ok {
			return fmt.Errorf("malformed key %q", key)
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("malformed key %q: %w", key, err)
		}
		if len(ids) == 0 || ids[len(ids)-1] != id {
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

// StorageStats summarises stored thumbnails by size and MIME type.
func (s *Store) StorageStats(ctx context.Context) (thumbnail.StorageStats, error) {
	stats := thumbnail.StorageStats{
		BySize:     make(map[thumbnail.Size]int64),
		ByMimeType: make(map[string]int64),
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	err := s.iteratePrefix(thumbPrefix, func(key string, value []byte) error {
		var e entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("corrupt entry %s: %w", key, err)
		}
		stats.Total++
		stats.TotalBytes += int64(len(e.Data))
		stats.BySize[thumbnail.Size(e.Size)]++
		stats.ByMimeType[e.MimeType]++
		return nil
	})
	return stats, err
}

// get reads one entry. Callers hold s.mu.
func (s *Store) get(key string) (entry, error) {
	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return entry{}, thumbnail.ErrNotFound
	}
	if err != nil {
		return entry{}, err
	}
	defer closer.Close()

	var e entry
	if err := json.Unmarshal(value, &e); err != nil {
		return entry{}, fmt.Errorf("corrupt entry %s: %w", key, err)
	}
	return e, nil
}

// nextID returns the next unused record ID. Callers hold s.mu for writing
// and persist the returned ID with the record.
func (s *Store) nextID() (int64, error) {
	value, closer, err := s.db.Get([]byte(sequenceKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if len(value) != 8 {
		return 0, fmt.Errorf("corrupt sequence value (%d bytes)", len(value))
	}
	return int64(binary.BigEndian.Uint64(value)) + 1, nil
}

func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// iteratePrefix calls fn for every key under prefix. Callers hold s.mu.
func (s *Store) iteratePrefix(prefix string, fn func(key string, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "\xff"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		if !strings.HasPrefix(key, prefix) {
			break
		}
		if err := fn(key, iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
