package kvstore

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"media-tagger/internal/thumbnail"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func thumb(size thumbnail.Size, data string) *thumbnail.Thumbnail {
	return &thumbnail.Thumbnail{
		Size:        size,
		Data:        []byte(data),
		MimeType:    "image/jpeg",
		GeneratedAt: time.Now(),
	}
}

func TestThumbKey(t *testing.T) {
	tests := []struct {
		fileID int64
		size   thumbnail.Size
		want   string
	}{
		{1, thumbnail.SizeSmall, "thumb/00000000000000000001/small"},
		{42, thumbnail.SizeLarge, "thumb/00000000000000000042/large"},
	}
	for _, tt := range tests {
		if got := ThumbKey(tt.fileID, tt.size); got != tt.want {
			t.Errorf("ThumbKey(%d, %s) = %q, want %q", tt.fileID, tt.size, got, tt.want)
		}
	}
}

func TestCreateOrUpdateThumbnail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateOrUpdateThumbnail(ctx, 7, thumb(thumbnail.SizeSmall, "one"))
	if err != nil {
		t.Fatalf("CreateOrUpdateThumbnail() error = %v", err)
	}
	if first.ID != 1 || first.FileSize != 3 {
		t.Errorf("first record = %+v", first)
	}

	second, err := s.CreateOrUpdateThumbnail(ctx, 7, thumb(thumbnail.SizeSmall, "second"))
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("update changed identity: %+v -> %+v", first, second)
	}

	other, err := s.CreateOrUpdateThumbnail(ctx, 7, thumb(thumbnail.SizeMedium, "m"))
	if err != nil {
		t.Fatal(err)
	}
	if other.ID != 2 {
		t.Errorf("new record ID = %d, want 2", other.ID)
	}

	got, err := s.FindThumbnail(ctx, 7, thumbnail.SizeSmall)
	if err != nil {
		t.Fatalf("FindThumbnail() error = %v", err)
	}
	if string(got.Data) != "second" || got.MimeType != "image/jpeg" {
		t.Errorf("FindThumbnail() = %q %s, want latest write", got.Data, got.MimeType)
	}
}

func TestCreateOrUpdateThumbnailErrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateOrUpdateThumbnail(ctx, 1, nil); err == nil {
		t.Error("nil thumbnail should fail")
	}
	if _, err := s.CreateOrUpdateThumbnail(ctx, 1, thumb("huge", "x")); !errors.Is(err, thumbnail.ErrInvalidSize) {
		t.Errorf("invalid size error = %v, want ErrInvalidSize", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.CreateOrUpdateThumbnail(cancelled, 1, thumb(thumbnail.SizeSmall, "x")); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx error = %v, want context.Canceled", err)
	}
}

func TestFindThumbnailNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.FindThumbnail(context.Background(), 1, thumbnail.SizeSmall); !errors.Is(err, thumbnail.ErrNotFound) {
		t.Errorf("FindThumbnail() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteThumbnailsForFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// 1 and 10 share a decimal prefix; padding must keep them apart.
	for _, size := range thumbnail.AllSizes() {
		if _, err := s.CreateOrUpdateThumbnail(ctx, 1, thumb(size, "a")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateOrUpdateThumbnail(ctx, 10, thumb(thumbnail.SizeSmall, "b")); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteThumbnailsForFile(ctx, 1)
	if err != nil {
		t.Fatalf("DeleteThumbnailsForFile() error = %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}
	if n, _ := s.DeleteThumbnailsForFile(ctx, 1); n != 0 {
		t.Errorf("second delete removed %d, want 0", n)
	}
	if _, err := s.FindThumbnail(ctx, 10, thumbnail.SizeSmall); err != nil {
		t.Errorf("file 10 lost its thumbnail: %v", err)
	}
}

type knownFiles struct {
	ids     map[int64]bool
	err     error
	checked []int64
}

func (k *knownFiles) FileExists(_ context.Context, id int64) (bool, error) {
	k.checked = append(k.checked, id)
	return k.ids[id], k.err
}

func TestDeleteOrphanedThumbnails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 10} {
		for _, size := range []thumbnail.Size{thumbnail.SizeSmall, thumbnail.SizeLarge} {
			if _, err := s.CreateOrUpdateThumbnail(ctx, id, thumb(size, "x")); err != nil {
				t.Fatal(err)
			}
		}
	}

	files := &knownFiles{ids: map[int64]bool{2: true}}
	n, err := s.DeleteOrphanedThumbnails(ctx, files)
	if err != nil {
		t.Fatalf("DeleteOrphanedThumbnails() error = %v", err)
	}
	if n != 4 {
		t.Errorf("removed %d, want 4", n)
	}
	if want := []int64{1, 2, 10}; !slices.Equal(files.checked, want) {
		t.Errorf("checked files %v, want %v", files.checked, want)
	}
	if _, err := s.FindThumbnail(ctx, 2, thumbnail.SizeLarge); err != nil {
		t.Errorf("catalogued file lost its thumbnail: %v", err)
	}
	for _, id := range []int64{1, 10} {
		if _, err := s.FindThumbnail(ctx, id, thumbnail.SizeSmall); !errors.Is(err, thumbnail.ErrNotFound) {
			t.Errorf("file %d thumbnail survived: %v", id, err)
		}
	}

	files.err = errors.New("catalog offline")
	if _, err := s.DeleteOrphanedThumbnails(ctx, files); !errors.Is(err, files.err) {
		t.Errorf("DeleteOrphanedThumbnails() error = %v, want catalog error", err)
	}
}

func TestStorageStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateOrUpdateThumbnail(ctx, 1, thumb(thumbnail.SizeSmall, "1234")); err != nil {
		t.Fatal(err)
	}
	png := thumb(thumbnail.SizeLarge, "12")
	png.MimeType = "image/png"
	if _, err := s.CreateOrUpdateThumbnail(ctx, 2, png); err != nil {
		t.Fatal(err)
	}

	stats, err := s.StorageStats(ctx)
	if err != nil {
		t.Fatalf("StorageStats() error = %v", err)
	}
	if stats.Total != 2 || stats.TotalBytes != 6 {
		t.Errorf("Total = %d TotalBytes = %d, want 2 and 6", stats.Total, stats.TotalBytes)
	}
	if stats.BySize[thumbnail.SizeSmall] != 1 || stats.BySize[thumbnail.SizeLarge] != 1 {
		t.Errorf("BySize = %v", stats.BySize)
	}
	if stats.ByMimeType["image/png"] != 1 {
		t.Errorf("ByMimeType = %v", stats.ByMimeType)
	}
}

func TestSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateOrUpdateThumbnail(ctx, 1, thumb(thumbnail.SizeSmall, "a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rec, err := s.CreateOrUpdateThumbnail(ctx, 2, thumb(thumbnail.SizeSmall, "b"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != 2 {
		t.Errorf("ID after reopen = %d, want 2", rec.ID)
	}
}
