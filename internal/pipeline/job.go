package pipeline

import (
	"time"

	"github.com/google/uuid"

	"media-tagger/internal/thumbnail"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one unit of work: generate one size for one file.
type Job struct {
	ID         uuid.UUID      `json:"id"`
	FileID     int64          `json:"fileId"`
	FilePath   string         `json:"filePath"`
	Size       thumbnail.Size `json:"size"`
	Status     Status         `json:"status"`
	RetryCount int            `json:"retryCount"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

// NewJob creates a pending job with a fresh ID.
func NewJob(fileID int64, path string, size thumbnail.Size) *Job {
	return &Job{
		ID:         uuid.New(),
		FileID:     fileID,
		FilePath:   path,
		Size:       size,
		Status:     StatusPending,
		EnqueuedAt: time.Now(),
	}
}
