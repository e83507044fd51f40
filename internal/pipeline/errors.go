package pipeline

import "errors"

var (
	// ErrEmptyFileList is returned when a queue request names no files.
	ErrEmptyFileList = errors.New("no files to queue")
	// ErrNoSizes is returned when a queue request names no sizes.
	ErrNoSizes = errors.New("no thumbnail sizes requested")
	// ErrInvalidFileID is returned for a file ID that is not positive.
	ErrInvalidFileID = errors.New("invalid file id")
	// ErrEmptyPath is returned for a file with no path.
	ErrEmptyPath = errors.New("empty file path")
	// ErrNoCatalog is returned by QueueMissing when no catalog is configured.
	ErrNoCatalog = errors.New("no file catalog configured")
	// ErrNotStarted is returned when the processor is used before Start.
	ErrNotStarted = errors.New("thumbnail processor not started")
	// ErrProcessorStopped is returned once Shutdown has completed.
	ErrProcessorStopped = errors.New("thumbnail processor stopped")
	// ErrGenerationTimeout marks an attempt that exceeded the processing timeout.
	ErrGenerationTimeout = errors.New("thumbnail generation timed out")
	// ErrGeneratorPanic marks an attempt whose generator panicked.
	ErrGeneratorPanic = errors.New("thumbnail generator panicked")
)

// FailureKind classifies a failed attempt. Every kind is retryable.
type FailureKind int

const (
	// FailureGeneration means the generator returned an error.
	FailureGeneration FailureKind = iota + 1
	// FailureTimeout means the generator did not finish in time.
	FailureTimeout
	// FailurePersistence means the repository rejected the thumbnail.
	FailurePersistence
)

func (k FailureKind) String() string {
	switch k {
	case FailureGeneration:
		return "generation"
	case FailureTimeout:
		return "timeout"
	case FailurePersistence:
		return "persistence"
	}
	return "unknown"
}
