package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the thumbnail worker count.
const EnvOverride = "THUMBNAIL_WORKERS"

// envOverride returns the positive integer in THUMBNAIL_WORKERS, or 0.
func envOverride() int {
	value := os.Getenv(EnvOverride)
	if value == "" {
		return 0
	}
	count, err := strconv.Atoi(value)
	if err != nil || count < 1 {
		return 0
	}
	return count
}

func capAt(count, limit int) int {
	if limit > 0 && count > limit {
		return limit
	}
	return count
}

// Count returns the number of workers for a task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit parameter caps the worker count; 0 means no limit.
// THUMBNAIL_WORKERS overrides the calculation but is still capped.
func Count(multiplier float64, limit int) int {
	if override := envOverride(); override > 0 {
		return capAt(override, limit)
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capAt(workers, limit)
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Resolve returns configured when it is positive, otherwise the CPU-bound
// default. Thumbnail generation is dominated by image decoding, so the
// pipeline sizes its pool like other CPU-bound work.
func Resolve(configured int) int {
	if configured > 0 {
		return configured
	}
	return ForCPU(0)
}
