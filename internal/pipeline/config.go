package pipeline

import (
	"time"

	"media-tagger/internal/thumbnail"
	"media-tagger/internal/workers"
)

// Config controls the worker pool and the retry policy.
type Config struct {
	// Workers is the number of concurrent workers. Zero selects one per CPU.
	Workers int
	// MaxRetries is how many times a failed job is retried. A job is
	// attempted at most MaxRetries+1 times.
	MaxRetries int
	// RetryDelay is the base backoff. Retry n waits RetryDelay*n.
	RetryDelay time.Duration
	// ProcessingTimeout bounds one generation attempt and one persistence call.
	ProcessingTimeout time.Duration
	// PollInterval is how often an idle worker checks the queue.
	PollInterval time.Duration
	// StatsInterval is how often throughput is recomputed.
	StatsInterval time.Duration
	// SkipExisting skips (file, size) pairs that already have a thumbnail.
	SkipExisting bool
	// MissingSizes are the sizes QueueMissing generates.
	MissingSizes []thumbnail.Size
	// MissingBatchLimit caps the files queued by one QueueMissing call and
	// is the catalog page size.
	MissingBatchLimit int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           workers.ForCPU(0),
		MaxRetries:        3,
		RetryDelay:        5 * time.Second,
		ProcessingTimeout: 30 * time.Second,
		PollInterval:      100 * time.Millisecond,
		StatsInterval:     5 * time.Second,
		SkipExisting:      true,
		MissingSizes:      thumbnail.AllSizes(),
		MissingBatchLimit: 1000,
	}
}

// withDefaults fills zero or invalid fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.Workers = workers.Resolve(c.Workers)
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = d.ProcessingTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = d.StatsInterval
	}
	if len(c.MissingSizes) == 0 {
		c.MissingSizes = d.MissingSizes
	}
	if c.MissingBatchLimit <= 0 {
		c.MissingBatchLimit = d.MissingBatchLimit
	}
	return c
}
