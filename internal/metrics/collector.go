package metrics

import (
	"context"
	"time"

	"media-tagger/internal/logging"
	"media-tagger/internal/thumbnail"
)

// StatsProvider reports persisted thumbnail totals. Both repository
// backends implement it.
type StatsProvider interface {
	StorageStats(ctx context.Context) (thumbnail.StorageStats, error)
}

// Collector periodically copies repository storage stats into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop ends the collection loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	stats, err := c.statsProvider.StorageStats(ctx)
	if err != nil {
		logging.Warn("Failed to collect thumbnail storage stats: %v", err)
		return
	}

	for _, size := range thumbnail.AllSizes() {
		ThumbnailsStored.WithLabelValues(size.String()).Set(float64(stats.BySize[size]))
	}
	ThumbnailsStoredBytes.Set(float64(stats.TotalBytes))

	logging.Debug("Metrics collected: thumbnails=%d, bytes=%d", stats.Total, stats.TotalBytes)
}
