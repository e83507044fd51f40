package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-tagger/internal/logging"
	"media-tagger/internal/metrics"
)

// Config holds memory backpressure settings.
type Config struct {
	// LimitBytes is the soft limit. Zero means use GOMEMLIMIT.
	LimitBytes int64

	// ResumeRatio is the usage ratio below which paused workers resume.
	ResumeRatio float64

	// PauseRatio is the usage ratio at which workers stop taking jobs.
	PauseRatio float64

	// CheckInterval is how often heap usage is sampled.
	CheckInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ResumeRatio:   0.7,
		PauseRatio:    0.85,
		CheckInterval: 5 * time.Second,
	}
}

// Monitor samples heap usage and tells thumbnail workers to stop taking
// new jobs while usage is critical. It satisfies pipeline.PressureGauge.
type Monitor struct {
	config    Config
	limit     int64
	readAlloc func() uint64

	mu      sync.RWMutex
	current uint64
	paused  bool

	stopOnce sync.Once
	stopChan chan struct{}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// NewMonitor creates a monitor. With no explicit limit and no GOMEMLIMIT
// the monitor never pauses.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		readAlloc: heapAlloc,
		stopChan:  make(chan struct{}),
	}
}

// Start begins sampling. It does nothing when no limit is known.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.monitorLoop()
}

// Stop ends sampling. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

// check samples usage and moves between running and paused. Pausing
// happens at PauseRatio and resuming only below ResumeRatio.
func (m *Monitor) check() {
	alloc := m.readAlloc()
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case usage >= m.config.PauseRatio && !m.paused:
		logging.Warn("Memory critical (%.1f%% of %s), pausing thumbnail workers", usage*100, formatBytes(m.limit))
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.ResumeRatio && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming thumbnail workers", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
	}
}

// IsPaused reports whether workers should hold off taking jobs.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled heap allocation, the limit and their ratio.
// ratio is 0 when no limit is configured.
func (m *Monitor) Usage() (current uint64, limit int64, ratio float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.limit > 0 {
		ratio = float64(m.current) / float64(m.limit)
	}
	return m.current, m.limit, ratio
}
