package memory

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *atomic.Uint64) *Monitor {
	cfg := DefaultConfig()
	cfg.LimitBytes = limit
	cfg.CheckInterval = 5 * time.Millisecond
	m := NewMonitor(cfg)
	m.readAlloc = alloc.Load
	return m
}

func TestMonitorHysteresis(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)

	steps := []struct {
		alloc      uint64
		wantPaused bool
	}{
		{500, false},
		{849, false},
		{850, true},
		{800, true}, // between the marks: stay paused
		{700, true},
		{699, false},
		{800, false}, // between the marks: stay running
		{990, true},
	}

	for i, s := range steps {
		alloc.Store(s.alloc)
		m.check()
		if got := m.IsPaused(); got != s.wantPaused {
			t.Errorf("step %d (alloc %d): IsPaused() = %v, want %v", i, s.alloc, got, s.wantPaused)
		}
	}
}

func TestMonitorUsage(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(250)
	m := newTestMonitor(1000, &alloc)
	m.check()

	current, limit, ratio := m.Usage()
	if current != 250 || limit != 1000 || ratio != 0.25 {
		t.Errorf("Usage() = %d, %d, %v; want 250, 1000, 0.25", current, limit, ratio)
	}
}

func TestMonitorLoop(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(950)
	m := newTestMonitor(1000, &alloc)
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !m.IsPaused() {
		if time.Now().After(deadline) {
			t.Fatal("monitor never paused")
		}
		time.Sleep(time.Millisecond)
	}

	alloc.Store(100)
	for m.IsPaused() {
		if time.Now().After(deadline) {
			t.Fatal("monitor never resumed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMonitorStopIsIdempotent(_ *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)
	m.Start()
	m.Stop()
	m.Stop()
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"536870912", 536870912, false},
		{"512Mi", 512 << 20, false},
		{"2Gi", 2 << 30, false},
		{"1G", 1_000_000_000, false},
		{"64K", 64_000, false},
		{" 128Mi ", 128 << 20, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-5", 0, true},
		{"0", 0, true},
		{"9223372036854775807Ki", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseQuantity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseQuantity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseQuantity(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.input); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
