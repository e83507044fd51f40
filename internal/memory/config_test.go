package memory

import (
	"math"
	"runtime/debug"
	"testing"
)

// restoreMemoryLimit resets the runtime limit after a test changes it.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvNoLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()
	if result.Configured || result.Source != "none" {
		t.Errorf("ConfigureFromEnv() = %+v, want unconfigured", result)
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1Gi")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()
	if !result.Configured || result.Source != "MEMORY_LIMIT" {
		t.Fatalf("ConfigureFromEnv() = %+v, want configured from MEMORY_LIMIT", result)
	}
	if result.ContainerLimit != 1<<30 {
		t.Errorf("ContainerLimit = %d, want %d", result.ContainerLimit, 1<<30)
	}
	if result.GoMemLimit != 1<<29 {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, 1<<29)
	}
	if got := debug.SetMemoryLimit(-1); got != 1<<29 {
		t.Errorf("runtime memory limit = %d, want %d", got, 1<<29)
	}
}

func TestConfigureFromEnvBadRatioUsesDefault(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000")
	t.Setenv("MEMORY_RATIO", "1.5")

	result := ConfigureFromEnv()
	if result.Ratio != DefaultMemoryRatio {
		t.Errorf("Ratio = %v, want %v", result.Ratio, DefaultMemoryRatio)
	}
	if result.GoMemLimit != 850000 {
		t.Errorf("GoMemLimit = %d, want 850000", result.GoMemLimit)
	}
}

func TestConfigureFromEnvInvalidLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "lots")

	if result := ConfigureFromEnv(); result.Configured {
		t.Errorf("ConfigureFromEnv() = %+v, want unconfigured", result)
	}
}

func TestConfigureFromEnvGoMemLimitWins(t *testing.T) {
	restoreMemoryLimit(t)
	debug.SetMemoryLimit(256 << 20)
	t.Setenv("GOMEMLIMIT", "256MiB")
	t.Setenv("MEMORY_LIMIT", "1Gi")

	result := ConfigureFromEnv()
	if result.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want GOMEMLIMIT", result.Source)
	}
	if result.GoMemLimit != 256<<20 || result.GoMemLimit == math.MaxInt64 {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, 256<<20)
	}
}
