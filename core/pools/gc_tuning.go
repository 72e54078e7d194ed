package pools

import (
	"math"
	"runtime"
	"runtime/debug"
	"time"
)

// GCConfig tunes the collector for a buffer-heavy server. Zero values
// leave the runtime setting alone.
type GCConfig struct {
	// Percent is the GOGC target percentage
	Percent int
	// MemoryLimit is the soft memory limit in bytes
	MemoryLimit int64
}

// ApplyGCConfig applies cfg and returns the settings it replaced, so a
// caller can restore them.
func ApplyGCConfig(cfg GCConfig) GCConfig {
	var prev GCConfig

	if cfg.Percent > 0 {
		prev.Percent = debug.SetGCPercent(cfg.Percent)
	}
	if cfg.MemoryLimit > 0 {
		prev.MemoryLimit = debug.SetMemoryLimit(cfg.MemoryLimit)
		if prev.MemoryLimit == math.MaxInt64 {
			prev.MemoryLimit = 0
		}
	}
	return prev
}

// GCStats holds garbage collection statistics
type GCStats struct {
	NumGC        uint32
	PauseTotal   time.Duration
	LastPause    time.Duration
	HeapAlloc    uint64
	Sys          uint64
	NumGoroutine int
}

// ReadGCStats returns current collector statistics
func ReadGCStats() GCStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := GCStats{
		NumGC:        ms.NumGC,
		PauseTotal:   time.Duration(ms.PauseTotalNs),
		HeapAlloc:    ms.HeapAlloc,
		Sys:          ms.Sys,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if ms.NumGC > 0 {
		stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
	}
	return stats
}
