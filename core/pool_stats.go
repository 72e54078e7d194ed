package core

import (
	"github.com/rs/zerolog"

	"github.com/searchktools/fast-static/core/pools"
)

// PoolStats is a snapshot of the handler's buffer pools
type PoolStats struct {
	Files     pools.BytePoolStats
	Responses pools.BufferStats
}

// PoolStats returns current pool usage. File buffers that were taken but
// never returned show up as Gets exceeding Puts.
func (h *Handler) PoolStats() PoolStats {
	return PoolStats{
		Files:     h.bytes.Stats(),
		Responses: h.buffers.Stats(),
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (s PoolStats) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("file_gets", s.Files.Gets).
		Uint64("file_puts", s.Files.Puts).
		Uint64("file_misses", s.Files.Misses).
		Uint64("response_gets", s.Responses.TotalGets).
		Uint64("response_oversized", s.Responses.Oversized).
		Float64("response_hit_rate", s.Responses.HitRate)
}
