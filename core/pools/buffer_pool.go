package pools

import (
	"sync"
	"sync/atomic"
)

// Buffer pool sizes
const (
	SmallBufferSize  = 2 * 1024  // 404 pages and tiny files
	MediumBufferSize = 16 * 1024 // Typical HTML page plus headers
	LargeBufferSize  = 128 * 1024
)

// BufferPool manages response buffers with three size tiers
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool

	// Statistics
	pooled    atomic.Uint64
	oversized atomic.Uint64
	totalGets atomic.Uint64
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, SmallBufferSize)
				return &buf
			},
		},
		medium: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, MediumBufferSize)
				return &buf
			},
		},
		large: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, LargeBufferSize)
				return &buf
			},
		},
	}
}

// Get acquires an empty buffer whose capacity is at least size
func (bp *BufferPool) Get(size int) *[]byte {
	bp.totalGets.Add(1)

	var buf *[]byte
	switch {
	case size <= SmallBufferSize:
		buf = bp.small.Get().(*[]byte)
	case size <= MediumBufferSize:
		buf = bp.medium.Get().(*[]byte)
	case size <= LargeBufferSize:
		buf = bp.large.Get().(*[]byte)
	default:
		bp.oversized.Add(1)
		b := make([]byte, 0, size)
		return &b
	}

	bp.pooled.Add(1)
	*buf = (*buf)[:0]
	return buf
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}

	// Reset buffer but keep capacity
	*buf = (*buf)[:0]

	switch cap(*buf) {
	case SmallBufferSize:
		bp.small.Put(buf)
	case MediumBufferSize:
		bp.medium.Put(buf)
	case LargeBufferSize:
		bp.large.Put(buf)
	}
	// Oversized buffers are not pooled (let GC collect them)
}

// Stats returns buffer pool statistics
func (bp *BufferPool) Stats() BufferStats {
	total := bp.totalGets.Load()
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(bp.pooled.Load()) / float64(total)
	}
	return BufferStats{
		Pooled:    bp.pooled.Load(),
		Oversized: bp.oversized.Load(),
		TotalGets: total,
		HitRate:   hitRate,
	}
}

// BufferStats contains buffer pool statistics
type BufferStats struct {
	Pooled    uint64
	Oversized uint64
	TotalGets uint64
	HitRate   float64
}
