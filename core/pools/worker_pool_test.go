package pools

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Basic(t *testing.T) {
	pool := NewWorkerPool(4, 0)

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		if !pool.Submit(func() {
			counter.Add(1)
		}) {
			t.Fatal("Submit rejected on an open pool")
		}
	}

	// Close drains every queue before returning
	pool.Close()

	if counter.Load() != 100 {
		t.Errorf("Expected 100 tasks completed, got %d", counter.Load())
	}
	stats := pool.Stats()
	if stats.TasksCompleted != 100 || stats.TasksPending != 0 {
		t.Errorf("Expected 100 completed and 0 pending, got %+v", stats)
	}
}

func TestWorkerPool_SubmitNeverBlocks(t *testing.T) {
	pool := NewWorkerPool(1, 1)

	release := make(chan struct{})
	var finished atomic.Int64

	// One task runs, one waits in the queue, the rest must overflow
	// to detached goroutines instead of stalling the submitter.
	submitted := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			pool.Submit(func() {
				<-release
				finished.Add(1)
			})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked while workers were busy")
	}

	if pool.Stats().TasksOverflow == 0 {
		t.Error("Expected overflow tasks when the only queue is full")
	}

	close(release)
	pool.Close()

	if finished.Load() != 10 {
		t.Errorf("Expected 10 finished tasks, got %d", finished.Load())
	}
}

func TestWorkerPool_WorkStealing(t *testing.T) {
	pool := NewWorkerPool(4, 0)

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		i := i
		pool.Submit(func() {
			if i%10 == 0 {
				time.Sleep(10 * time.Millisecond)
			}
			counter.Add(1)
		})
	}
	pool.Close()

	if counter.Load() != 100 {
		t.Errorf("Expected 100 tasks completed, got %d", counter.Load())
	}
	if pool.Stats().StealsSuccess == 0 {
		t.Log("Warning: No successful steals detected")
	}
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(2, 0)
	pool.Close()
	pool.Close()

	if pool.Submit(func() {}) {
		t.Error("Submit should be rejected after Close")
	}
}

func BenchmarkWorkerPool_Submit(b *testing.B) {
	pool := NewWorkerPool(8, 0)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			pool.Submit(func() {
				_ = 1 + 1
			})
		}
	})
	pool.Close()
}
