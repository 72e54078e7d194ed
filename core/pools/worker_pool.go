package pools

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Task represents a unit of work
type Task func()

// WorkerPool implements a work-stealing goroutine pool.
//
// Submit never blocks the caller and never runs the task inline: when
// every queue is full the task gets a goroutine of its own. Accept loops
// rely on this to keep accepting while workers are busy.
type WorkerPool struct {
	numWorkers int
	queues     []*workerQueue
	workers    []*worker

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// Statistics
	stats struct {
		tasksSubmitted atomic.Uint64
		tasksCompleted atomic.Uint64
		tasksOverflow  atomic.Uint64
		stealsSuccess  atomic.Uint64
		stealsFailed   atomic.Uint64
	}
}

// workerQueue is a buffered queue owned by a single worker
type workerQueue struct {
	tasks chan Task
	id    int
}

// worker represents a goroutine that processes tasks
type worker struct {
	id    int
	pool  *WorkerPool
	queue *workerQueue
}

// NewWorkerPool creates a new work-stealing worker pool
func NewWorkerPool(numWorkers, queueSize int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	pool := &WorkerPool{
		numWorkers: numWorkers,
		queues:     make([]*workerQueue, numWorkers),
		workers:    make([]*worker, numWorkers),
	}

	for i := 0; i < numWorkers; i++ {
		pool.queues[i] = &workerQueue{
			tasks: make(chan Task, queueSize),
			id:    i,
		}
	}

	pool.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:    i,
			pool:  pool,
			queue: pool.queues[i],
		}
		pool.workers[i] = w
		go w.run()
	}

	return pool
}

// Submit hands a task to the pool using round-robin. It returns false
// only after Close.
func (p *WorkerPool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	n := p.stats.tasksSubmitted.Add(1)
	idx := int(n % uint64(p.numWorkers))

	select {
	case p.queues[idx].tasks <- task:
		return true
	default:
	}

	// Queue full, try next worker
	idx = (idx + 1) % p.numWorkers
	select {
	case p.queues[idx].tasks <- task:
		return true
	default:
	}

	// All tried queues full, run detached
	p.stats.tasksOverflow.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.execute(task)
	}()
	return true
}

func (p *WorkerPool) execute(task Task) {
	task()
	p.stats.tasksCompleted.Add(1)
}

// run is the main loop for a worker goroutine
func (w *worker) run() {
	defer w.pool.wg.Done()

	for {
		// Try to get task from own queue first
		select {
		case task, ok := <-w.queue.tasks:
			if !ok {
				return
			}
			w.pool.execute(task)
			continue
		default:
		}

		// Own queue is empty, try to steal from other workers
		if w.trySteal() {
			continue
		}

		// No work available, block on own queue
		task, ok := <-w.queue.tasks
		if !ok {
			return
		}
		w.pool.execute(task)
	}
}

// trySteal attempts to steal work from another worker
func (w *worker) trySteal() bool {
	numWorkers := w.pool.numWorkers
	start := (w.id + 1) % numWorkers

	for i := 0; i < numWorkers-1; i++ {
		victim := w.pool.queues[(start+i)%numWorkers]

		select {
		case task, ok := <-victim.tasks:
			if ok {
				w.pool.stats.stealsSuccess.Add(1)
				w.pool.execute(task)
				return true
			}
		default:
		}
	}

	w.pool.stats.stealsFailed.Add(1)
	return false
}

// Close stops accepting tasks and waits until every submitted task,
// queued or detached, has finished.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q.tasks)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	submitted := p.stats.tasksSubmitted.Load()
	completed := p.stats.tasksCompleted.Load()
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: submitted,
		TasksCompleted: completed,
		TasksPending:   submitted - completed,
		TasksOverflow:  p.stats.tasksOverflow.Load(),
		StealsSuccess:  p.stats.stealsSuccess.Load(),
		StealsFailed:   p.stats.stealsFailed.Load(),
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   uint64
	TasksOverflow  uint64
	StealsSuccess  uint64
	StealsFailed   uint64
}
