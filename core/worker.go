package core

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/searchktools/fast-static/core/pools"
)

// WorkerServer accepts with blocking calls and serves every connection on
// a worker of its own. The accept loop never waits for a request to
// finish.
type WorkerServer struct {
	handler *Handler
	logger  zerolog.Logger

	wg sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	draining bool
}

// NewWorkerServer creates a worker-per-connection server
func NewWorkerServer(h *Handler, logger zerolog.Logger) *WorkerServer {
	return &WorkerServer{
		handler: h,
		logger:  logger.With().Str("strategy", string(StrategyWorker)).Logger(),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve accepts until ctx is done, then closes ln and waits for in-flight
// connections to finish.
func (s *WorkerServer) Serve(ctx context.Context, ln net.Listener) error {
	opts := s.handler.Options()

	if opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, opts.MaxConnections)
	}

	var pool *pools.WorkerPool
	if opts.Workers > 0 {
		pool = pools.NewWorkerPool(opts.Workers, 0)
	}

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.drain()
	})
	defer stop()

	defer func() {
		s.wg.Wait()
		if pool != nil {
			pool.Close()
			st := pool.Stats()
			s.logger.Info().
				Int("workers", st.NumWorkers).
				Uint64("tasks", st.TasksSubmitted).
				Uint64("completed", st.TasksCompleted).
				Uint64("overflow", st.TasksOverflow).
				Uint64("steals", st.StealsSuccess).
				Msg("worker pool stopped")
		}
	}()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("workers", opts.Workers).
		Int("max_conns", opts.MaxConnections).
		Msg("accepting")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info().Msg("listener closed, draining")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			// Descriptor exhaustion and aborted handshakes pass
			backoff = nextBackoff(backoff)
			s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.dispatch(conn, pool)
	}
}

func (s *WorkerServer) dispatch(conn net.Conn, pool *pools.WorkerPool) {
	serve := func() {
		start := time.Now()
		conn.SetReadDeadline(start.Add(s.handler.opts.ReadTimeout))
		s.track(conn)
		defer s.untrack(conn)

		s.handler.serveConn(conn, start)
	}

	if pool != nil {
		if !pool.Submit(serve) {
			conn.Close()
		}
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		serve()
	}()
}

func (s *WorkerServer) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[conn] = struct{}{}
	if s.draining {
		conn.SetReadDeadline(time.Now())
	}
}

func (s *WorkerServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// drain cuts short every pending read. Responses already being written
// are left to finish under their write deadline.
func (s *WorkerServer) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draining = true
	for conn := range s.conns {
		conn.SetReadDeadline(time.Now())
	}
}

// nextBackoff doubles the accept retry delay from 5ms up to 1s
func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
