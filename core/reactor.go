//go:build linux || darwin

package core

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/searchktools/fast-static/core/http"
	"github.com/searchktools/fast-static/core/poller"
	"github.com/searchktools/fast-static/core/pools"
)

// connection is the reactor's per-connection state. Its receive buffer
// and response are heap-owned and released only by closeConnection.
type connection struct {
	lifecycle
	fd       int
	readBuf  []byte
	read     int
	resp     *Response
	written  int
	deadline time.Time
	accepted time.Time

	// lingering is set once the response is out and the write side shut;
	// reads are then discarded until EOF
	lingering bool
	discarded int
}

// Reset implements pools.Poolable
func (c *connection) Reset() {
	c.state = StateAccepted
	c.fd = -1
	c.readBuf = nil
	c.read = 0
	c.resp = nil
	c.written = 0
	c.lingering = false
	c.discarded = 0
	c.deadline = time.Time{}
	c.accepted = time.Time{}
}

// fileListener is a listener whose descriptor can be taken over
type fileListener interface {
	File() (*os.File, error)
}

// Reactor serves every connection from one OS-thread-locked goroutine
// driving epoll or kqueue. No state is shared with other goroutines, so
// nothing here is locked.
type Reactor struct {
	handler *Handler
	logger  zerolog.Logger

	poller      poller.Poller
	connections map[int]*connection
	connPool    *pools.ConnectionPool[*connection]
	lastSweep   time.Time
}

// NewReactor creates a single-threaded event loop server
func NewReactor(h *Handler, logger zerolog.Logger) *Reactor {
	return &Reactor{
		handler:     h,
		logger:      logger.With().Str("strategy", string(StrategyReactor)).Logger(),
		connections: make(map[int]*connection, 1024),
		connPool: pools.NewConnectionPool(func() *connection {
			return &connection{fd: -1}
		}),
	}
}

// Serve runs the event loop until ctx is done, then closes every open
// connection. ln must expose its descriptor (*net.TCPListener does).
func (r *Reactor) Serve(ctx context.Context, ln net.Listener) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	fl, ok := ln.(fileListener)
	if !ok {
		return fmt.Errorf("reactor needs a file-backed listener, got %T", ln)
	}
	lnFile, err := fl.File()
	if err != nil {
		return err
	}
	defer lnFile.Close()

	lfd := int(lnFile.Fd())
	if err := unix.SetNonblock(lfd, true); err != nil {
		return err
	}

	r.poller, err = poller.NewPoller()
	if err != nil {
		return err
	}
	defer r.poller.Close()

	if err := r.poller.Add(lfd); err != nil {
		return err
	}

	r.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("max_conns", r.handler.opts.MaxConnections).
		Msg("accepting")

	timeout := int(pollInterval / time.Millisecond)
	for {
		if ctx.Err() != nil {
			r.shutdown()
			return nil
		}

		fds, err := r.poller.Wait(timeout)
		if err != nil {
			r.logger.Error().Err(err).Msg("poller wait failed")
			r.shutdown()
			return err
		}

		for _, fd := range fds {
			if fd == lfd {
				r.acceptConnections(lfd)
			} else {
				r.handleEvent(fd)
			}
		}

		r.sweepTimeouts(time.Now())
	}
}

// acceptConnections accepts every pending connection
func (r *Reactor) acceptConnections(lfd int) {
	opts := r.handler.opts

	for {
		nfd, _, err := unix.Accept(lfd)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			}
			r.logger.Warn().Err(err).Msg("accept failed")
			return
		}

		if opts.MaxConnections > 0 && len(r.connections) >= opts.MaxConnections {
			unix.Close(nfd)
			r.logger.Debug().Msg("connection limit reached, refusing")
			continue
		}

		unix.CloseOnExec(nfd)
		if err := unix.SetNonblock(nfd, true); err != nil {
			unix.Close(nfd)
			continue
		}
		unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		now := time.Now()
		conn := r.connPool.Get()
		conn.fd = nfd
		conn.readBuf = r.handler.bytes.Get(opts.MaxRequestSize)
		conn.accepted = now
		conn.deadline = now.Add(opts.ReadTimeout)

		if err := r.poller.Add(nfd); err != nil {
			r.handler.bytes.Put(conn.readBuf)
			r.connPool.Put(conn)
			unix.Close(nfd)
			continue
		}

		conn.advance(StateReading)
		r.connections[nfd] = conn
		r.logger.Debug().Int("fd", nfd).Msg("accepted")
	}
}

// handleEvent dispatches a readiness event by connection state
func (r *Reactor) handleEvent(fd int) {
	conn, ok := r.connections[fd]
	if !ok {
		return
	}

	switch conn.State() {
	case StateReading:
		r.handleRead(conn)
	case StateResponding:
		if conn.lingering {
			r.discard(conn)
		} else {
			r.flush(conn)
		}
	}
}

// handleRead reads what is available and serves once the request line
// is complete.
func (r *Reactor) handleRead(conn *connection) {
	n, err := unix.Read(conn.fd, conn.readBuf[conn.read:])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			// ErrWouldBlock: back to the loop
			return
		}
		r.logger.Debug().Err(err).Int("fd", conn.fd).Msg("read failed")
		r.closeConnection(conn)
		return
	}

	if n == 0 {
		if conn.read == 0 {
			r.logger.Debug().Int("fd", conn.fd).Err(ErrPeerClosed).Msg("closing")
			r.closeConnection(conn)
			return
		}
		// Peer finished sending; serve what arrived
	} else {
		conn.read += n
		if !http.LineComplete(conn.readBuf[conn.read-n:conn.read]) && conn.read < len(conn.readBuf) {
			return
		}
	}

	conn.resp = r.handler.Serve(conn.readBuf[:conn.read])
	conn.advance(StateParsed)

	conn.advance(StateResponding)
	conn.deadline = time.Now().Add(r.handler.opts.WriteTimeout)
	r.flush(conn)
}

// flush writes as much of the response as the socket takes. When the
// socket is full it waits for write readiness instead of blocking.
func (r *Reactor) flush(conn *connection) {
	data := conn.resp.Data
	for conn.written < len(data) {
		n, err := unix.Write(conn.fd, data[conn.written:])
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				if err := r.poller.EnableWrite(conn.fd); err != nil {
					r.logger.Warn().Err(err).Int("fd", conn.fd).Msg("enable write interest failed")
					r.closeConnection(conn)
				}
				return
			}
			r.logger.Warn().Err(err).Int("fd", conn.fd).Msg("write failed")
			r.closeConnection(conn)
			return
		}
		conn.written += n
	}

	r.logger.Debug().
		Int("fd", conn.fd).
		Str("method", conn.resp.Method).
		Str("path", conn.resp.Path).
		Int("status", int(conn.resp.Status)).
		Int("bytes", conn.resp.BodyLen).
		Dur("dur", time.Since(conn.accepted)).
		Msg("served")
	r.linger(conn)
}

// linger shuts the write side and keeps conn registered for reads until
// the peer closes, lingerBytes are discarded or lingerTimeout passes.
// Closing with unread bytes queued would reset the response in flight.
func (r *Reactor) linger(conn *connection) {
	if err := unix.Shutdown(conn.fd, unix.SHUT_WR); err != nil {
		r.closeConnection(conn)
		return
	}
	if err := r.poller.EnableRead(conn.fd); err != nil {
		r.closeConnection(conn)
		return
	}
	conn.lingering = true
	conn.deadline = time.Now().Add(lingerTimeout)
	r.discard(conn)
}

// discard drops whatever the peer sent after the request
func (r *Reactor) discard(conn *connection) {
	for {
		n, err := unix.Read(conn.fd, conn.readBuf)
		switch {
		case err == unix.EAGAIN:
			return
		case err == unix.EINTR:
			continue
		case err != nil || n == 0:
			r.closeConnection(conn)
			return
		}
		conn.discarded += n
		if conn.discarded >= lingerBytes {
			r.closeConnection(conn)
			return
		}
	}
}

// closeConnection moves conn to StateClosed and releases everything it
// owns. It is a no-op for a connection already closed.
func (r *Reactor) closeConnection(conn *connection) {
	if _, ok := r.connections[conn.fd]; !ok || !conn.advance(StateClosed) {
		return
	}
	delete(r.connections, conn.fd)

	// Stop events before the descriptor number can be reused
	r.poller.Remove(conn.fd)
	unix.Close(conn.fd)

	if conn.resp != nil {
		conn.resp.Release()
	}
	if conn.readBuf != nil {
		r.handler.bytes.Put(conn.readBuf)
	}

	r.connPool.Put(conn)
}

// sweepTimeouts closes connections past their deadline, at most once per
// poll interval.
func (r *Reactor) sweepTimeouts(now time.Time) {
	if now.Sub(r.lastSweep) < pollInterval {
		return
	}
	r.lastSweep = now

	for fd, conn := range r.connections {
		if now.After(conn.deadline) {
			r.logger.Debug().Int("fd", fd).Str("state", conn.State().String()).Msg("timed out")
			r.closeConnection(conn)
		}
	}
}

// shutdown closes every open connection
func (r *Reactor) shutdown() {
	for _, conn := range r.connections {
		r.closeConnection(conn)
	}
	r.logger.Info().Msg("event loop stopped")
}
