package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchktools/fast-static/core/http"
	"github.com/searchktools/fast-static/core/pools"
	"github.com/searchktools/fast-static/core/static"
)

// Handler runs the request pipeline: parse, resolve, load, build.
// It is shared read-only by every connection of both strategies.
type Handler struct {
	opts     Options
	root     *os.Root
	resolver *static.Resolver
	loader   *static.Loader
	bytes    *pools.BytePool
	buffers  *pools.BufferPool
	logger   zerolog.Logger
}

// NewHandler opens the document root and prepares the pipeline
func NewHandler(opts Options, logger zerolog.Logger) (*Handler, error) {
	opts = opts.withDefaults()

	root, err := os.OpenRoot(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("open document root: %w", err)
	}

	bytes := pools.NewBytePool()
	return &Handler{
		opts:     opts,
		root:     root,
		resolver: static.NewResolver(root, opts.DefaultDocument, opts.NotFoundDocument),
		loader:   static.NewLoader(root, bytes),
		bytes:    bytes,
		buffers:  pools.NewBufferPool(),
		logger:   logger,
	}, nil
}

// Close releases the document root
func (h *Handler) Close() error {
	return h.root.Close()
}

// Options returns the effective options
func (h *Handler) Options() Options {
	return h.opts
}

// Response is one framed HTTP response held in a pooled buffer
type Response struct {
	Status  http.Status
	Data    []byte
	BodyLen int

	// Request line, kept for logging
	Method string
	Path   string

	buf  *[]byte
	pool *pools.BufferPool
}

// Release returns the buffer to its pool. Later calls are no-ops.
func (r *Response) Release() {
	if r == nil || r.buf == nil {
		return
	}
	r.pool.Put(r.buf)
	r.buf = nil
	r.Data = nil
}

// Serve turns one raw request buffer into a response. It never fails:
// every request error becomes a 404.
func (h *Handler) Serve(raw []byte) *Response {
	req, err := http.ParseRequest(raw, h.opts.MaxFieldLength)
	if err != nil {
		h.logger.Debug().Err(err).Msg("rejecting request line")
		return h.notFound("", "")
	}
	defer http.ReleaseRequest(req)

	if !req.IsRetrieval() {
		return h.notFound(req.Method, req.Path)
	}

	target, err := h.resolver.Resolve(req.Path)
	if err != nil {
		h.logger.Debug().Err(err).Str("path", req.Path).Msg("rejecting path")
		return h.notFound(req.Method, req.Path)
	}
	if target.Fallback {
		return h.notFound(req.Method, req.Path)
	}

	content, err := h.loader.Load(target.Name)
	if err != nil {
		h.logLoadError(err, target.Name)
		return h.notFound(req.Method, req.Path)
	}

	return h.build(http.StatusOK, content, req.Method, req.Path)
}

// notFound builds a 404 carrying the not-found document, or an empty
// body when that document cannot be loaded either.
func (h *Handler) notFound(method, path string) *Response {
	content, err := h.loader.Load(h.opts.NotFoundDocument)
	if err != nil {
		h.logLoadError(err, h.opts.NotFoundDocument)
		content = nil
	}
	return h.build(http.StatusNotFound, content, method, path)
}

func (h *Handler) logLoadError(err error, name string) {
	if errors.Is(err, static.ErrNotFound) {
		return
	}
	h.logger.Warn().Err(err).Str("file", name).Msg("load failed")
}

// build frames content into an exactly sized pooled buffer and releases
// content once it has been copied.
func (h *Handler) build(status http.Status, content *static.FileContent, method, path string) *Response {
	defer content.Release()

	var body []byte
	if content != nil {
		body = content.Data
	}

	buf := h.buffers.Get(http.ResponseSize(status, len(body)))
	out, err := http.BuildResponse(status, body, *buf)
	if err != nil {
		// Get guarantees the capacity; keep the client answered anyway
		h.logger.Error().Err(err).Msg("response framing failed")
		status, body = http.StatusNotFound, nil
		out, _ = http.BuildResponse(status, nil, make([]byte, 0, http.ResponseSize(status, 0)))
	}
	*buf = out

	return &Response{
		Status:  status,
		Data:    out,
		BodyLen: len(body),
		Method:  method,
		Path:    path,
		buf:     buf,
		pool:    h.buffers,
	}
}

// ServeConn drives one accepted connection through its whole lifecycle
// with blocking I/O, then closes it. Read and write deadlines come from
// the options.
func (h *Handler) ServeConn(conn net.Conn) {
	start := time.Now()
	conn.SetReadDeadline(start.Add(h.opts.ReadTimeout))
	h.serveConn(conn, start)
}

// serveConn is ServeConn with the read deadline already set
func (h *Handler) serveConn(conn net.Conn, start time.Time) {
	lc := lifecycle{state: StateAccepted}
	buf := h.bytes.Get(h.opts.MaxRequestSize)

	log := h.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()

	defer func() {
		if lc.advance(StateClosed) {
			h.bytes.Put(buf)
			conn.Close()
			log.Debug().Dur("dur", time.Since(start)).Msg("closed")
		}
	}()

	lc.advance(StateReading)

	n, err := readRequest(conn, buf)
	if err != nil {
		if errors.Is(err, ErrPeerClosed) {
			log.Debug().Msg("peer closed before sending a request")
		} else {
			log.Debug().Err(err).Msg("read failed")
		}
		return
	}

	resp := h.Serve(buf[:n])
	defer resp.Release()
	lc.advance(StateParsed)

	lc.advance(StateResponding)
	conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	if _, err := conn.Write(resp.Data); err != nil {
		log.Warn().Err(err).Msg("write failed")
		return
	}
	linger(conn)

	log.Debug().
		Str("method", resp.Method).
		Str("path", resp.Path).
		Int("status", int(resp.Status)).
		Int("bytes", resp.BodyLen).
		Msg("served")
}

// linger half-closes conn and discards what the peer still sends, up to
// lingerBytes or lingerTimeout. Closing with unread bytes queued would
// send a reset that can destroy the response in flight.
func linger(conn net.Conn) {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}
	conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	io.Copy(io.Discard, io.LimitReader(conn, lingerBytes))
}

// readRequest fills buf until it holds a full request line, is full, or
// the peer stops sending. A peer that closes without sending anything
// yields ErrPeerClosed.
func readRequest(r io.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if http.LineComplete(buf[total-n : total]) {
			return total, nil
		}
		if err == io.EOF {
			if total == 0 {
				return 0, ErrPeerClosed
			}
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
