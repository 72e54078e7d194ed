package core

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// newDocRoot writes files under a fresh "www" directory and a secret file
// beside it, outside the root.
func newDocRoot(t *testing.T, files map[string]string) string {
	t.Helper()

	base := t.TempDir()
	dir := filepath.Join(base, "www")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "secret.txt"), []byte("top secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var defaultSite = map[string]string{
	"index.html":    "hi",
	"404.html":      "<h1>not here</h1>",
	"docs/a.html":   "<p>a</p>",
	"assets/app.js": "console.log(1)",
}

func newTestHandler(t *testing.T, files map[string]string, opts Options) *Handler {
	t.Helper()

	opts.Root = newDocRoot(t, files)
	h, err := NewHandler(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func decodeResponse(t *testing.T, raw []byte) *fasthttp.Response {
	t.Helper()

	resp := &fasthttp.Response{}
	if err := resp.Read(bufio.NewReader(bytes.NewReader(raw))); err != nil {
		t.Fatalf("Failed to decode response %q: %v", raw, err)
	}
	return resp
}

func serve(t *testing.T, h *Handler, raw string) ([]byte, *fasthttp.Response) {
	t.Helper()

	resp := h.Serve([]byte(raw))
	defer resp.Release()

	out := append([]byte(nil), resp.Data...)
	return out, decodeResponse(t, out)
}

func TestServeIndex(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{})

	raw, resp := serve(t, h, "GET / HTTP/1.1\r\n\r\n")

	if resp.StatusCode() != 200 {
		t.Errorf("Expected 200, got %d", resp.StatusCode())
	}
	if resp.Header.ContentLength() != 2 || string(resp.Body()) != "hi" {
		t.Errorf("Expected body \"hi\" with length 2, got %q (%d)", resp.Body(), resp.Header.ContentLength())
	}
	if !bytes.Contains(raw, []byte("Content-Length: 2\r\n")) {
		t.Errorf("Missing exact Content-Length header in %q", raw)
	}
}

func TestServeRoundTrip(t *testing.T) {
	big := strings.Repeat("0123456789", 50000)
	files := map[string]string{
		"index.html":   "hi",
		"404.html":     "nope",
		"big.html":     big,
		"empty.html":   "",
		"nested/x.css": "a{}",
	}
	h := newTestHandler(t, files, Options{})

	for name, content := range files {
		if name == "404.html" {
			continue
		}
		_, resp := serve(t, h, "GET /"+name+"?cache=1 HTTP/1.1\r\nHost: localhost\r\n\r\n")

		if resp.StatusCode() != 200 {
			t.Errorf("%s: expected 200, got %d", name, resp.StatusCode())
			continue
		}
		if resp.Header.ContentLength() != len(content) {
			t.Errorf("%s: expected Content-Length %d, got %d", name, len(content), resp.Header.ContentLength())
		}
		if string(resp.Body()) != content {
			t.Errorf("%s: body mismatch (%d bytes)", name, len(resp.Body()))
		}
	}
}

func TestServeNotFound(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{})

	raw, resp := serve(t, h, "GET /missing.txt HTTP/1.1\r\n\r\n")

	if resp.StatusCode() != 404 {
		t.Errorf("Expected 404, got %d", resp.StatusCode())
	}
	if string(resp.Body()) != defaultSite["404.html"] {
		t.Errorf("Expected the not-found document, got %q", resp.Body())
	}
	if !bytes.HasSuffix(raw, []byte("\r\n\r\n"+defaultSite["404.html"])) {
		t.Errorf("Unexpected bytes after the not-found document: %q", raw)
	}
}

func TestServeNotFoundWithoutDocument(t *testing.T) {
	h := newTestHandler(t, map[string]string{"index.html": "hi"}, Options{})

	raw, resp := serve(t, h, "GET /missing.txt HTTP/1.1\r\n\r\n")

	if resp.StatusCode() != 404 {
		t.Errorf("Expected 404, got %d", resp.StatusCode())
	}
	if len(resp.Body()) != 0 || resp.Header.ContentLength() != 0 {
		t.Errorf("Expected empty 404, got %q", resp.Body())
	}
	if !bytes.HasSuffix(raw, []byte("Content-Length: 0\r\nConnection: close\r\n\r\n")) {
		t.Errorf("Expected nothing after headers, got %q", raw)
	}
}

func TestServeMissingIndex(t *testing.T) {
	h := newTestHandler(t, map[string]string{"404.html": "gone"}, Options{})

	_, resp := serve(t, h, "GET / HTTP/1.1\r\n\r\n")
	if resp.StatusCode() != 404 || string(resp.Body()) != "gone" {
		t.Errorf("Expected 404 with not-found document, got %d %q", resp.StatusCode(), resp.Body())
	}
}

func TestServeRejects(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{MaxFieldLength: 64})

	tests := map[string]string{
		"traversal":         "GET /../../etc/passwd HTTP/1.1\r\n\r\n",
		"traversal sibling": "GET /../secret.txt HTTP/1.1\r\n\r\n",
		"encoded stays put": "GET /..%2fsecret.txt HTTP/1.1\r\n\r\n",
		"post":              "POST / HTTP/1.1\r\n\r\n",
		"head":              "HEAD / HTTP/1.1\r\n\r\n",
		"lowercase get":     "get / HTTP/1.1\r\n\r\n",
		"field too long":    "GET /" + strings.Repeat("a", 100) + " HTTP/1.1\r\n\r\n",
		"malformed":         "\r\n\r\n",
		"method only":       "GET\r\n",
		"directory":         "GET /docs HTTP/1.1\r\n\r\n",
		"empty path":        "GET ?q=1 HTTP/1.1\r\n\r\n",
		"relative target":   "GET docs/a.html HTTP/1.1\r\n\r\n",
		"relative index":    "GET index.html HTTP/1.1\r\n\r\n",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, resp := serve(t, h, raw)
			if resp.StatusCode() != 404 {
				t.Errorf("Expected 404, got %d", resp.StatusCode())
			}
			if bytes.Contains(resp.Body(), []byte("top secret")) {
				t.Error("Served a file outside the document root")
			}
			if string(resp.Body()) != defaultSite["404.html"] {
				t.Errorf("Expected the not-found document, got %q", resp.Body())
			}
		})
	}
}

func TestServeIdempotent(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{})

	for _, raw := range []string{
		"GET /docs/a.html HTTP/1.1\r\n\r\n",
		"GET /missing HTTP/1.1\r\n\r\n",
	} {
		first, _ := serve(t, h, raw)
		second, _ := serve(t, h, raw)
		if !bytes.Equal(first, second) {
			t.Errorf("Responses differ for %q:\n%q\n%q", raw, first, second)
		}
	}
}

func TestResponseReleaseOnce(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{})

	before := h.buffers.Stats().TotalGets
	resp := h.Serve([]byte("GET / HTTP/1.1\r\n\r\n"))
	resp.Release()
	resp.Release()

	if resp.Data != nil {
		t.Error("Expected Data to be dropped after Release")
	}
	if got := h.buffers.Stats().TotalGets - before; got != 1 {
		t.Errorf("Expected one response buffer per request, got %d", got)
	}
}

func TestFileBuffersReturned(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{})

	for _, raw := range []string{
		"GET / HTTP/1.1\r\n\r\n",
		"GET /missing HTTP/1.1\r\n\r\n",
		"POST / HTTP/1.1\r\n\r\n",
	} {
		h.Serve([]byte(raw)).Release()
	}

	stats := h.PoolStats()
	if stats.Files.Gets != stats.Files.Puts {
		t.Errorf("File buffers leaked: %d gets, %d puts", stats.Files.Gets, stats.Files.Puts)
	}
	if stats.Responses.TotalGets != 3 {
		t.Errorf("Expected 3 response buffers, got %d", stats.Responses.TotalGets)
	}
}

func TestReadRequest(t *testing.T) {
	buf := make([]byte, 64)

	n, err := readRequest(iotest.OneByteReader(strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\n\r\n")), buf)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(buf[:n]) != "GET / HTTP/1.1\r\n" {
		t.Errorf("Expected to stop after the request line, got %q", buf[:n])
	}

	if _, err := readRequest(strings.NewReader(""), buf); !errors.Is(err, ErrPeerClosed) {
		t.Errorf("Expected ErrPeerClosed, got %v", err)
	}

	n, err = readRequest(strings.NewReader("GET /partial"), buf)
	if err != nil || string(buf[:n]) != "GET /partial" {
		t.Errorf("Expected partial request at EOF, got %q, %v", buf[:n], err)
	}

	small := make([]byte, 8)
	n, err = readRequest(strings.NewReader("GET /very/long/path HTTP/1.1\r\n"), small)
	if err != nil || n != len(small) {
		t.Errorf("Expected a full buffer, got %d bytes, %v", n, err)
	}
}

func TestLifecycle(t *testing.T) {
	lc := lifecycle{}

	if !lc.advance(StateReading) || lc.State() != StateReading {
		t.Fatal("Expected Accepted -> Reading")
	}
	if lc.advance(StateAccepted) {
		t.Error("Backward transition must be refused")
	}
	if !lc.advance(StateClosed) {
		t.Fatal("Closed must be reachable from Reading")
	}
	if lc.advance(StateClosed) {
		t.Error("Closed must be entered only once")
	}
	if lc.advance(StateResponding) {
		t.Error("Nothing follows Closed")
	}
	if lc.State().String() != "closed" {
		t.Errorf("Expected closed, got %s", lc.State())
	}
}

func TestServeConn(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{})

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		h.ServeConn(server)
		close(done)
	}()

	if _, err := client.Write([]byte("GET /docs/a.html HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	resp := decodeResponse(t, raw)
	if resp.StatusCode() != 200 || string(resp.Body()) != "<p>a</p>" {
		t.Errorf("Unexpected response %q", raw)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeConn did not return")
	}

	stats := h.bytes.Stats()
	if stats.Gets != stats.Puts {
		t.Errorf("Buffers leaked: %d gets, %d puts", stats.Gets, stats.Puts)
	}
}

func TestServeConnPeerClosed(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{})

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		h.ServeConn(server)
		close(done)
	}()
	client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeConn did not return after peer close")
	}
}

func TestServeConnReadTimeout(t *testing.T) {
	h := newTestHandler(t, defaultSite, Options{ReadTimeout: 50 * time.Millisecond})

	client, server := net.Pipe()
	defer client.Close()
	done := make(chan struct{})
	go func() {
		h.ServeConn(server)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stalled connection was not closed by the read timeout")
	}

	raw, _ := io.ReadAll(client)
	if len(raw) != 0 {
		t.Errorf("Expected no response on timeout, got %q", raw)
	}
}
