package http

import (
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
)

// Status is the outcome sent to the client
type Status int

const (
	StatusOK       Status = fasthttp.StatusOK
	StatusNotFound Status = fasthttp.StatusNotFound
)

// String returns the reason phrase
func (s Status) String() string {
	return fasthttp.StatusMessage(int(s))
}

const (
	protoPrefix      = "HTTP/1.1 "
	headerType       = "Content-Type: text/html\r\n"
	headerLength     = "Content-Length: "
	headerConnection = "Connection: close\r\n"
	crlf             = "\r\n"
)

var ErrBufferOverflow = errors.New("response buffer overflow")

// ResponseBuffer is a length-tracked byte buffer with a hard capacity.
// A write that does not fit is dropped and the error sticks: every later
// write is a no-op and Err reports the first overflow.
type ResponseBuffer struct {
	buf []byte
	err error
}

// NewResponseBuffer wraps dst, reusing its storage from offset zero
func NewResponseBuffer(dst []byte) *ResponseBuffer {
	return &ResponseBuffer{buf: dst[:0]}
}

func (b *ResponseBuffer) Len() int { return len(b.buf) }

func (b *ResponseBuffer) Cap() int { return cap(b.buf) }

func (b *ResponseBuffer) Bytes() []byte { return b.buf }

func (b *ResponseBuffer) Err() error { return b.err }

func (b *ResponseBuffer) reserve(n int) bool {
	if b.err != nil {
		return false
	}
	if len(b.buf)+n > cap(b.buf) {
		b.err = fmt.Errorf("%w: need %d, have %d", ErrBufferOverflow, len(b.buf)+n, cap(b.buf))
		return false
	}
	return true
}

func (b *ResponseBuffer) Write(p []byte) (int, error) {
	if !b.reserve(len(p)) {
		return 0, b.err
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *ResponseBuffer) WriteString(s string) (int, error) {
	if !b.reserve(len(s)) {
		return 0, b.err
	}
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// WriteUint appends n in decimal
func (b *ResponseBuffer) WriteUint(n int) error {
	if !b.reserve(decimalLen(n)) {
		return b.err
	}
	b.buf = fasthttp.AppendUint(b.buf, n)
	return nil
}

// ResponseSize returns the exact number of bytes BuildResponse emits
// for a body of bodyLen bytes.
func ResponseSize(status Status, bodyLen int) int {
	return len(protoPrefix) + decimalLen(int(status)) + 1 + len(status.String()) + len(crlf) +
		len(headerType) +
		len(headerLength) + decimalLen(bodyLen) + len(crlf) +
		len(headerConnection) +
		len(crlf) +
		bodyLen
}

// BuildResponse frames status and body into dst. dst must have a capacity
// of at least ResponseSize(status, len(body)); nothing is reallocated.
func BuildResponse(status Status, body []byte, dst []byte) ([]byte, error) {
	need := ResponseSize(status, len(body))
	if cap(dst) < need {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrBufferOverflow, need, cap(dst))
	}

	b := NewResponseBuffer(dst)
	b.WriteString(protoPrefix)
	b.WriteUint(int(status))
	b.WriteString(" ")
	b.WriteString(status.String())
	b.WriteString(crlf)
	b.WriteString(headerType)
	b.WriteString(headerLength)
	b.WriteUint(len(body))
	b.WriteString(crlf)
	b.WriteString(headerConnection)
	b.WriteString(crlf)
	b.Write(body)

	if err := b.Err(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// decimalLen returns the number of digits of a non-negative int
func decimalLen(n int) int {
	if n <= 0 {
		return 1
	}
	digits := 0
	for n > 0 {
		digits++
		n /= 10
	}
	return digits
}
