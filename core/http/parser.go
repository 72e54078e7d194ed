package http

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
)

// MethodGet is the only retrieval method served
const MethodGet = fasthttp.MethodGet

// DefaultMaxFieldLength bounds method and target when the caller passes 0
const DefaultMaxFieldLength = 255

var (
	ErrMalformedRequest = errors.New("malformed request line")
	ErrFieldTooLong     = errors.New("request field too long")
)

// ParseRequest extracts the method and target of a request line.
//
// Only the first two whitespace-delimited tokens are read. The protocol
// version, header lines and body are ignored. The target is split on its
// first '?' into Path and Query.
func ParseRequest(data []byte, maxField int) (*Request, error) {
	if maxField <= 0 {
		maxField = DefaultMaxFieldLength
	}

	method, rest := nextToken(data)
	if len(method) == 0 {
		return nil, ErrMalformedRequest
	}
	target, _ := nextToken(rest)
	if len(target) == 0 {
		return nil, fmt.Errorf("%w: missing target", ErrMalformedRequest)
	}

	if len(method) > maxField {
		return nil, fmt.Errorf("%w: method is %d bytes, limit %d", ErrFieldTooLong, len(method), maxField)
	}
	if len(target) > maxField {
		return nil, fmt.Errorf("%w: target is %d bytes, limit %d", ErrFieldTooLong, len(target), maxField)
	}

	path, query := target, []byte(nil)
	if idx := bytes.IndexByte(target, '?'); idx != -1 {
		path, query = target[:idx], target[idx+1:]
	}
	// Path is either empty or absolute
	if len(path) > 0 && path[0] != '/' {
		return nil, fmt.Errorf("%w: target must start with '/'", ErrMalformedRequest)
	}

	req := AcquireRequest()
	req.Method = string(method)
	req.Path = string(path)
	req.Query = string(query)

	return req, nil
}

// nextToken skips leading whitespace and returns the following
// non-whitespace run plus whatever comes after it.
func nextToken(data []byte) (token, rest []byte) {
	start := 0
	for start < len(data) && isSpace(data[start]) {
		start++
	}
	end := start
	for end < len(data) && !isSpace(data[end]) {
		end++
	}
	return data[start:end], data[end:]
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	}
	return false
}

// LineComplete reports whether data holds a full request line, meaning
// the parser will not see more tokens by waiting for more bytes.
func LineComplete(data []byte) bool {
	return bytes.IndexByte(data, '\n') != -1
}
