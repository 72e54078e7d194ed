package core

import (
	"errors"
	"fmt"
	"time"
)

// Strategy selects how accepted connections are driven
type Strategy string

const (
	// StrategyReactor runs every connection on one epoll/kqueue loop
	StrategyReactor Strategy = "reactor"
	// StrategyWorker hands every connection to its own worker
	StrategyWorker Strategy = "worker"
)

// Defaults applied by Options.withDefaults
const (
	DefaultMaxRequestSize = 65536
	DefaultMaxFieldLength = 255
	DefaultReadTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 30 * time.Second

	// pollInterval bounds how long the reactor sleeps between timeout sweeps
	pollInterval = 100 * time.Millisecond

	// lingerTimeout and lingerBytes bound the discard of unread request
	// bytes after the response, so close does not turn into a reset
	lingerTimeout = 500 * time.Millisecond
	lingerBytes   = 256 << 10
)

// Error definitions
var (
	// ErrPeerClosed is a zero-byte read before any request bytes
	ErrPeerClosed = errors.New("peer closed connection")
	// ErrWouldBlock means no data yet on a non-blocking socket
	ErrWouldBlock = errors.New("operation would block")

	ErrUnknownStrategy     = errors.New("unknown dispatch strategy")
	ErrUnsupportedPlatform = errors.New("reactor strategy needs epoll or kqueue")
)

// ParseStrategy validates a strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyReactor, StrategyWorker:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}
