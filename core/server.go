package core

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
)

// Server drives accepted connections of a listener until ctx is done.
// Serve returns nil after a clean shutdown.
type Server interface {
	Serve(ctx context.Context, ln net.Listener) error
}

// NewServer returns the server for a dispatch strategy
func NewServer(strategy Strategy, h *Handler, logger zerolog.Logger) (Server, error) {
	switch strategy {
	case StrategyReactor:
		return NewReactor(h, logger), nil
	case StrategyWorker:
		return NewWorkerServer(h, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}
