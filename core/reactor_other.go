//go:build !linux && !darwin

package core

import (
	"context"
	"net"

	"github.com/rs/zerolog"
)

// Reactor is unavailable without epoll or kqueue
type Reactor struct{}

func NewReactor(h *Handler, logger zerolog.Logger) *Reactor {
	return &Reactor{}
}

func (r *Reactor) Serve(ctx context.Context, ln net.Listener) error {
	return ErrUnsupportedPlatform
}
