//go:build !linux && !darwin

package app

import (
	"context"
	"fmt"
	"net"
)

// Listen opens a plain TCP listener
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}
