package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/searchktools/fast-static/config"
	"github.com/searchktools/fast-static/core"
	"github.com/searchktools/fast-static/core/pools"
)

// App is one server process: a listener, a handler over the document
// root and the configured dispatch strategy.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// New creates an application instance
func New(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Options maps the configuration onto core options
func (a *App) Options() core.Options {
	return core.Options{
		Root:             a.cfg.Root,
		DefaultDocument:  a.cfg.DefaultDocument,
		NotFoundDocument: a.cfg.NotFoundDocument,
		MaxRequestSize:   a.cfg.MaxRequestSize,
		MaxFieldLength:   a.cfg.MaxFieldLength,
		ReadTimeout:      a.cfg.ReadTimeout,
		WriteTimeout:     a.cfg.WriteTimeout,
		MaxConnections:   a.cfg.MaxConnections,
		Workers:          a.cfg.Workers,
	}
}

// Run listens on the configured address and serves until ctx is done.
// Any setup failure is returned before a single connection is accepted.
func (a *App) Run(ctx context.Context) error {
	ln, err := Listen(ctx, a.cfg.Addr())
	if err != nil {
		return err
	}
	defer ln.Close()

	pools.ApplyGCConfig(pools.GCConfig{
		Percent:     a.cfg.GCPercent,
		MemoryLimit: a.cfg.MemoryLimit,
	})

	err = a.Serve(ctx, ln)

	gc := pools.ReadGCStats()
	a.logger.Debug().
		Uint32("num_gc", gc.NumGC).
		Dur("gc_pause_total", gc.PauseTotal).
		Dur("gc_last_pause", gc.LastPause).
		Uint64("heap_alloc", gc.HeapAlloc).
		Uint64("sys", gc.Sys).
		Int("goroutines", gc.NumGoroutine).
		Msg("runtime stats")

	return err
}

// Serve runs the configured strategy on an existing listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	strategy, err := core.ParseStrategy(a.cfg.Strategy)
	if err != nil {
		return err
	}

	handler, err := core.NewHandler(a.Options(), a.logger)
	if err != nil {
		return err
	}
	defer handler.Close()

	srv, err := core.NewServer(strategy, handler, a.logger)
	if err != nil {
		return err
	}

	a.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("root", a.cfg.Root).
		Str("strategy", string(strategy)).
		Str("env", a.cfg.Env).
		Msg("starting server")

	if err := srv.Serve(ctx, ln); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	a.logger.Info().Object("pools", handler.PoolStats()).Msg("server stopped")
	return nil
}

// RunWithSignals runs until SIGINT or SIGTERM
func (a *App) RunWithSignals() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	context.AfterFunc(ctx, func() {
		a.logger.Info().Msg("signal received, shutting down")
	})

	return a.Run(ctx)
}
