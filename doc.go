/*
Package faststatic is a minimal static-file HTTP responder.

Every connection carries exactly one request. The request line is parsed,
the path is mapped onto a file under the document root, the whole file is
read and sent back with a status line and three headers, and the
connection is closed. GET is the only method served; anything that does
not resolve to a readable regular file gets the not-found document with
status 404.

Quick Start

	fast-static -dir ./public -port 8080

or embedded:

	cfg, err := config.New(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	logger, _ := app.NewLogger(cfg, os.Stderr)
	if err := app.New(cfg, logger).RunWithSignals(); err != nil {
		log.Fatal(err)
	}

Strategies

Two dispatch strategies share one request pipeline (core.Handler):

  - reactor: one OS-thread-locked goroutine drives epoll (Linux) or kqueue
    (macOS) with non-blocking sockets
  - worker: blocking accept, each connection served on its own goroutine
    or on a bounded worker pool

Modules

  - app: process lifecycle, logger, listener setup
  - config: flags, environment and JSON configuration
  - core: request pipeline, connection state machine, strategies
  - core/http: request line parser and response builder
  - core/static: path resolution and file loading
  - core/pools: buffer, connection and worker pools
  - core/poller: epoll/kqueue readiness notification

Configuration

Every flag has an environment counterpart: -read-timeout is
FAST_STATIC_READ_TIMEOUT. A JSON file given with -config is applied
first, then the environment, then flags set on the command line.
*/
package faststatic
