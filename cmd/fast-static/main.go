package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/searchktools/fast-static/app"
	"github.com/searchktools/fast-static/config"
)

func main() {
	cfg, err := config.New(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := app.NewLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := app.New(cfg, logger).RunWithSignals(); err != nil {
		logger.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}
