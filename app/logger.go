package app

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchktools/fast-static/config"
)

// NewLogger builds the process logger: console output while developing,
// JSON lines in production.
func NewLogger(cfg *config.Config, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}

	if !cfg.IsProduction() {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "fast-static").
		Logger(), nil
}
