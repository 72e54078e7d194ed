package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchktools/fast-static/core"
)

// EnvPrefix prefixes every environment variable read by New
const EnvPrefix = "FAST_STATIC"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
// Tags name the Manager keys; a flag "-read-timeout" maps to "read.timeout"
// and FAST_STATIC_READ_TIMEOUT to the same key.
type Config struct {
	Host             string        `config:"host"`
	Port             int           `config:"port"`
	Root             string        `config:"dir"`
	DefaultDocument  string        `config:"index"`
	NotFoundDocument string        `config:"not.found"`
	Strategy         string        `config:"strategy"`
	ReadTimeout      time.Duration `config:"read.timeout"`
	WriteTimeout     time.Duration `config:"write.timeout"`
	MaxRequestSize   int           `config:"max.request"`
	MaxFieldLength   int           `config:"max.field"`
	MaxConnections   int           `config:"max.conns"`
	Workers          int           `config:"workers"`
	Env              string        `config:"env"`
	LogLevel         string        `config:"log.level"`

	// Collector tuning; zero keeps the runtime default
	GCPercent   int   `config:"gc.percent"`
	MemoryLimit int64 `config:"memory.limit"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             8080,
		Root:             ".",
		DefaultDocument:  "index.html",
		NotFoundDocument: "404.html",
		Strategy:         string(core.StrategyReactor),
		ReadTimeout:      core.DefaultReadTimeout,
		WriteTimeout:     core.DefaultWriteTimeout,
		MaxRequestSize:   core.DefaultMaxRequestSize,
		MaxFieldLength:   core.DefaultMaxFieldLength,
		Env:              "development",
		LogLevel:         "info",
	}
}

// New loads configuration from flags, environment variables and an
// optional JSON file. Later sources win: defaults, then the file, then
// the environment, then flags given explicitly on the command line.
func New(args []string) (*Config, error) {
	def := Default()
	fs := flag.NewFlagSet("fast-static", flag.ContinueOnError)

	file := fs.String("config", "", "JSON configuration file")
	fs.String("host", def.Host, "Address to listen on")
	fs.Int("port", def.Port, "TCP port")
	fs.String("dir", def.Root, "Document root")
	fs.String("index", def.DefaultDocument, "Document served for /")
	fs.String("not-found", def.NotFoundDocument, "Document served with 404 responses")
	fs.String("strategy", def.Strategy, "Connection strategy (reactor/worker)")
	fs.Duration("read-timeout", def.ReadTimeout, "Time allowed to receive the request line")
	fs.Duration("write-timeout", def.WriteTimeout, "Time allowed to send the response")
	fs.Int("max-request", def.MaxRequestSize, "Request buffer size in bytes")
	fs.Int("max-field", def.MaxFieldLength, "Maximum method and path length")
	fs.Int("max-conns", def.MaxConnections, "Maximum concurrent connections (0 = unlimited)")
	fs.Int("workers", def.Workers, "Worker pool size for the worker strategy (0 = goroutine per connection)")
	fs.String("env", def.Env, "Environment (development/production)")
	fs.String("log-level", def.LogLevel, "Log level (debug/info/warn/error)")
	fs.Int("gc-percent", def.GCPercent, "GOGC target percentage (0 = runtime default)")
	fs.Int64("memory-limit", def.MemoryLimit, "Soft memory limit in bytes (0 = none)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	m := NewManager()
	if *file != "" {
		if err := m.LoadFromJSON(*file); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnv(EnvPrefix, os.Environ())

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			return
		}
		m.Set(flagKey(f.Name), f.Value.String())
	})

	cfg := Default()
	if err := m.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", ".")
}

// Validate reports every problem at once, wrapped in ErrInvalidConfig
func (c *Config) Validate() error {
	var errs []error

	if c.Root == "" {
		errs = append(errs, errors.New("document root is empty"))
	} else if st, err := os.Stat(c.Root); err != nil {
		errs = append(errs, fmt.Errorf("document root: %w", err))
	} else if !st.IsDir() {
		errs = append(errs, fmt.Errorf("document root %q is not a directory", c.Root))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := core.ParseStrategy(c.Strategy); err != nil {
		errs = append(errs, err)
	}

	for name, d := range map[string]time.Duration{
		"read timeout":  c.ReadTimeout,
		"write timeout": c.WriteTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}
	for name, n := range map[string]int{
		"max request size": c.MaxRequestSize,
		"max field length": c.MaxFieldLength,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, n))
		}
	}
	if c.MaxConnections < 0 || c.Workers < 0 {
		errs = append(errs, errors.New("max connections and workers cannot be negative"))
	}
	if c.GCPercent < 0 || c.MemoryLimit < 0 {
		errs = append(errs, errors.New("gc percent and memory limit cannot be negative"))
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	for _, doc := range []string{c.DefaultDocument, c.NotFoundDocument} {
		if doc == "" || strings.ContainsAny(doc, `/\`) || doc == "." || doc == ".." {
			errs = append(errs, fmt.Errorf("document name %q must be a plain file name", doc))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction reports whether Env selects production behavior
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
