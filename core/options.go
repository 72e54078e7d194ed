package core

import "time"

// Options is the immutable configuration handed to the core. Nothing in
// the core reads process-wide state; everything comes through here.
type Options struct {
	Root             string
	DefaultDocument  string
	NotFoundDocument string

	MaxRequestSize int
	MaxFieldLength int

	// ReadTimeout closes connections that have not sent a full request
	// line in time. WriteTimeout bounds sending the response.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxConnections caps open connections; 0 means unlimited
	MaxConnections int
	// Workers sizes the worker strategy's pool; 0 means one goroutine
	// per connection
	Workers int
}

func (o Options) withDefaults() Options {
	if o.DefaultDocument == "" {
		o.DefaultDocument = "index.html"
	}
	if o.NotFoundDocument == "" {
		o.NotFoundDocument = "404.html"
	}
	if o.MaxRequestSize <= 0 {
		o.MaxRequestSize = DefaultMaxRequestSize
	}
	if o.MaxFieldLength <= 0 {
		o.MaxFieldLength = DefaultMaxFieldLength
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	return o
}
