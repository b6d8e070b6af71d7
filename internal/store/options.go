package store

import "github.com/jonboulle/clockwork"

// Options holds settings shared by every backend.
type Options struct {
	// Clock stamps UpdatedAt on writes that do not carry a timestamp.
	Clock clockwork.Clock
}

// Option configures a backend.
type Option func(*Options)

// WithClock sets the clock used for write timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// ApplyOptions returns Options with opts applied over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := Options{Clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
