package mfm

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults for the valuation fan-out.
const (
	DefaultWorkers     = 8
	DefaultCallTimeout = 10 * time.Second
)

type settings struct {
	logger      zerolog.Logger
	workers     int
	callTimeout time.Duration
	now         func() time.Time
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:      zerolog.Nop(),
		workers:     DefaultWorkers,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures the components of this package.
// Each constructor only reads the options that apply to it.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithWorkers bounds the number of symbols valued concurrently.
func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithCallTimeout bounds every single oracle call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithClock replaces time.Now, for "today" and last modified markers.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}
