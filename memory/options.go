package memory

import (
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Option configures a memory tier.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	now       func() time.Time
	telemetry *Telemetry
}

// WithLogger sets the logger used for eviction and lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces time.Now. Mostly useful in tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTelemetry records eviction and search counters.
func WithTelemetry(t *Telemetry) Option {
	return func(o *options) {
		o.telemetry = t
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// sequence mints ids of the form <prefix><n>, unique per instance.
type sequence struct {
	prefix string
	n      atomic.Uint64
}

func (s *sequence) next() string {
	return s.prefix + strconv.FormatUint(s.n.Add(1), 10)
}
