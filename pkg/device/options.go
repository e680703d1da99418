package device

import (
	"time"

	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// Option configures a device transport.
type Option func(*options)

type options struct {
	caps   Capabilities
	logger logging.Logger
	now    func() time.Time
}

func newOptions(component string, opts []Option) options {
	o := options{
		caps: CapAll,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.WithFields(logging.Fields{"component": component})
	}
	return o
}

// WithCapabilities restricts what the device may do.
func WithCapabilities(caps Capabilities) Option {
	return func(o *options) {
		o.caps = caps
	}
}

// WithLogger overrides the device logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the wall clock used for sample timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// unixSeconds converts t to fractional seconds since the epoch.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
