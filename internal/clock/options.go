package clock

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is the sleep between background samples.
const DefaultPollInterval = time.Millisecond

// Option configures a ScaledClock at construction.
type Option func(*ScaledClock)

// WithClock sets the real-time source sampled by the clock.
// Tests pass a clockwork fake clock.
func WithClock(src clockwork.Clock) Option {
	return func(c *ScaledClock) {
		if src != nil {
			c.clock = src
		}
	}
}

// WithPollInterval sets the polling period. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(c *ScaledClock) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ScaledClock) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithListener attaches a listener at construction.
func WithListener(l Listener) Option {
	return func(c *ScaledClock) {
		c.addListenerLocked(l)
	}
}
