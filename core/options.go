package core

import (
	"log/slog"
	"time"
)

// Option configures a NoteCapturer.
type Option func(*NoteCapturer)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(c *NoteCapturer) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithSleep replaces time.Sleep for the on, release and between waits.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *NoteCapturer) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}
