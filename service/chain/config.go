package chain

import (
	"time"
)

// Config contains optional parameters for the node client.
type Config struct {
	RetryLimit uint
	WaitMin    time.Duration
	WaitMax    time.Duration
}

// DefaultConfig is the default configuration for the node client.
var DefaultConfig = Config{
	RetryLimit: 8,
	WaitMin:    250 * time.Millisecond,
	WaitMax:    8 * time.Second,
}

// Option is an option to configure the node client.
type Option func(*Config)

// WithRetryLimit configures how often a transient failure is retried before
// the call fails with ErrUnavailable.
func WithRetryLimit(limit uint) Option {
	return func(cfg *Config) {
		cfg.RetryLimit = limit
	}
}

// WithWaitInterval configures the bounds of the exponential backoff between
// retries of transient failures.
func WithWaitInterval(min time.Duration, max time.Duration) Option {
	return func(cfg *Config) {
		cfg.WaitMin = min
		cfg.WaitMax = max
	}
}
