package executor

import "time"

// Defaults applied to zero Config fields.
const (
	DefaultMaxConcurrency = 5
	DefaultPerCallTimeout = 30 * time.Second
	DefaultRetryAttempts  = 3
	DefaultBaseRetryDelay = time.Second

	// MaxRetryDelay caps a single backoff wait.
	MaxRetryDelay = 30 * time.Second
	// MaxJitter bounds the random component added to each wait.
	MaxJitter = time.Second
)

// Config tunes an Executor.
type Config struct {
	MaxConcurrency int
	PerCallTimeout time.Duration
	RetryAttempts  int
	BaseRetryDelay time.Duration
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		PerCallTimeout: DefaultPerCallTimeout,
		RetryAttempts:  DefaultRetryAttempts,
		BaseRetryDelay: DefaultBaseRetryDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.PerCallTimeout <= 0 {
		c.PerCallTimeout = DefaultPerCallTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = DefaultBaseRetryDelay
	}
	return c
}
