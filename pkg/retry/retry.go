package retry

import (
	"context"
	"time"
)

// Config controls retry behaviour for a fallible operation.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the base wait between attempts. The wait grows linearly:
	// Delay after the first failure, 2*Delay after the second, and so on.
	Delay time.Duration

	// RetryIf decides whether an error is worth retrying. nil retries
	// every error.
	RetryIf func(error) bool

	// OnRetry is called before each wait, useful for logging.
	OnRetry func(attempt int, err error)
}

// DefaultConfig suits most exchange API calls.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, Delay: 2 * time.Second}
}

func (c *Config) validate() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
}

// Do runs op until it succeeds or attempts are exhausted, waiting
// Delay*attempt between tries. The last error is always surfaced; a
// non-retryable error (per RetryIf) is returned immediately.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	cfg.validate()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		select {
		case <-time.After(cfg.Delay * time.Duration(attempt)):
		case <-ctx.Done():
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// Run is Do for operations with no return value.
func Run(ctx context.Context, cfg Config, op func(context.Context) error) error {
	_, err := Do(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
