// Package poll repeats a check with exponential backoff until it reports done.
package poll

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config holds polling configuration.
type Config struct {
	MaxAttempts int           // Maximum number of checks (0 = until ctx is done)
	InitialWait time.Duration // Wait after the first check
	MaxWait     time.Duration // Maximum wait between checks
	Multiplier  float64       // Backoff multiplier
	Jitter      float64       // Jitter factor (0-1)
}

// DefaultConfig suits waiting on a query job, which typically takes seconds
// to minutes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 0,
		InitialWait: 2 * time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  1.5,
		Jitter:      0.1,
	}
}

// ErrExhausted is returned when MaxAttempts checks ran without fn reporting done.
type ErrExhausted struct {
	Attempts int
}

func (e ErrExhausted) Error() string {
	return fmt.Sprintf("poll: condition not met after %d attempts", e.Attempts)
}

// Until calls fn until it returns done, returns an error, or ctx is done.
// Errors from fn are not retried.
func Until(ctx context.Context, cfg Config, fn func(ctx context.Context) (bool, error)) error {
	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if cfg.MaxAttempts != 0 && attempt == cfg.MaxAttempts {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		timer := time.NewTimer(Backoff(cfg, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrExhausted{Attempts: cfg.MaxAttempts}
}

// Backoff returns the wait after the given attempt (1-based).
func Backoff(cfg Config, attempt int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	wait := float64(cfg.InitialWait) * math.Pow(multiplier, float64(attempt-1))
	if cfg.MaxWait > 0 && wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	if cfg.Jitter > 0 {
		jitter := wait * cfg.Jitter * (rand.Float64()*2 - 1)
		wait += jitter
	}
	return time.Duration(wait)
}

