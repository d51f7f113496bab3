package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted indicates the attempt budget ran out before the condition held.
var ErrExhausted = errors.New("poll attempts exhausted")

// Config bounds a polling loop.
type Config struct {
	Attempts int
	Delay    time.Duration
	Sleep    func(context.Context, time.Duration) error
}

// Run invokes fn until it returns nil, sleeping Delay between attempts.
// A non-nil return from fn is retryable whether it signals "not yet" or a
// transport error; no state carries across attempts besides the counter.
// The last failure is returned wrapped in ErrExhausted.
func Run(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	if cfg.Attempts <= 0 {
		return fmt.Errorf("poll: attempts must be positive, got %d", cfg.Attempts)
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt < cfg.Attempts {
			if err := sleep(ctx, cfg.Delay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, cfg.Attempts, lastErr)
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
