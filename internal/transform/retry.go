package transform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/booknest/internal/llm"
)

const (
	DefaultAttempts   = 3
	DefaultWait       = 10 * time.Second
	DefaultShortDelay = 3 * time.Second
)

// SleepFunc pauses for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the real SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExhaustedError wraps the last failure once every attempt has been used.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Retrier re-runs a failed call. A quota failure on attempt k waits Wait*k;
// any other failure waits ShortDelay. Nothing is slept after the last attempt.
type Retrier struct {
	Attempts   int
	Wait       time.Duration
	ShortDelay time.Duration
	Sleep      SleepFunc
	Log        *slog.Logger
}

func DefaultRetrier() Retrier {
	return Retrier{
		Attempts:   DefaultAttempts,
		Wait:       DefaultWait,
		ShortDelay: DefaultShortDelay,
	}
}

// Do runs call until it succeeds or the attempts run out. It never returns
// a Go error; the last failure is wrapped in an ExhaustedError inside the
// Result.
func (r Retrier) Do(ctx context.Context, call func(context.Context) Result) Result {
	attempts := max(r.Attempts, 1)
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	var last Result
	for attempt := 1; attempt <= attempts; attempt++ {
		last = call(ctx)
		if last.Err == nil {
			return last
		}
		if attempt == attempts {
			break
		}

		delay := r.ShortDelay
		quota := llm.IsQuotaExceeded(last.Err)
		if quota {
			delay = r.Wait * time.Duration(attempt)
		}
		log.Warn("remote call failed, backing off",
			"attempt", attempt,
			"max_attempts", attempts,
			"quota", quota,
			"delay", delay,
			"error", last.Err,
		)
		if err := sleep(ctx, delay); err != nil {
			return Result{Err: fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)}
		}
	}
	return Result{Err: &ExhaustedError{Attempts: attempts, Err: last.Err}}
}
