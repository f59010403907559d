// Package retry wraps filesystem operations in bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"
)

// Defaults applied by DefaultPolicy.
const (
	DefaultMaxRetries = 5
	DefaultBase       = time.Second
	DefaultCap        = 30 * time.Second
)

// ErrPermanent marks an error that must not be retried. Wrap logical
// precondition failures with it, or define sentinels that wrap it.
var ErrPermanent = errors.New("permanent failure")

// Policy describes how many times and how long to retry.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	Base time.Duration
	Cap  time.Duration
}

// DefaultPolicy returns five retries with 1s base and 30s cap.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, Base: DefaultBase, Cap: DefaultCap}
}

// Outcome is the structured result of Do.
type Outcome struct {
	Success    bool
	RetryCount int
	Elapsed    time.Duration
	Err        error
}

// Delay returns the sleep before retry number attempt (zero based):
// min(Base * 2^attempt, Cap).
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	d := p.Base
	for range attempt {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}

// Do runs op until it succeeds, returns a non-transient error, the retry
// budget is exhausted, or ctx is done. Sleeps between attempts observe ctx.
func (p Policy) Do(ctx context.Context, op func() error) Outcome {
	start := time.Now()
	retries := max(p.MaxRetries, 0)

	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{RetryCount: attempt, Elapsed: time.Since(start), Err: ctxErr}
		}

		err = op()
		if err == nil {
			return Outcome{Success: true, RetryCount: attempt, Elapsed: time.Since(start)}
		}
		if !IsTransient(err) || attempt >= retries {
			return Outcome{RetryCount: attempt, Elapsed: time.Since(start), Err: err}
		}

		if d := p.Delay(attempt); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Outcome{RetryCount: attempt, Elapsed: time.Since(start), Err: err}
			case <-timer.C:
			}
		}
	}
}

// IsTransient reports whether err belongs to the retryable class: I/O and
// permission failures from the operating system. Logical failures
// (ErrPermanent, already exists, not found) and cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, fs.ErrExist) ||
		errors.Is(err, fs.ErrNotExist) {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno != syscall.EXDEV && errno != syscall.ENOTDIR && errno != syscall.EISDIR
	}

	var pathErr *fs.PathError
	var linkErr *os.LinkError
	return errors.As(err, &pathErr) || errors.As(err, &linkErr)
}
