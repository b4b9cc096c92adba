package util

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed
var ErrRetriesExhausted = errors.New("retries exhausted")

// Backoff is the redial schedule for RPC endpoints. Contract reads inside a
// flow are never retried: their failure goes to the user as is.
type Backoff struct {
	Retries int           // attempts after the first; negative retries until ctx ends
	Base    time.Duration // delay before the first retry
	Max     time.Duration // cap on any single delay, 0 for none
	Factor  float64       // growth per attempt, 2 when unset
	Jitter  float64       // +/- fraction applied to each delay
}

// DefaultBackoff returns the schedule used when dialing an endpoint
func DefaultBackoff() *Backoff {
	return &Backoff{
		Retries: 3,
		Base:    250 * time.Millisecond,
		Max:     5 * time.Second,
		Factor:  2,
		Jitter:  0.1,
	}
}

// Delay returns the wait before retry number n (1-based).
func (b *Backoff) Delay(n int) time.Duration {
	factor := b.Factor
	if factor <= 0 {
		factor = 2
	}
	d := float64(b.Base)
	for i := 1; i < n; i++ {
		d *= factor
		if b.Max > 0 && d > float64(b.Max) {
			break
		}
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * (2*rand.Float64() - 1)
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	return time.Duration(d)
}

// permanentError stops Retry on the first occurrence
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Retry gives up immediately, e.g. an endpoint that
// serves the wrong chain.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !IsPermanent(err)
}

// Retry calls fn until it succeeds, returns a permanent or context error,
// or the schedule runs out. It returns the number of attempts made.
func Retry[T any](ctx context.Context, b *Backoff, fn func() (T, error)) (T, int, error) {
	if b == nil {
		b = DefaultBackoff()
	}
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, attempt, nil
		}
		if !retryable(err) {
			return zero, attempt, err
		}
		if b.Retries >= 0 && attempt > b.Retries {
			return zero, attempt, errors.Join(ErrRetriesExhausted, err)
		}

		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt, errors.Join(ctx.Err(), err)
		case <-timer.C:
		}
	}
}
