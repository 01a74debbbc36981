// Package retry runs one logical exchange against the reasoning service with
// bounded exponential backoff, observing cancellation before every attempt,
// during the attempt and during every backoff wait.
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
)

// Policy bounds the attempt loop. The wait before attempt n+1 is
// BaseDelay * 2^n, where n is the number of attempts already made.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy is 1 call plus 4 retries waiting 2s, 4s, 8s and 16s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait after the given number of completed attempts.
func (p Policy) Delay(attempts int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempts))
}

// Ceiling is the total backoff time when every attempt fails.
func (p Policy) Ceiling() time.Duration {
	var total time.Duration
	for n := 1; n < p.MaxAttempts; n++ {
		total += p.Delay(n)
	}
	return total
}

// Waiter blocks for d or until ctx is done, whichever comes first.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// TimerWaiter waits on a real timer.
type TimerWaiter struct{}

func (TimerWaiter) Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State of the attempt machine.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateRetryWait
	StateSuccess
	StateExhausted
	StateCanceled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateRetryWait:
		return "retry_wait"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	case StateCanceled:
		return "canceled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// StatusError reports a non-success HTTP status from one attempt.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return http.StatusText(e.StatusCode) + ": " + e.Err.Error()
	}
	return http.StatusText(e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an attempt error that must be returned as-is, without retry
// and without being reclassified as a transport failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Runner drives the attempt machine.
type Runner struct {
	Policy Policy
	Waiter Waiter
	Log    logrus.FieldLogger

	// OnTransition, when set, observes every state change. Tests use it.
	OnTransition func(from, to State, attempt int)
}

// New returns a Runner with the default policy and a real timer.
func New(log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{Policy: DefaultPolicy(), Waiter: TimerWaiter{}, Log: log}
}

// Do calls fn until it succeeds, fails permanently, the policy is exhausted or
// ctx is done. Errors come back classified as domain Canceled, TransportError,
// or the unwrapped Permanent error.
func Do[T any](ctx context.Context, r *Runner, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	p := r.Policy
	if p.MaxAttempts <= 0 {
		p = DefaultPolicy()
	}
	waiter := r.Waiter
	if waiter == nil {
		waiter = TimerWaiter{}
	}
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	state := StateIdle
	move := func(to State, attempt int) {
		if r.OnTransition != nil {
			r.OnTransition(state, to, attempt)
		}
		state = to
	}

	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 0; attempt < p.MaxAttempts; {
		if err := ctx.Err(); err != nil {
			move(StateCanceled, attempt)
			return zero, domain.Canceled(err)
		}

		move(StateAttempting, attempt+1)
		out, err := fn(ctx, attempt+1)
		attempt++
		if err == nil {
			move(StateSuccess, attempt)
			return out, nil
		}

		if cerr := ctx.Err(); cerr != nil {
			move(StateCanceled, attempt)
			return zero, domain.Canceled(cerr)
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			move(StateFailed, attempt)
			return zero, perm.err
		}

		lastErr = err
		lastStatus = 0
		var se *StatusError
		if errors.As(err, &se) {
			lastStatus = se.StatusCode
			if !se.Retryable() {
				move(StateFailed, attempt)
				return zero, &domain.TransportError{StatusCode: se.StatusCode, Attempts: attempt, Err: err}
			}
		}

		if attempt >= p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"status":  lastStatus,
			"delay":   delay.String(),
		}).WithError(err).Warn("reasoning service call failed, retrying")

		move(StateRetryWait, attempt)
		if werr := waiter.Wait(ctx, delay); werr != nil {
			move(StateCanceled, attempt)
			if cerr := ctx.Err(); cerr != nil {
				return zero, domain.Canceled(cerr)
			}
			return zero, domain.Canceled(werr)
		}
	}

	move(StateExhausted, p.MaxAttempts)
	return zero, &domain.TransportError{StatusCode: lastStatus, Attempts: p.MaxAttempts, Err: lastErr}
}
