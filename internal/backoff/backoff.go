// Package backoff retries transient failures of remote calls.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

// Policy retries an operation with capped exponential backoff and full
// jitter. The zero Policy tries once.
type Policy struct {
	Attempts  int           // total tries, the first included
	Initial   time.Duration // ceiling of the first wait
	Cap       time.Duration // upper bound of any wait; zero means none
	Retryable func(error) bool
}

// Default is the policy used for snapshot storage.
func Default() Policy {
	return Policy{Attempts: 4, Initial: 500 * time.Millisecond, Cap: 10 * time.Second}
}

// IsZero reports whether p was left unset.
func (p Policy) IsZero() bool {
	return p.Attempts == 0 && p.Initial == 0 && p.Cap == 0 && p.Retryable == nil
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls op until it succeeds, fails with an error Retryable rejects, runs
// out of attempts or ctx ends. Non-retryable errors are returned unchanged.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= p.Attempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		wait := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			wait.Stop()
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, ctx.Err())
		case <-wait.C:
		}
	}
}

// Backoff is the wait after failed attempt n (from 1): a random duration
// below min(Cap, Initial*2^(n-1)).
func (p Policy) Backoff(n int) time.Duration {
	ceiling := p.Initial
	for i := 1; i < n && ceiling < 1<<62 && (p.Cap == 0 || ceiling < p.Cap); i++ {
		ceiling *= 2
	}
	if p.Cap > 0 && ceiling > p.Cap {
		ceiling = p.Cap
	}
	if ceiling <= 0 {
		return 0
	}
	return rand.N(ceiling)
}

var transientPatterns = []string{
	"throttl",
	"rate exceed",
	"slowdown",
	"too many requests",
	"request limit",
	"service unavailable",
	"internal server error",
	"connection reset",
	"connection refused",
	"timeout",
	"tls handshake",
	"temporary failure",
}

// IsTransient reports whether err looks like throttling or a network blip.
// The end of a context is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
