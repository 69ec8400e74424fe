// internal/common/http/retry.go
package http

import (
	"context"
	"fmt"
	"time"

	"tmis-business-guru/internal/common/errors"
)

// RetryPolicy retries an operation with linear backoff: the wait before attempt n+1 is
// BaseDelay × n. Failures are surfaced once MaxAttempts is exhausted.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Retryable decides whether a failure deserves another attempt. Defaults to errors.IsRetryable.
	Retryable func(err error) bool

	// perCode bounds attempts by errors.GetRetryCount of the failure. Only the default
	// predicate does this; WithRetryable turns it off.
	perCode bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy returns a policy using errors.IsRetryable as predicate.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Retryable:   errors.IsRetryable,
		perCode:     true,
	}
}

// Delay returns the wait after the given (1-based) failed attempt.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// WithRetryable returns a copy of the policy using a different predicate.
func (p *RetryPolicy) WithRetryable(fn func(err error) bool) *RetryPolicy {
	cp := *p
	cp.Retryable = fn
	cp.perCode = false
	return &cp
}

// WithOnRetry returns a copy of the policy reporting retries to fn.
func (p *RetryPolicy) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) *RetryPolicy {
	cp := *p
	cp.OnRetry = fn
	return &cp
}

// Do runs op until it succeeds, returns a non-retryable error, the context ends or attempts
// run out. With the default predicate a failure gets at most 1+errors.GetRetryCount(code)
// attempts, so a polled 404 gives up sooner than a 5xx. The last error is returned
// unwrapped so callers can inspect its code.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	retryable, perCode := p.Retryable, p.perCode
	if retryable == nil {
		retryable, perCode = errors.IsRetryable, true
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}
		if perCode && attempt >= attemptBudget(err) {
			return err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, serr)
		}
	}
	return err
}

// attemptBudget is the total number of attempts a failure's code allows.
func attemptBudget(err error) int {
	stdErr, ok := errors.AsStandard(err)
	if !ok {
		return 1
	}
	return 1 + errors.GetRetryCount(stdErr.Code)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
