package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Outcome is the classification of one attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// RetryPolicy defines how a completion round is repeated.
type RetryPolicy struct {
	MaxAttempts  int           // total attempts including the first (default 3)
	Delay        time.Duration // wait between attempts (0 = none)
	Exponential  bool          // double Delay after each attempt
	MaxDelay     time.Duration // cap on a single wait (0 = no cap)
	RetryDecode  bool          // retry unparseable replies
	RetryTimeout bool          // retry completions that timed out
	// RetryAbility retries the whole round when an ability fails inside it.
	// Only meaningful with AbilityFailureRetry.
	RetryAbility bool
}

// DefaultRetryPolicy matches the agent's historical behaviour: three attempts,
// no backoff, decode and transport failures retried alike.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		RetryDecode:  true,
		RetryTimeout: true,
		RetryAbility: true,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff builds a fresh go-retry backoff for one retry loop.
func (p RetryPolicy) Backoff() retry.Backoff {
	var b retry.Backoff
	switch {
	case p.Delay <= 0:
		b = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	case p.Exponential:
		b = retry.NewExponential(p.Delay)
	default:
		b = retry.NewConstant(p.Delay)
	}
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(p.attempts()-1), b)
}

// Classify maps an attempt's error onto an Outcome.
func (p RetryPolicy) Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeFatal
	}

	var (
		decodeErr  *DecodeError
		timeoutErr *TimeoutError
		abilityErr *AbilityError
	)
	switch {
	case errors.As(err, &abilityErr):
		if p.RetryAbility {
			return OutcomeRetryable
		}
		return OutcomeFatal
	case errors.As(err, &decodeErr):
		if p.RetryDecode {
			return OutcomeRetryable
		}
		return OutcomeFatal
	case errors.As(err, &timeoutErr):
		if p.RetryTimeout {
			return OutcomeRetryable
		}
		return OutcomeFatal
	}

	if ClassifyTransportError(err) == RetryClassRetryable {
		return OutcomeRetryable
	}
	return OutcomeFatal
}

// RetryableFunc is one attempt of a retried operation.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// RetryWithPolicy runs fn until it succeeds, fails fatally, or runs out of
// attempts. When attempts run out the last error comes back wrapped in a
// RetryExhaustedError.
//
// A Retry-After hint on a retryable TransportError stretches the next wait
// to at least that long, still capped by MaxDelay.
func RetryWithPolicy[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn RetryableFunc[T],
	onRetry func(attempt int, err error),
) (T, error) {
	var (
		zero    T
		result  T
		lastErr error
		attempt int
		hint    time.Duration
	)
	maxAttempts := policy.attempts()

	base := policy.Backoff()
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := base.Next()
		if stop {
			return 0, true
		}
		if hint > next {
			next = hint
			if policy.MaxDelay > 0 && next > policy.MaxDelay {
				next = policy.MaxDelay
			}
		}
		hint = 0
		return next, false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			result = v
			return nil
		}
		lastErr = err
		if policy.Classify(err) != OutcomeRetryable {
			return err
		}
		hint = ExtractRetryAfter(err)
		if attempt < maxAttempts && onRetry != nil {
			onRetry(attempt, err)
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		return result, nil
	}
	if lastErr != nil && attempt >= maxAttempts && policy.Classify(lastErr) == OutcomeRetryable {
		return zero, &RetryExhaustedError{Err: lastErr, Attempts: attempt}
	}
	return zero, err
}
