package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 8 * time.Second
	DefaultMultiplier   = 2.0
)

// RetryPolicy describes bounded exponential backoff.
// The delay before retry n is InitialDelay*Multiplier^(n-1), capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Retryable decides whether an error is transient. Nil uses IsTransient.
	Retryable func(error) bool
	// Timer drives the waits between attempts. Nil uses a real timer.
	Timer backoff.Timer
}

// DefaultRetryPolicy returns five attempts starting at 500ms, doubling up to 8s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
	}
}

// IsTransient treats transport failures and a few gateway statuses as
// retryable. Other HTTP statuses and context errors are final.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	return true
}

// Do runs op until it succeeds, fails permanently, runs out of attempts or
// ctx is done. notify is called before each wait and may be nil.
func (p RetryPolicy) Do(ctx context.Context, op func() error, notify backoff.Notify) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), notify, p.Timer)
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}

	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.InitialDelay),
		backoff.WithMaxInterval(p.MaxDelay),
		backoff.WithMultiplier(p.Multiplier),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}
