package scraper

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// instantTimer fires immediately and records every requested wait
type instantTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time {
	return t.c
}

func TestRetryPolicy_ExponentialWaits(t *testing.T) {
	timer := newInstantTimer()
	policy := DefaultRetryPolicy()
	policy.Timer = timer

	calls := 0
	errNet := errors.New("connection reset")
	err := policy.Do(context.Background(), func() error {
		calls++
		return errNet
	}, nil)

	if !errors.Is(err, errNet) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, calls)
	}

	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(timer.waits, want) {
		t.Errorf("waits = %v, expected %v", timer.waits, want)
	}
}

func TestRetryPolicy_CapsDelay(t *testing.T) {
	timer := newInstantTimer()
	policy := RetryPolicy{
		MaxAttempts:  7,
		InitialDelay: 2 * time.Second,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
		Timer:        timer,
	}

	_ = policy.Do(context.Background(), func() error { return errors.New("timeout") }, nil)

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second, 8 * time.Second, 8 * time.Second}
	if !reflect.DeepEqual(timer.waits, want) {
		t.Errorf("waits = %v, expected %v", timer.waits, want)
	}
}

func TestRetryPolicy_SucceedsAfterFailures(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Timer = newInstantTimer()

	calls := 0
	notified := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}, func(error, time.Duration) { notified++ })

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if notified != 2 {
		t.Errorf("expected 2 notifications, got %d", notified)
	}
}

func TestRetryPolicy_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		wantCalls int
	}{
		{"not found is final", 404, 1},
		{"forbidden is final", 403, 1},
		{"internal error is final", 500, 1},
		{"service unavailable retries", 503, DefaultMaxAttempts},
		{"too many requests retries", 429, DefaultMaxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultRetryPolicy()
			policy.Timer = newInstantTimer()

			calls := 0
			err := policy.Do(context.Background(), func() error {
				calls++
				return &HTTPStatusError{URL: "https://example.test", Code: tt.code}
			}, nil)

			var statusErr *HTTPStatusError
			if !errors.As(err, &statusErr) || statusErr.Code != tt.code {
				t.Errorf("expected HTTPStatusError %d, got %v", tt.code, err)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d attempts, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestRetryPolicy_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultRetryPolicy()
	policy.Timer = newInstantTimer()

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("connection reset")
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}
