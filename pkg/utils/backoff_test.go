package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConstantBackoff(t *testing.T) {
	delay := 100 * time.Millisecond
	backoff := NewConstantBackoff(delay)

	for i := 0; i < 10; i++ {
		if got := backoff.NextDelay(i); got != delay {
			t.Errorf("Attempt %d: expected %v, got %v", i, delay, got)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := NewLinearBackoff(100*time.Millisecond, time.Second)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{9, time.Second},
		{20, time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("Attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := NewExponentialBackoff(100*time.Millisecond, 10*time.Second, 2.0, false)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{4, 1600 * time.Millisecond},
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("Attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	baseDelay := 100 * time.Millisecond
	maxDelay := 10 * time.Second
	backoff := NewExponentialBackoff(baseDelay, maxDelay, 2.0, true)

	for attempt := 0; attempt < 5; attempt++ {
		delay := backoff.NextDelay(attempt)

		expectedBase := float64(baseDelay) * float64(uint(1)<<uint(attempt))
		minExpected := time.Duration(expectedBase * 0.5)
		maxExpected := time.Duration(expectedBase * 1.5)

		if delay < minExpected || delay > maxExpected {
			t.Errorf("Attempt %d: delay %v outside expected range [%v, %v]",
				attempt, delay, minExpected, maxExpected)
		}
	}
}

func TestExponentialBackoffDefaultMultiplier(t *testing.T) {
	backoff := NewExponentialBackoff(100*time.Millisecond, 10*time.Second, 0, false)
	if got := backoff.NextDelay(1); got != 200*time.Millisecond {
		t.Errorf("With default multiplier, attempt 1 should give 200ms, got %v", got)
	}
}

func TestBackoffFromName(t *testing.T) {
	if d := BackoffFromName("constant", 100*time.Millisecond, time.Second).NextDelay(5); d != 100*time.Millisecond {
		t.Errorf("constant: got %v", d)
	}
	if d := BackoffFromName("linear", 100*time.Millisecond, time.Second).NextDelay(2); d != 300*time.Millisecond {
		t.Errorf("linear: got %v", d)
	}
	if d := BackoffFromName("exponential-nojitter", 100*time.Millisecond, 0).NextDelay(3); d != 800*time.Millisecond {
		t.Errorf("exponential without jitter: got %v", d)
	}
	if _, ok := BackoffFromName("unknown", time.Millisecond, 0).(*ExponentialBackoff); !ok {
		t.Error("unknown names should default to exponential")
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
