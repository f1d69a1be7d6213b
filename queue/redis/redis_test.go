package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	q := New("localhost:6379", func(o *Options) {
		o.BaseDelay = time.Second
		o.MaxDelay = 5 * time.Second
	})

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second}, // capped
		{4, 5 * time.Second},
	}

	for _, tc := range cases {
		if got := q.backoff(tc.attempt); got != tc.want {
			t.Errorf("backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestWithRetryRecovers(t *testing.T) {
	q := New("localhost:6379", func(o *Options) {
		o.MaxAttempts = 3
		o.BaseDelay = time.Millisecond
		o.MaxDelay = time.Millisecond
	})

	calls := 0
	err := q.withRetry(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	q := New("localhost:6379", func(o *Options) {
		o.MaxAttempts = 2
		o.BaseDelay = time.Millisecond
		o.MaxDelay = time.Millisecond
	})

	calls := 0
	err := q.withRetry(context.Background(), "op", func() error {
		calls++
		return errors.New("down")
	})

	if err == nil {
		t.Fatal("withRetry() expected error")
	}
	if calls != 2 {
		t.Errorf("op called %d times, want 2", calls)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	q := New("localhost:6379", func(o *Options) {
		o.MaxAttempts = 3
		o.BaseDelay = time.Minute
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.withRetry(ctx, "op", func() error {
		return errors.New("down")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("withRetry() error = %v, want context.Canceled", err)
	}
}

func TestDefaultOptions(t *testing.T) {
	q := New("localhost:6379")

	if q.maxAttempts != 3 {
		t.Errorf("maxAttempts = %d, want 3", q.maxAttempts)
	}
	if q.baseDelay != time.Second {
		t.Errorf("baseDelay = %v, want 1s", q.baseDelay)
	}
	if q.maxDelay != 30*time.Second {
		t.Errorf("maxDelay = %v, want 30s", q.maxDelay)
	}
}
