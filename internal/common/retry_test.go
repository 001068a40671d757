package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_BackoffGrowsAndCaps(t *testing.T) {
	policy := RetryPolicy{
		BackoffBase: 100 * time.Millisecond,
		BackoffMax:  1 * time.Second,
	}

	assert.Equal(t, 100*time.Millisecond, policy.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, policy.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, policy.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, policy.Backoff(4))
	assert.Equal(t, 1*time.Second, policy.Backoff(5))
	assert.Equal(t, 1*time.Second, policy.Backoff(60), "shift overflow still caps at max")
}

func TestRetryPolicy_JitterStaysInBounds(t *testing.T) {
	policy := RetryPolicy{
		BackoffBase: 100 * time.Millisecond,
		BackoffMax:  1 * time.Second,
		Jitter:      0.2,
	}

	for i := 0; i < 50; i++ {
		delay := policy.Backoff(1)
		assert.GreaterOrEqual(t, delay, 100*time.Millisecond)
		assert.LessOrEqual(t, delay, 120*time.Millisecond)
	}
}

func TestRetryPolicy_DoStopsOnSuccess(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BackoffBase: time.Millisecond, BackoffMax: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_DoStopsOnTerminalError(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BackoffBase: time.Millisecond, BackoffMax: time.Millisecond}
	terminal := errors.New("bad request")

	calls := 0
	err := policy.Do(context.Background(), func(error) bool { return false }, func() error {
		calls++
		return terminal
	})

	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_DoExhaustsBudget(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMax: time.Millisecond}
	transient := errors.New("flaky")

	calls := 0
	err := policy.Do(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return transient
	})

	require.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_DoHonorsCancellation(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BackoffBase: time.Minute, BackoffMax: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := policy.Do(ctx, func(error) bool { return true }, func() error {
		calls++
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancelled context skips the backoff wait")
}
