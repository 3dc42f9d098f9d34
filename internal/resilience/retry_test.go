package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("flaky upstream"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentErrors(t *testing.T) {
	calls := 0
	permanent := eris.New("bad request")
	err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		return NewTransientError(eris.New("still down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoShouldRetryOverride(t *testing.T) {
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "retry me" }

	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("retry me")
		}
		return errors.New("give up")
	})
	require.EqualError(t, err, "give up")
	assert.Equal(t, 2, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, fastRetry(5), func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError(eris.New("transient"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoReportsRetries(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(eris.New("transient"), 500)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoValReturnsValue(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, NewTransientError(eris.New("transient"), 429)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
}

func TestDoValZeroValueOnFailure(t *testing.T) {
	got, err := DoVal(context.Background(), fastRetry(2), func(ctx context.Context) (string, error) {
		return "partial", NewTransientError(eris.New("down"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, "", got)
}

func TestComputeBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
	}
	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
	assert.Equal(t, time.Second, computeBackoff(10, cfg))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))

	// Explicit transient markers survive wrapping.
	te := NewTransientError(eris.New("http 503"), 503)
	assert.True(t, IsTransient(te))
	assert.True(t, IsTransient(fmt.Errorf("download: %w", te)))

	// Syscall-level connection failures.
	assert.True(t, IsTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(fmt.Errorf("read: %w", syscall.ECONNRESET)))

	// String heuristics for already-flattened client errors.
	assert.True(t, IsTransient(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(errors.New("Get \"https://x\": TLS handshake timeout")))
	assert.False(t, IsTransient(errors.New("permission denied")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}
