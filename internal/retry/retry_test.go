package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxo-labs/fondsolve/internal/logger"
)

var errTransient = errors.New("transient")

func TestDo_RetriesUntilSuccess(t *testing.T) {
	h := NewHelper(logger.NewDiscardLogger())
	calls := 0
	err := h.Do(context.Background(), Config{Attempts: 5, Delay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	h := NewHelper(logger.NewDiscardLogger())
	permanent := errors.New("permanent")
	calls := 0
	err := h.Do(context.Background(), Config{
		Attempts:  5,
		Retryable: func(err error) bool { return errors.Is(err, errTransient) },
	}, func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	h := NewHelper(logger.NewDiscardLogger())
	calls := 0
	err := h.Do(context.Background(), Config{Attempts: 3}, func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_Cancelled(t *testing.T) {
	h := NewHelper(logger.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Do(ctx, Config{Attempts: 3}, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithCancel(context.Background())
	err = h.Do(ctx, Config{Attempts: 3, Delay: time.Hour}, func(context.Context) error {
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestBackoff(t *testing.T) {
	h := NewHelper(logger.NewDiscardLogger())
	cfg := normalize(Config{Attempts: 4, Delay: 10 * time.Millisecond, BackoffFactor: 2, MaxDelay: 25 * time.Millisecond})
	assert.Equal(t, 10*time.Millisecond, h.backoff(cfg, 1))
	assert.Equal(t, 20*time.Millisecond, h.backoff(cfg, 2))
	assert.Equal(t, 25*time.Millisecond, h.backoff(cfg, 3))

	cfg = normalize(Config{Delay: 10 * time.Millisecond, Jitter: 0.5})
	for i := 0; i < 20; i++ {
		d := h.backoff(cfg, 1)
		assert.GreaterOrEqual(t, d, 5*time.Millisecond)
		assert.LessOrEqual(t, d, 15*time.Millisecond)
	}
}
