package dataflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSymbol(t *testing.T) {
	for _, ok := range []string{"AAPL", " msft ", "BRK.B", "700.HK", "^GSPC"} {
		assert.NoError(t, ValidateSymbol(ok), ok)
	}
	for _, bad := range []string{"", "   ", "WAYTOOLONGSYM", "AA PL", "<script>"} {
		err := ValidateSymbol(bad)
		assert.ErrorIs(t, err, ErrInvalidSymbol, bad)
	}
	assert.Equal(t, "BRK.B", NormalizeSymbol(" brk.b "))
}

func TestWithRetry(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = WithRetry(context.Background(), cfg, func() error {
		calls++
		return errors.New("down")
	})
	assert.ErrorContains(t, err, "max retries exceeded")
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}
	calls := 0
	err := WithRetry(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "日本...", Truncate("日本語テキスト", 2))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}
