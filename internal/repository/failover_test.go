package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverRateLimiter(t *testing.T) {
	primary := new(mockLimiter)
	fallback := new(mockLimiter)
	logger := zerolog.New(io.Discard)
	limiter := NewFailoverRateLimiter(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "a", 5, time.Hour).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "a", 5, time.Hour)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "b", 5, time.Hour).Return(false, errors.New("conn refused")).Once()
		fallback.On("Allow", ctx, "b", 5, time.Hour).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "b", 5, time.Hour)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Allow", ctx, "c", 5, time.Hour).Return(false, nil).Once()

		allowed, err := limiter.Allow(ctx, "c", 5, time.Hour)
		assert.NoError(t, err)
		assert.False(t, allowed)
		primary.AssertNotCalled(t, "Allow", ctx, "c", 5, time.Hour)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		limiter.lastCheck.Store(time.Now().Add(-2 * recoveryInterval).UnixNano())
		primary.On("Allow", ctx, "d", 5, time.Hour).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "d", 5, time.Hour)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		limiter.isDown.Store(true)
		limiter.lastCheck.Store(time.Now().Add(-2 * recoveryInterval).UnixNano())
		primary.On("Allow", ctx, "e", 5, time.Hour).Return(false, errors.New("still down")).Once()
		fallback.On("Allow", ctx, "e", 5, time.Hour).Return(true, nil).Once()

		_, err := limiter.Allow(ctx, "e", 5, time.Hour)
		assert.NoError(t, err)
		assert.True(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
