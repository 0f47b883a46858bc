package repository

import (
	"context"
	"testing"
	"time"

	"devlend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	t.Run("WithinLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := limiter.Allow(ctx, "submit:u1", 3, time.Hour)
			require.NoError(t, err)
			assert.True(t, allowed, "attempt %d", i+1)
		}
		allowed, err := limiter.Allow(ctx, "submit:u1", 3, time.Hour)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, "submit:u2", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("WindowExpires", func(t *testing.T) {
		assert.Equal(t, time.Hour, s.TTL(rateLimitPrefix+"submit:u1"))
		s.FastForward(time.Hour + time.Second)

		allowed, err := limiter.Allow(ctx, "submit:u1", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		_, err := limiter.Allow(ctx, "submit:u3", 3, time.Hour)
		assert.Error(t, err)
		assert.Error(t, Ping(ctx, client))
	})
}

func TestRedisRateLimiter_NilClient(t *testing.T) {
	_, err := NewRedisRateLimiter(nil).Allow(context.Background(), "k", 1, time.Minute)
	assert.ErrorIs(t, err, errNilClient)
	assert.ErrorIs(t, Ping(context.Background(), nil), errNilClient)
	assert.NoError(t, Close(nil))
}
