package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/internal/config"
)

func TestNewLimiterDisabled(t *testing.T) {
	limiter, err := NewLimiter(config.Config{})
	require.NoError(t, err)
	require.Nil(t, limiter)
	require.False(t, limiter.Enabled())
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *Limiter

	res, err := limiter.AllowUsage(context.Background(), "123")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.AllowBilling(context.Background(), "123")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	token, ok, err := limiter.TryLockTransition(context.Background(), "123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, token)

	require.NoError(t, limiter.ReleaseTransition(context.Background(), "123", token))
}

func TestNewLimiterRequiresRedisAddr(t *testing.T) {
	cfg := config.Config{
		RateLimit: config.RateLimitConfig{
			Enabled:                  true,
			UsageRate:                10,
			UsageBurst:               20,
			BillingRate:              1,
			BillingBurst:             5,
			TransitionLockTTLSeconds: 30,
		},
	}

	_, err := NewLimiter(cfg)
	require.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	if got := bucketTTL(10, 100); got != 20*time.Second {
		t.Errorf("bucketTTL(10, 100) = %s, want 20s", got)
	}
	if got := bucketTTL(100, 10); got != 1*time.Second {
		t.Errorf("bucketTTL(100, 10) = %s, want 1s", got)
	}
	if got := bucketTTL(0, 0); got != time.Second {
		t.Errorf("bucketTTL(0, 0) = %s, want 1s", got)
	}
}
