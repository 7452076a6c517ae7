package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntDefault(t *testing.T) {
	const key = "RESERVATION_TIMEOUT_SECONDS"

	// Unset: fall back.
	t.Setenv(key, "")
	require.Equal(t, 120, intDefault(key, 120))

	// Set: parsed value wins.
	t.Setenv(key, "45")
	require.Equal(t, 45, intDefault(key, 120))
}

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	require.True(t, cfg.Enabled)
	require.Equal(t, 30, cfg.Capacity)
	require.Equal(t, 1, cfg.RefillTokens)
	require.Equal(t, time.Second, cfg.RefillInterval)
	require.Equal(t, "rl", cfg.Prefix)
}

func TestLoadRateLimitConfigClampsTTL(t *testing.T) {
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "10s") // shorter than a full refill

	cfg := LoadRateLimitConfig()
	require.Equal(t, time.Minute, cfg.RefillInterval)
	// Bucket state must outlive at least a few refill intervals.
	require.Equal(t, 5*time.Minute, cfg.TTL)
}

func TestLoadCacheConfigDefaults(t *testing.T) {
	cfg := LoadCacheConfig()
	require.True(t, cfg.Enabled)
	require.True(t, cfg.Methods["GET"])
	require.False(t, cfg.Methods["POST"])
	require.Equal(t, 15*time.Second, cfg.TTL)
	require.Equal(t, "route_query", cfg.KeyStrategy)
}

func TestLoadCacheConfigOverrides(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "2m")

	cfg := LoadCacheConfig()
	require.False(t, cfg.Enabled)
	require.True(t, cfg.Methods["GET"])
	require.True(t, cfg.Methods["HEAD"])
	require.Equal(t, 2*time.Minute, cfg.TTL)
}
