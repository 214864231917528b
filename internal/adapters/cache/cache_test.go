package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEntry(key string, ttl time.Duration) *core.CachedVerdict {
	now := time.Now()
	return &core.CachedVerdict{
		Key:          key,
		IsSuspicious: true,
		Explanation:  "lookalike sender domain",
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

func exerciseCache(t *testing.T, c core.VerdictCache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, newEntry("k1", time.Hour)))
	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, got.IsSuspicious)
	assert.Equal(t, "lookalike sender domain", got.Explanation)

	replacement := newEntry("k1", time.Hour)
	replacement.IsSuspicious = false
	replacement.Explanation = "known newsletter"
	require.NoError(t, c.Set(ctx, replacement))
	got, err = c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, got.IsSuspicious)
	assert.Equal(t, "known newsletter", got.Explanation)

	require.NoError(t, c.Set(ctx, newEntry("stale", -time.Minute)))
	_, err = c.Get(ctx, "stale")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	require.NoError(t, c.Delete(ctx, "k1"))
	_, err = c.Get(ctx, "k1")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	require.NoError(t, c.Cleanup(ctx))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()

	exerciseCache(t, c)
}

func TestMemoryCacheCleanupRemovesExpired(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, newEntry("live", time.Hour)))
	require.NoError(t, c.Set(ctx, newEntry("dead", time.Minute)))
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	require.NoError(t, c.Cleanup(ctx))
	assert.Equal(t, 1, c.Len())
	_, err := c.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestMemoryCacheStopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), 10*time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop(), time.Hour)
	require.NoError(t, err)
	defer c.Stop()

	exerciseCache(t, c)
}
