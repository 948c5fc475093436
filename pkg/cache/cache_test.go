package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:abc", UserKey("abc"))
	assert.Equal(t, "session:abc", SessionKey("abc"))
	assert.Equal(t, "itinerary:xyz", ItineraryKey("xyz"))
	assert.Equal(t, "itineraries:user:abc", UserItinerariesKey("abc"))
	assert.Equal(t, "safety:12_34", SafetyScoreKey("12_34"))
	assert.Equal(t, "password_reset:tok", PasswordResetKey("tok"))
	assert.Equal(t, "ratelimit:auth:1.2.3.4", RateLimitKey("1.2.3.4", "auth"))
}

// A disabled cache must behave like a permanent miss, never an error, so the
// API keeps working without Redis.
func TestDisabledCacheIsNoop(t *testing.T) {
	c := Disabled()
	ctx := context.Background()

	assert.False(t, c.Enabled())

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	var out string
	hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, out)

	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.DeletePattern(ctx, "k*"))

	n, err := c.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.Close())
}
