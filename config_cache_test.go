package authxero_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	authxero "github.com/PhillipGimmi/go-authxero"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleClientConfig() *authxero.ClientConfig {
	return &authxero.ClientConfig{
		ClientID:     "client-1",
		Domain:       "app.example.com",
		PlatformType: "nextjs",
		IssuedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemoryConfigCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := authxero.NewMemoryConfigCache(authxero.SimpleConfig{ConfigCacheTTL: time.Minute})

	got, err := cache.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got, "a miss is nil, not an error")

	require.NoError(t, cache.Put(ctx, "client-1", sampleClientConfig()))

	got, err = cache.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "app.example.com", got.Domain)
	assert.Equal(t, "nextjs", got.PlatformType)
}

func TestMemoryConfigCacheExpires(t *testing.T) {
	ctx := context.Background()
	current := time.Now()

	cache := authxero.NewMemoryConfigCache(authxero.SimpleConfig{ConfigCacheTTL: time.Minute}).
		WithClock(func() time.Time { return current })

	require.NoError(t, cache.Put(ctx, "client-1", sampleClientConfig()))

	current = current.Add(2 * time.Minute)

	got, err := cache.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryConfigCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache := authxero.NewMemoryConfigCache(authxero.SimpleConfig{ConfigCacheTTL: time.Minute})

	require.NoError(t, cache.Put(ctx, "client-1", sampleClientConfig()))

	first, err := cache.Get(ctx, "client-1")
	require.NoError(t, err)
	first.Domain = "tampered.example.com"

	second, err := cache.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", second.Domain)
}

func TestMemoryConfigCacheOverwrites(t *testing.T) {
	ctx := context.Background()
	cache := authxero.NewMemoryConfigCache(authxero.SimpleConfig{ConfigCacheTTL: time.Minute})

	require.NoError(t, cache.Put(ctx, "client-1", sampleClientConfig()))

	updated := sampleClientConfig()
	updated.PlatformType = "vue"
	require.NoError(t, cache.Put(ctx, "client-1", updated))

	got, err := cache.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "vue", got.PlatformType)
}

func TestRedisConfigCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	cache := authxero.NewRedisConfigCache(client, authxero.SimpleConfig{ConfigCacheTTL: time.Minute})

	got, err := cache.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Put(ctx, "client-1", sampleClientConfig()))

	got, err = cache.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "client-1", got.ClientID)
	assert.Equal(t, "app.example.com", got.Domain)
}

func TestRedisConfigCacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	cache := authxero.NewRedisConfigCache(client, authxero.SimpleConfig{ConfigCacheTTL: time.Minute})

	require.NoError(t, cache.Put(ctx, "client-1", sampleClientConfig()))

	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
