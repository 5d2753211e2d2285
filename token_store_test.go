package authxero_test

import (
	"context"
	"testing"
	"time"

	authxero "github.com/PhillipGimmi/go-authxero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStoreRoundTrip(t *testing.T) {
	store := authxero.NewMemoryTokenStore(authxero.SimpleConfig{})
	ctx := context.Background()

	pair, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.True(t, pair.IsZero())

	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))

	pair, err = store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", pair.AccessToken)
	assert.Equal(t, "refresh-1", pair.RefreshToken)
}

func TestMemoryTokenStoreClearDropsBoth(t *testing.T) {
	store := authxero.NewMemoryTokenStore(authxero.SimpleConfig{})
	ctx := context.Background()

	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))
	require.NoError(t, store.ClearTokens(ctx))

	pair, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.True(t, pair.IsZero())
}

func TestMemoryTokenStoreIndependentExpiry(t *testing.T) {
	current := time.Now()
	store := authxero.NewMemoryTokenStore(authxero.SimpleConfig{
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}).WithClock(func() time.Time { return current })

	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))

	// past the access horizon, inside the refresh horizon
	current = current.Add(2 * time.Hour)

	pair, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, pair.AccessToken)
	assert.Equal(t, "refresh-1", pair.RefreshToken)

	// past both horizons
	current = current.Add(48 * time.Hour)

	pair, err = store.Tokens(ctx)
	require.NoError(t, err)
	assert.True(t, pair.IsZero())
}

func TestMemoryTokenStoreReplaceIsAtomic(t *testing.T) {
	store := authxero.NewMemoryTokenStore(authxero.SimpleConfig{})
	ctx := context.Background()

	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))
	require.NoError(t, store.SetTokens(ctx, "access-2", "refresh-2"))

	pair, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", pair.AccessToken)
	assert.Equal(t, "refresh-2", pair.RefreshToken)
}
