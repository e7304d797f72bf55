package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStateStore_ConsumeOnce(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStateStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc", OAuthState{UserID: "u1", CompanyID: "c1", Provider: "google"}))

	got, err := store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "c1", got.CompanyID)

	_, err = store.Consume(ctx, "abc")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStateStore_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStateStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc", OAuthState{UserID: "u1"}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Consume(ctx, "abc")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestIdempotencyStore_Claim(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	first, err := store.Claim(ctx, "xendit:inv-1:PAID")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Claim(ctx, "xendit:inv-1:PAID")
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, store.Release(ctx, "xendit:inv-1:PAID"))
	again, err := store.Claim(ctx, "xendit:inv-1:PAID")
	require.NoError(t, err)
	assert.True(t, again)

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(idempotencyPrefix+"xendit:inv-1:PAID"))
}
