package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentgate/consentgate/internal/models"
)

// setupTestRedis spins up an in-memory Redis and a store pointed at it.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	store := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	return s, store
}

func TestRedisStore_RoundTrip(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "v-1", models.DecisionGranted))

	d, err := store.Get(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionGranted, d)
}

func TestRedisStore_MissingKeyIsUnknown(t *testing.T) {
	_, store := setupTestRedis(t)

	d, err := store.Get(context.Background(), "v-absent")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionUnknown, d)
}

func TestRedisStore_KeysAreNamespacedPerVisitor(t *testing.T) {
	s, store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "v-1", models.DecisionGranted))
	require.NoError(t, store.Set(ctx, "v-2", models.DecisionDeclined))

	d, err := store.Get(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionGranted, d)

	d, err = store.Get(ctx, "v-2")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionDeclined, d)

	// decisions never expire on the primary backend
	ttl := s.TTL("cookie-consent:v-1")
	assert.Zero(t, ttl)
}

func TestRedisStore_GarbageValueDegradesToUnknown(t *testing.T) {
	s, store := setupTestRedis(t)

	require.NoError(t, s.Set("cookie-consent:v-1", "maybe?"))

	d, err := store.Get(context.Background(), "v-1")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionUnknown, d)
}

func TestRedisStore_UnreachableBackendReturnsError(t *testing.T) {
	s, store := setupTestRedis(t)
	s.Close()

	_, err := store.Get(context.Background(), "v-1")
	assert.Error(t, err, "read failures surface as errors for Multi to treat as no value")
}
