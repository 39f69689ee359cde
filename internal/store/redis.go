package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/models"
)

// RedisStore is the primary consent backend. Decisions are stored without
// expiry; only an explicit user action or API call replaces them.
type RedisStore struct {
	Client *redis.Client
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
	}

	// Add OpenTelemetry instrumentation to the Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// NewRedisStoreWithClient wraps an existing client (for testing).
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

// Name implements Store.
func (r *RedisStore) Name() string { return "redis" }

// key namespaces the consent key by visitor.
func (r *RedisStore) key(visitorID string) string {
	return fmt.Sprintf("%s:%s", Key, visitorID)
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, visitorID string) (models.Decision, error) {
	val, err := r.Client.Get(ctx, r.key(visitorID)).Result()
	if err == redis.Nil {
		return models.DecisionUnknown, nil
	}
	if err != nil {
		return models.DecisionUnknown, err
	}
	return models.ParseDecision(val), nil
}

// Set implements Store. No TTL: the primary backend has no expiry.
func (r *RedisStore) Set(ctx context.Context, visitorID string, decision models.Decision) error {
	return r.Client.Set(ctx, r.key(visitorID), string(decision), 0).Err()
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
