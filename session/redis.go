package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/parleyhq/parley/types"
)

// RedisRegistry provides a Redis-backed implementation of Registry. Sessions
// are JSON-serialized and expire via Redis TTL, which gives distributed
// deployments the same eviction policy as MemoryRegistry.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisRegistry.
type RedisOption func(*RedisRegistry)

// WithRedisTTL sets the session time-to-live. Default is 1 hour.
// Set to 0 for no expiration.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *RedisRegistry) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys. Default is "parley".
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisRegistry) {
		r.prefix = prefix
	}
}

// NewRedisRegistry creates a new Redis-backed session registry.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	reg := session.NewRedisRegistry(client, session.WithRedisTTL(30*time.Minute))
func NewRedisRegistry(client *redis.Client, opts ...RedisOption) *RedisRegistry {
	r := &RedisRegistry{
		client: client,
		ttl:    defaultTTL,
		prefix: "parley",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRegistry) key(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

// Create registers a new session under a fresh UUID.
func (r *RedisRegistry) Create(ctx context.Context, topic string, config types.DebateConfig) (string, error) {
	if err := config.Validate(); err != nil {
		return "", err
	}

	sess := &DebateSession{
		ID:        uuid.NewString(),
		Topic:     topic,
		Config:    config,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(sess.ID), data, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return sess.ID, nil
}

// Lookup retrieves a session by ID.
func (r *RedisRegistry) Lookup(ctx context.Context, id string) (*DebateSession, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess DebateSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session by ID.
func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
