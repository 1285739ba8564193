package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

const tokenKeyPrefix = "portal:session:"

// TokenRepository stores small per-session values such as the admin bearer token.
type TokenRepository interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID, key string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

var (
	_ TokenRepository = (*MemoryTokenRepository)(nil)
	_ TokenRepository = (*RedisTokenRepository)(nil)
)

// MemoryTokenRepository keeps per-session values in process memory.
type MemoryTokenRepository struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryTokenRepository constructs an in-memory store.
func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns the stored value or appErrors.ErrCacheMiss.
func (r *MemoryTokenRepository) Get(_ context.Context, sessionID, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := storageKey(sessionID, key)
	e, ok := r.entries[k]
	if !ok {
		return "", appErrors.ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt) {
		delete(r.entries, k)
		return "", appErrors.ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value with an optional TTL; zero keeps it until deleted.
func (r *MemoryTokenRepository) Set(_ context.Context, sessionID, key, value string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = r.now().Add(ttl)
	}
	r.entries[storageKey(sessionID, key)] = e
	return nil
}

// Delete removes one value.
func (r *MemoryTokenRepository) Delete(_ context.Context, sessionID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, storageKey(sessionID, key))
	return nil
}

// DeleteSession removes every value of a session.
func (r *MemoryTokenRepository) DeleteSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := tokenKeyPrefix + sessionID + ":"
	for k := range r.entries {
		if strings.HasPrefix(k, prefix) {
			delete(r.entries, k)
		}
	}
	return nil
}

// RedisTokenRepository keeps per-session values in Redis so tokens survive portal restarts
// and are shared between replicas.
type RedisTokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRepository constructs a Redis-backed store.
func NewRedisTokenRepository(client *redis.Client, logger *zap.Logger) *RedisTokenRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTokenRepository{client: client, logger: logger}
}

// Get returns the stored value or appErrors.ErrCacheMiss.
func (r *RedisTokenRepository) Get(ctx context.Context, sessionID, key string) (string, error) {
	k := storageKey(sessionID, key)
	val, err := r.client.Get(ctx, k).Result()
	if err != nil {
		if err == redis.Nil {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("redis get %s: %w", k, err)
	}
	return val, nil
}

// Set stores value with an optional TTL; zero keeps it until deleted.
func (r *RedisTokenRepository) Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error {
	k := storageKey(sessionID, key)
	if err := r.client.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

// Delete removes one value.
func (r *RedisTokenRepository) Delete(ctx context.Context, sessionID, key string) error {
	k := storageKey(sessionID, key)
	if err := r.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", k, err)
	}
	return nil
}

// DeleteSession removes every value of a session.
func (r *RedisTokenRepository) DeleteSession(ctx context.Context, sessionID string) error {
	pattern := tokenKeyPrefix + sessionID + ":*"
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	r.logger.Debug("session tokens cleared", zap.String("session_id", sessionID))
	return nil
}

// Ping checks the Redis connection.
func (r *RedisTokenRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (r *RedisTokenRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func storageKey(sessionID, key string) string {
	return tokenKeyPrefix + sessionID + ":" + key
}
