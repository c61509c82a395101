package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var errResetTokenUnknown = errors.New("reset token unknown or expired")

const resetKeyPrefix = "pwreset:"

// RedisResetStore keeps reset tokens in Redis; the TTL does the expiry.
type RedisResetStore struct {
	rdb *redis.Client
}

func NewRedisResetStore(rdb *redis.Client) *RedisResetStore {
	return &RedisResetStore{rdb: rdb}
}

func (r *RedisResetStore) SaveResetToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return r.rdb.Set(ctx, resetKeyPrefix+token, userID, ttl).Err()
}

func (r *RedisResetStore) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	userID, err := r.rdb.GetDel(ctx, resetKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", errResetTokenUnknown
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// MemoryResetStore is the fallback when no Redis is configured, and what
// the tests use. Single process only.
type MemoryResetStore struct {
	mu     sync.Mutex
	tokens map[string]memoryReset
}

type memoryReset struct {
	userID  string
	expires time.Time
}

func NewMemoryResetStore() *MemoryResetStore {
	return &MemoryResetStore{tokens: make(map[string]memoryReset)}
}

func (m *MemoryResetStore) SaveResetToken(_ context.Context, token, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = memoryReset{userID: userID, expires: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryResetStore) ConsumeResetToken(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.tokens[token]
	if !ok {
		return "", errResetTokenUnknown
	}
	delete(m.tokens, token)
	if time.Now().After(entry.expires) {
		return "", errResetTokenUnknown
	}
	return entry.userID, nil
}
