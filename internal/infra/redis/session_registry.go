package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRegistry keeps the per-team active session marker in Redis so every
// instance sees the same single-device truth. Keys expire with the quiz TTL;
// expiry falls back to the persisted descriptor.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{client: client, ttl: ttl}
}

func (r *SessionRegistry) Put(ctx context.Context, quizID, teamID, sessionID string) error {
	return r.client.Set(ctx, r.key(quizID, teamID), sessionID, r.ttl).Err()
}

func (r *SessionRegistry) Get(ctx context.Context, quizID, teamID string) (string, error) {
	val, err := r.client.Get(ctx, r.key(quizID, teamID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (r *SessionRegistry) key(quizID, teamID string) string {
	return "quiz:" + quizID + ":team:" + teamID + ":session"
}
