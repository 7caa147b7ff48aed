package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

// RedisDeduper records generated notification keys in Redis so repeated
// session starts across instances never double-insert the same
// reminder.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and
// TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, taskID string, kind domain.NotificationType) string {
	return fmt.Sprintf("notify:%s:%s:%s", userID, taskID, kind)
}

// Add records the key if it does not already exist. It returns true
// when the key was newly added. Without a Redis client every key is
// treated as new; the unread-notification scan still deduplicates.
func (r *RedisDeduper) Add(ctx context.Context, userID, taskID string, kind domain.NotificationType) (bool, error) {
	if r.client == nil {
		return true, nil
	}
	return r.client.SetNX(ctx, r.key(userID, taskID, kind), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key, used when the insert that
// followed it failed so the next session run may retry.
func (r *RedisDeduper) Remove(ctx context.Context, userID, taskID string, kind domain.NotificationType) error {
	if r.client == nil {
		return nil
	}
	return r.client.Del(ctx, r.key(userID, taskID, kind)).Err()
}
