package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PersistKey is the well-known key the snapshot blob lives under.
const PersistKey = "querycache:v1"

// Persister saves and restores cache snapshots through Redis so a
// restarted instance can warm up from its predecessor's state.
type Persister struct {
	client *redis.Client
	key    string
	maxAge time.Duration
}

// NewPersister creates a Persister. A zero maxAge uses SnapshotMaxAge.
func NewPersister(client *redis.Client, key string, maxAge time.Duration) *Persister {
	if key == "" {
		key = PersistKey
	}
	if maxAge <= 0 {
		maxAge = SnapshotMaxAge
	}
	return &Persister{client: client, key: key, maxAge: maxAge}
}

// Save writes the cache snapshot under the well-known key. The blob
// expires server-side at the restore cutoff, so a reader can never see
// one it would have to discard anyway.
func (p *Persister) Save(ctx context.Context, c *Cache) error {
	if p.client == nil {
		return nil
	}
	data, err := c.Snapshot()
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.key, data, p.maxAge).Err()
}

// Load restores a previously saved snapshot into c. A missing or
// expired blob is not an error; the cache just starts cold.
func (p *Persister) Load(ctx context.Context, c *Cache) error {
	if p.client == nil {
		return nil
	}
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}
	if err := c.Restore(data, p.maxAge); err != nil {
		if errors.Is(err, ErrSnapshotExpired) {
			_ = p.client.Del(ctx, p.key).Err()
			return nil
		}
		return err
	}
	return nil
}
