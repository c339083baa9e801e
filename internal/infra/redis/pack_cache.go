package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quizhost-service/internal/app"
	"quizhost-service/internal/domain"
)

// PackCache caches pack content in Redis (one JSON value per pack) and falls
// back to the inner repository on a miss. Cache hits are shared across
// instances, unlike the in-memory cache.
type PackCache struct {
	client *redis.Client
	inner  app.PackRepository
	ttl    time.Duration
	sf     singleflight.Group
}

func NewPackCache(client *redis.Client, inner app.PackRepository, ttl time.Duration) *PackCache {
	return &PackCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
	}
}

func (c *PackCache) Load(ctx context.Context, packID string) (domain.Pack, error) {
	key := c.key(packID)

	if pack, ok := c.fromCache(ctx, key); ok {
		return pack, nil
	}

	result, err, _ := c.sf.Do(packID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pack, ok := c.fromCache(ctx, key); ok {
			return pack, nil
		}

		pack, err := c.inner.Load(ctx, packID)
		if err != nil {
			return domain.Pack{}, err
		}

		if data, err := json.Marshal(pack); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return pack, nil
	})
	if err != nil {
		return domain.Pack{}, err
	}
	return result.(domain.Pack), nil
}

// Save writes through and invalidates the cached copy.
func (c *PackCache) Save(ctx context.Context, pack domain.Pack) (domain.Pack, error) {
	saved, err := c.inner.Save(ctx, pack)
	if err != nil {
		return domain.Pack{}, err
	}
	_ = c.client.Del(ctx, c.key(saved.ID)).Err()
	return saved, nil
}

func (c *PackCache) fromCache(ctx context.Context, key string) (domain.Pack, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Pack{}, false
	}
	var pack domain.Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return domain.Pack{}, false
	}
	return pack, true
}

func (c *PackCache) key(packID string) string {
	return "pack:" + packID
}

func (c *PackCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// Loads for distinct packs jitter concurrently, so use the locked
	// top-level source rather than a shared rand.Rand.
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
