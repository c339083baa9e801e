package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quizhost-service/internal/app"
	"quizhost-service/internal/domain"
)

// PackCache wraps a pack repository with a TTL cache. Tour materialization
// hits the read path on every producer advance, so repeated loads of the
// same pack are collapsed and served from memory.
type PackCache struct {
	inner app.PackRepository
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPack
}

type cachedPack struct {
	pack      domain.Pack
	expiresAt time.Time
}

func NewPackCache(inner app.PackRepository, ttl time.Duration) *PackCache {
	return &PackCache{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedPack),
	}
}

func (c *PackCache) Load(ctx context.Context, packID string) (domain.Pack, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[packID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.pack, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(packID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[packID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.pack, nil
		}
		c.mu.RUnlock()

		pack, err := c.inner.Load(ctx, packID)
		if err != nil {
			return domain.Pack{}, err
		}

		c.mu.Lock()
		c.cache[packID] = cachedPack{pack: pack, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return pack, nil
	})
	if err != nil {
		return domain.Pack{}, err
	}
	return result.(domain.Pack), nil
}

// Save writes through and drops the cached copy so the next read sees the
// new version.
func (c *PackCache) Save(ctx context.Context, pack domain.Pack) (domain.Pack, error) {
	saved, err := c.inner.Save(ctx, pack)
	if err != nil {
		return domain.Pack{}, err
	}
	c.mu.Lock()
	delete(c.cache, saved.ID)
	c.mu.Unlock()
	return saved, nil
}

func (c *PackCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
