package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
)

// CatalogCache caches catalog reads with TTL to avoid repeated DB hits.
type CatalogCache struct {
	loader app.Catalog
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedItem
}

type cachedItem struct {
	value     any
	expiresAt time.Time
}

func NewCatalogCache(loader app.Catalog, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedItem),
	}
}

func (c *CatalogCache) Question(ctx context.Context, questionID string) (domain.Question, error) {
	v, err := c.get(ctx, "question:"+questionID, func(ctx context.Context) (any, error) {
		return c.loader.Question(ctx, questionID)
	})
	if err != nil {
		return domain.Question{}, err
	}
	return cloneQuestion(v.(domain.Question)), nil
}

func (c *CatalogCache) Answer(ctx context.Context, answerID string) (domain.Answer, error) {
	v, err := c.get(ctx, "answer:"+answerID, func(ctx context.Context) (any, error) {
		return c.loader.Answer(ctx, answerID)
	})
	if err != nil {
		return domain.Answer{}, err
	}
	return v.(domain.Answer), nil
}

func (c *CatalogCache) TrailQuestions(ctx context.Context, trailID string) ([]domain.Question, error) {
	v, err := c.get(ctx, "trail:"+trailID, func(ctx context.Context) (any, error) {
		return c.loader.TrailQuestions(ctx, trailID)
	})
	if err != nil {
		return nil, err
	}
	cached := v.([]domain.Question)
	out := make([]domain.Question, len(cached))
	for i, q := range cached {
		out[i] = cloneQuestion(q)
	}
	return out, nil
}

// Purge drops every cached entry.
func (c *CatalogCache) Purge() {
	c.mu.Lock()
	c.cache = make(map[string]cachedItem)
	c.mu.Unlock()
}

func (c *CatalogCache) get(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[key] = cachedItem{value: v, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

func (c *CatalogCache) lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.value, true
}

// ttlWithJitter must be called with mu held.
func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
