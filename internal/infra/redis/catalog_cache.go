package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"trailpoints/internal/app"
	"trailpoints/internal/domain"
)

// CatalogCache caches catalog reads in Redis and falls back to a loader on miss.
// Questions are stored as: SET catalog:question:{questionID} <msgpack>
// Trails are stored as:    SET catalog:trail:{trailID} <msgpack list>
// Answer ownership as:     HSET catalog:answers {answerID} {questionID}
type CatalogCache struct {
	client *redis.Client
	loader app.Catalog
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader app.Catalog, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) Question(ctx context.Context, questionID string) (domain.Question, error) {
	key := questionKey(questionID)
	var q domain.Question
	if c.read(ctx, key, &q) {
		return q, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var q domain.Question
		if c.read(ctx, key, &q) {
			return q, nil
		}
		q, err := c.loader.Question(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}
		c.storeQuestions(ctx, []domain.Question{q})
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *CatalogCache) Answer(ctx context.Context, answerID string) (domain.Answer, error) {
	questionID, err := c.client.HGet(ctx, answersKey, answerID).Result()
	if err == nil {
		q, err := c.Question(ctx, questionID)
		if err == nil {
			for _, a := range q.Answers {
				if a.ID == answerID {
					return a, nil
				}
			}
		}
	}

	a, err := c.loader.Answer(ctx, answerID)
	if err != nil {
		return domain.Answer{}, err
	}
	_ = c.client.HSet(ctx, answersKey, a.ID, a.QuestionID).Err()
	return a, nil
}

func (c *CatalogCache) TrailQuestions(ctx context.Context, trailID string) ([]domain.Question, error) {
	key := trailKey(trailID)
	var qs []domain.Question
	if c.read(ctx, key, &qs) {
		return qs, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var qs []domain.Question
		if c.read(ctx, key, &qs) {
			return qs, nil
		}
		qs, err := c.loader.TrailQuestions(ctx, trailID)
		if err != nil {
			return nil, err
		}
		c.storeQuestions(ctx, qs)
		if raw, err := msgpack.Marshal(qs); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Evict removes a trail and its questions from the cache.
func (c *CatalogCache) Evict(ctx context.Context, trailID string, questionIDs ...string) error {
	keys := []string{trailKey(trailID)}
	for _, id := range questionIDs {
		keys = append(keys, questionKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

// read reports a hit only when the key exists and decodes.
func (c *CatalogCache) read(ctx context.Context, key string, v any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return msgpack.Unmarshal(raw, v) == nil
}

// storeQuestions is best-effort; a failed write only costs a later miss.
func (c *CatalogCache) storeQuestions(ctx context.Context, qs []domain.Question) {
	if len(qs) == 0 {
		return
	}
	ttl := c.ttlWithJitter()
	pipe := c.client.Pipeline()
	for _, q := range qs {
		raw, err := msgpack.Marshal(q)
		if err != nil {
			continue
		}
		pipe.Set(ctx, questionKey(q.ID), raw, ttl)
		for _, a := range q.Answers {
			pipe.HSet(ctx, answersKey, a.ID, q.ID)
		}
	}
	if ttl > 0 {
		pipe.Expire(ctx, answersKey, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

const answersKey = "catalog:answers"

func questionKey(questionID string) string {
	return "catalog:question:" + questionID
}

func trailKey(trailID string) string {
	return "catalog:trail:" + trailID
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
