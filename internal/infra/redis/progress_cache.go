package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"trailpoints/internal/domain"
)

// ProgressCache stores derived trail progress under a per-(user, trail)
// version token. The ledger replaces the token after every committed write:
//
//	SET progress:{userID}:{trailID}:version <token>
//	SET progress:{userID}:{trailID}:v{token} <msgpack>
//
// Tokens are random and never reused, so a value computed before a write,
// or left behind by an expired version key, is never read again.
type ProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressCache(client *redis.Client, ttl time.Duration) *ProgressCache {
	return &ProgressCache{client: client, ttl: ttl}
}

func (c *ProgressCache) Get(ctx context.Context, userID, trailID string) (domain.TrailProgress, string, bool, error) {
	version, err := c.Version(ctx, userID, trailID)
	if err != nil {
		return domain.TrailProgress{}, "", false, err
	}

	raw, err := c.client.Get(ctx, c.valueKey(userID, trailID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TrailProgress{}, version, false, nil
	}
	if err != nil {
		return domain.TrailProgress{}, "", false, err
	}
	var p domain.TrailProgress
	if err := msgpack.Unmarshal(raw, &p); err != nil {
		return domain.TrailProgress{}, version, false, nil
	}
	return p, version, true, nil
}

// Set stores p under version and keeps the version key alive at least as
// long as the value.
func (c *ProgressCache) Set(ctx context.Context, userID, trailID, version string, p domain.TrailProgress) error {
	raw, err := msgpack.Marshal(p)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.valueKey(userID, trailID, version), raw, c.ttl)
	if c.ttl > 0 {
		pipe.Expire(ctx, c.versionKey(userID, trailID), c.versionTTL())
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate installs a fresh version; the previous value expires on its own.
func (c *ProgressCache) Invalidate(ctx context.Context, userID, trailID string) error {
	return c.client.Set(ctx, c.versionKey(userID, trailID), uuid.NewString(), c.versionTTL()).Err()
}

// Version returns the current version token, creating one when the key is
// missing.
func (c *ProgressCache) Version(ctx context.Context, userID, trailID string) (string, error) {
	key := c.versionKey(userID, trailID)
	v, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", err
	}
	token := uuid.NewString()
	created, err := c.client.SetNX(ctx, key, token, c.versionTTL()).Result()
	if err != nil {
		return "", err
	}
	if created {
		return token, nil
	}
	return c.client.Get(ctx, key).Result()
}

func (c *ProgressCache) versionTTL() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return 2 * c.ttl
}

func (c *ProgressCache) versionKey(userID, trailID string) string {
	return "progress:" + userID + ":" + trailID + ":version"
}

func (c *ProgressCache) valueKey(userID, trailID, version string) string {
	return "progress:" + userID + ":" + trailID + ":v" + version
}
