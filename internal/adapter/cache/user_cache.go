package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "user-records-service/internal/domain/user"
)

// UserCache defines the interface for user caching operations.
type UserCache interface {
	// Get retrieves a user from cache by ID.
	// Returns nil if user is not found in cache.
	Get(ctx context.Context, id int64) (*domain.User, error)

	// Set stores a user in cache with the configured TTL.
	Set(ctx context.Context, user *domain.User) error

	// Generation returns the invalidation counter of an id, 0 if it was never invalidated.
	Generation(ctx context.Context, id int64) (int64, error)

	// SetIfGeneration stores a user only while the id's invalidation counter
	// still equals gen. It reports whether the entry was written.
	SetIfGeneration(ctx context.Context, user *domain.User, gen int64) (bool, error)

	// Delete removes a user from cache by ID.
	Delete(ctx context.Context, id int64) error

	// DeleteMultiple removes multiple users from cache by IDs and bumps
	// their invalidation counters.
	DeleteMultiple(ctx context.Context, ids ...int64) error
}

// entry is the JSON document stored under a user key.
type entry struct {
	ID              int64    `json:"user_id"`
	Name            string   `json:"user_name"`
	Email           string   `json:"user_email"`
	Age             *int     `json:"age,omitempty"`
	Recommendations []string `json:"recommendations"`
	ZipCode         *string  `json:"zip_code,omitempty"`
}

// generationTTL bounds how long an invalidation counter outlives its last bump.
// It must exceed any read-then-fill window by a wide margin.
const generationTTL = 24 * time.Hour

// setIfGenerationScript writes KEYS[1] only when the counter at KEYS[2] equals ARGV[1].
var setIfGenerationScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2]) or '0'
if cur ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// RedisUserCache implements UserCache using Redis as the backing store.
type RedisUserCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache creates a new Redis-backed user cache.
func NewRedisUserCache(client *redis.Client, ttl time.Duration, log *zap.Logger) UserCache {
	return &RedisUserCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// CacheKey generates the Redis key for a user ID.
func CacheKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// GenerationKey is the Redis key of the invalidation counter for a user ID.
func GenerationKey(id int64) string {
	return fmt.Sprintf("user:%d:gen", id)
}

// Get retrieves a user from Redis cache.
func (c *RedisUserCache) Get(ctx context.Context, id int64) (*domain.User, error) {
	data, err := c.client.Get(ctx, CacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("cache miss", zap.Int64("user_id", id))
		return nil, nil
	}
	if err != nil {
		c.log.Error("failed to get from cache", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.Error("failed to unmarshal cached user", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	c.log.Debug("cache hit", zap.Int64("user_id", id))
	return &domain.User{
		ID:              e.ID,
		Name:            e.Name,
		Email:           e.Email,
		Age:             e.Age,
		Recommendations: e.Recommendations,
		ZipCode:         e.ZipCode,
	}, nil
}

// Set stores a user in Redis cache with TTL.
func (c *RedisUserCache) Set(ctx context.Context, user *domain.User) error {
	data, err := c.encode(user)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, CacheKey(user.ID), data, c.ttl).Err(); err != nil {
		c.log.Error("failed to set cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return err
	}

	c.log.Debug("cached user", zap.Int64("user_id", user.ID), zap.Duration("ttl", c.ttl))
	return nil
}

// Generation reads the invalidation counter of a user ID.
func (c *RedisUserCache) Generation(ctx context.Context, id int64) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		c.log.Error("failed to read cache generation", zap.Int64("user_id", id), zap.Error(err))
		return 0, err
	}
	return gen, nil
}

// SetIfGeneration atomically checks the invalidation counter and stores the user.
func (c *RedisUserCache) SetIfGeneration(ctx context.Context, user *domain.User, gen int64) (bool, error) {
	data, err := c.encode(user)
	if err != nil {
		return false, err
	}

	keys := []string{CacheKey(user.ID), GenerationKey(user.ID)}
	written, err := setIfGenerationScript.Run(ctx, c.client, keys, gen, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.log.Error("failed to set cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return false, err
	}
	if written == 0 {
		c.log.Debug("skipped stale cache fill", zap.Int64("user_id", user.ID), zap.Int64("generation", gen))
		return false, nil
	}

	c.log.Debug("cached user", zap.Int64("user_id", user.ID), zap.Duration("ttl", c.ttl))
	return true, nil
}

func (c *RedisUserCache) encode(user *domain.User) ([]byte, error) {
	if user == nil {
		return nil, errors.New("cannot cache nil user")
	}

	recs := user.Recommendations
	if recs == nil {
		recs = []string{}
	}

	data, err := json.Marshal(entry{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Age:             user.Age,
		Recommendations: recs,
		ZipCode:         user.ZipCode,
	})
	if err != nil {
		c.log.Error("failed to marshal user for cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	return data, nil
}

// Delete removes a user from Redis cache.
func (c *RedisUserCache) Delete(ctx context.Context, id int64) error {
	return c.DeleteMultiple(ctx, id)
}

// DeleteMultiple bumps the invalidation counters and removes the entries
// in one MULTI/EXEC, so a fill racing with it cannot resurrect an entry.
func (c *RedisUserCache) DeleteMultiple(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = CacheKey(id)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, GenerationKey(id))
			pipe.Expire(ctx, GenerationKey(id), generationTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		c.log.Error("failed to delete from cache", zap.Int64s("user_ids", ids), zap.Error(err))
		return err
	}

	c.log.Debug("deleted from cache", zap.Int64s("user_ids", ids))
	return nil
}
