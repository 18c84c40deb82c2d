package identity

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cache holds verification answers and the verified-user count. Misses and
// cache errors are equivalent: the caller falls back to the directory.
//
// Every Invalidate moves a generation. A reader takes the generation before
// asking the directory and passes it to the setter, which stores nothing if
// an invalidation landed in between.
type Cache interface {
	Verified(ctx context.Context, userID string) (verified, ok bool)
	Generation(ctx context.Context, userID string) (uint64, bool)
	SetVerified(ctx context.Context, userID string, verified bool, ttl time.Duration, gen uint64)
	Count(ctx context.Context) (int, bool)
	CountGeneration(ctx context.Context) (uint64, bool)
	SetCount(ctx context.Context, n int, ttl time.Duration, gen uint64)
	// Invalidate drops the user's entry and the count.
	Invalidate(ctx context.Context, userID string)
	Close()
}

const generationTTL = 24 * time.Hour

type redisCache struct {
	client  *redis.Client
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedisCache constructs a Redis backed cache.
func NewRedisCache(addr, password string, db int, logger *slog.Logger) (Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisCache{
		client:  client,
		logger:  logger,
		prefix:  "teamforge:identity:",
		timeout: 250 * time.Millisecond,
	}, nil
}

func (c *redisCache) userKey(userID string) string {
	return c.prefix + "verified:" + userID
}

func (c *redisCache) countKey() string {
	return c.prefix + "verified_count"
}

func (c *redisCache) userGenKey(userID string) string {
	return c.prefix + "gen:" + userID
}

func (c *redisCache) countGenKey() string {
	return c.prefix + "gen:verified_count"
}

func (c *redisCache) generation(ctx context.Context, key string) (uint64, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gen, err := c.client.Get(ctx, key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.logRedisError("get", err)
		return 0, false
	}
	return gen, true
}

// setIfGeneration writes key only while genKey still holds gen. A
// concurrent Invalidate either aborts the transaction or runs after it and
// deletes the value.
func (c *redisCache) setIfGeneration(ctx context.Context, key string, value any, ttl time.Duration, genKey string, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		return err
	}, genKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		c.logRedisError("set", err)
	}
}

func (c *redisCache) Generation(ctx context.Context, userID string) (uint64, bool) {
	return c.generation(ctx, c.userGenKey(userID))
}

func (c *redisCache) CountGeneration(ctx context.Context) (uint64, bool) {
	return c.generation(ctx, c.countGenKey())
}

func (c *redisCache) Verified(ctx context.Context, userID string) (bool, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.client.Get(ctx, c.userKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logRedisError("get", err)
		}
		return false, false
	}
	return v == "1", true
}

func (c *redisCache) SetVerified(ctx context.Context, userID string, verified bool, ttl time.Duration, gen uint64) {
	v := "0"
	if verified {
		v = "1"
	}
	c.setIfGeneration(ctx, c.userKey(userID), v, ttl, c.userGenKey(userID), gen)
}

func (c *redisCache) Count(ctx context.Context) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.client.Get(ctx, c.countKey()).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logRedisError("get", err)
		}
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *redisCache) SetCount(ctx context.Context, n int, ttl time.Duration, gen uint64) {
	c.setIfGeneration(ctx, c.countKey(), n, ttl, c.countGenKey(), gen)
}

func (c *redisCache) Invalidate(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, gen := range []string{c.userGenKey(userID), c.countGenKey()} {
			pipe.Incr(ctx, gen)
			pipe.Expire(ctx, gen, generationTTL)
		}
		pipe.Del(ctx, c.userKey(userID), c.countKey())
		return nil
	})
	if err != nil {
		c.logRedisError("invalidate", err)
	}
}

func (c *redisCache) Close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}

func (c *redisCache) logRedisError(op string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error("redis identity cache error", "op", op, "error", err)
}

type memoryEntry struct {
	value   int
	expires time.Time
}

type memoryCache struct {
	mu       sync.Mutex
	users    map[string]memoryEntry
	count    *memoryEntry
	gens     map[string]uint64
	countGen uint64
	now      func() time.Time
}

func NewMemoryCache() Cache {
	return &memoryCache{
		users: make(map[string]memoryEntry),
		gens:  make(map[string]uint64),
		now:   time.Now,
	}
}

func (c *memoryCache) Generation(_ context.Context, userID string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID], true
}

func (c *memoryCache) CountGeneration(context.Context) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countGen, true
}

func (c *memoryCache) Verified(_ context.Context, userID string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.users[userID]
	if !ok || c.now().After(e.expires) {
		delete(c.users, userID)
		return false, false
	}
	return e.value == 1, true
}

func (c *memoryCache) SetVerified(_ context.Context, userID string, verified bool, ttl time.Duration, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[userID] != gen {
		return
	}
	v := 0
	if verified {
		v = 1
	}
	c.users[userID] = memoryEntry{value: v, expires: c.now().Add(ttl)}
}

func (c *memoryCache) Count(context.Context) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count == nil || c.now().After(c.count.expires) {
		c.count = nil
		return 0, false
	}
	return c.count.value, true
}

func (c *memoryCache) SetCount(_ context.Context, n int, ttl time.Duration, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countGen != gen {
		return
	}
	c.count = &memoryEntry{value: n, expires: c.now().Add(ttl)}
}

func (c *memoryCache) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, userID)
	c.count = nil
	c.gens[userID]++
	c.countGen++
}

func (c *memoryCache) Close() {}
