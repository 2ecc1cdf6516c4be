package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/viralengine/internal/logging"
)

// DefaultCacheTTL keeps keyword volumes for a day.
const DefaultCacheTTL = 24 * time.Hour

// sharedLookupTimeout bounds a collapsed upstream lookup, which runs
// detached from any single caller's cancellation.
const sharedLookupTimeout = 30 * time.Second

// Cache stores encoded keyword lookups.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memEntry
	now   func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.items[key] = memEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// RedisCache shares keyword lookups between processes.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCache wraps a redis client. Keys are namespaced with prefix.
func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "viralengine:kw:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// DialRedis connects to a redis:// URL and verifies it with PING.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachedVolume memoizes a VolumeProvider. Misses for the same keyword are
// collapsed into one upstream call. "No data" answers are cached too.
// Cache failures are logged and fall through to the provider.
type CachedVolume struct {
	next  VolumeProvider
	cache Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedVolume wraps next. A nil cache uses a MemoryCache.
func NewCachedVolume(next VolumeProvider, cache Cache, ttl time.Duration) *CachedVolume {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedVolume{next: next, cache: cache, ttl: ttl}
}

func (c *CachedVolume) Name() string { return c.next.Name() }

// cachedKeyword is the cache encoding; Found=false records "no data".
type cachedKeyword struct {
	Found bool         `json:"found"`
	Data  *KeywordData `json:"data,omitempty"`
}

func (c *CachedVolume) KeywordData(ctx context.Context, keyword string) (*KeywordData, error) {
	key := c.next.Name() + ":" + strings.ToLower(strings.TrimSpace(keyword))

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		logging.Warn("keyword cache read failed", "key", key, "error", err)
	} else if ok {
		var hit cachedKeyword
		if err := json.Unmarshal(raw, &hit); err == nil {
			return hit.Data, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		data, err := c.next.KeywordData(lctx, keyword)
		if err != nil {
			return nil, err
		}
		raw, _ := json.Marshal(cachedKeyword{Found: data != nil, Data: data})
		if err := c.cache.Set(lctx, key, raw, c.ttl); err != nil {
			logging.Warn("keyword cache write failed", "key", key, "error", err)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*KeywordData), nil
	}
}
