package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const backendTimeout = 2 * time.Second

// Clock returns the current time. Replaced in tests.
type Clock func() time.Time

type cacheEntry struct {
	value     interface{}
	createdAt time.Time
	ttl       time.Duration
}

// CacheBackend is an optional shared tier behind the in-memory cache
type CacheBackend interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) (time.Duration, bool, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// ResultCache is a TTL cache with lazy eviction on read
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	defaultTTL time.Duration
	now        Clock
	backend    CacheBackend
	logger     *logrus.Logger
}

type CacheOption func(c *ResultCache)

func WithClock(clock Clock) CacheOption {
	return func(c *ResultCache) { c.now = clock }
}

func WithBackend(backend CacheBackend) CacheOption {
	return func(c *ResultCache) { c.backend = backend }
}

func NewResultCache(defaultTTL time.Duration, logger *logrus.Logger, opts ...CacheOption) *ResultCache {
	c := &ResultCache{
		entries:    make(map[string]cacheEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key with the default TTL unless one is given
func (c *ResultCache) Set(key string, value interface{}, ttl ...time.Duration) {
	d := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		d = ttl[0]
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, createdAt: c.now(), ttl: d}
	c.mu.Unlock()

	if c.backend != nil {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		if err := c.backend.Set(ctx, key, value, d); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Shared cache write failed")
		}
	}
}

// Get returns the value while now - createdAt <= ttl. Expired entries are evicted.
func (c *ResultCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.createdAt) > entry.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *ResultCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	c.withBackend(func(ctx context.Context) error { return c.backend.Delete(ctx, key) }, key)
}

// InvalidatePrefix removes every key starting with prefix
func (c *ResultCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	c.withBackend(func(ctx context.Context) error { return c.backend.DeletePrefix(ctx, prefix) }, prefix+"*")
}

func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()

	c.withBackend(func(ctx context.Context) error { return c.backend.DeletePrefix(ctx, "") }, "*")
}

// Purge drops expired entries and returns how many were removed
func (c *ResultCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > entry.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, expired or not
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) withBackend(op func(ctx context.Context) error, key string) {
	if c.backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
	defer cancel()
	if err := op(ctx); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Shared cache invalidation failed")
	}
}

// Lookup reads key from memory, then from the shared tier, refilling memory on a
// shared hit. Values of another type count as a miss.
func Lookup[T any](ctx context.Context, c *ResultCache, key string) (T, bool) {
	var zero T
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, true
		}
		return zero, false
	}
	if c.backend == nil {
		return zero, false
	}

	var dest T
	ttl, found, err := c.backend.Get(ctx, key, &dest)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Shared cache read failed")
		return zero, false
	}
	if !found {
		return zero, false
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: dest, createdAt: c.now(), ttl: ttl}
	c.mu.Unlock()
	return dest, true
}

// RedisCacheBackend stores JSON values in redis under a key prefix
type RedisCacheBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisCacheBackend(client *redis.Client, prefix string) *RedisCacheBackend {
	return &RedisCacheBackend{client: client, prefix: prefix}
}

func (b *RedisCacheBackend) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := b.client.Set(ctx, b.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Get decodes key into dest and reports the remaining TTL
func (b *RedisCacheBackend) Get(ctx context.Context, key string, dest interface{}) (time.Duration, bool, error) {
	pipe := b.client.Pipeline()
	getCmd := pipe.Get(ctx, b.prefix+key)
	ttlCmd := pipe.PTTL(ctx, b.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, false, fmt.Errorf("failed to get cache: %w", err)
	}

	data, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return 0, false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

func (b *RedisCacheBackend) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = b.prefix + k
	}
	if err := b.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// DeletePrefix removes every key under prefix, leaving other redis data alone
func (b *RedisCacheBackend) DeletePrefix(ctx context.Context, prefix string) error {
	iter := b.client.Scan(ctx, 0, b.prefix+prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := b.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache: %w", err)
	}
	if len(batch) > 0 {
		if err := b.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache: %w", err)
		}
	}
	return nil
}

// CacheJanitor purges expired entries on a cron schedule
type CacheJanitor struct {
	cache     *ResultCache
	schedule  string
	logger    *logrus.Logger
	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewCacheJanitor(cache *ResultCache, schedule string, logger *logrus.Logger) *CacheJanitor {
	return &CacheJanitor{
		cache:    cache,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start begins the scheduled sweeps
func (j *CacheJanitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isRunning {
		return fmt.Errorf("cache janitor is already running")
	}

	if _, err := j.cron.AddFunc(j.schedule, j.Sweep); err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}

	j.cron.Start()
	j.isRunning = true
	j.logger.WithField("schedule", j.schedule).Info("Cache janitor started")
	return nil
}

// Sweep purges the cache once
func (j *CacheJanitor) Sweep() {
	if removed := j.cache.Purge(); removed > 0 {
		j.logger.WithField("removed", removed).Debug("Purged expired cache entries")
	}
}

// Stop halts the sweeps and waits for a running one to finish
func (j *CacheJanitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.isRunning {
		return
	}

	ctx := j.cron.Stop()
	<-ctx.Done()

	j.isRunning = false
	j.logger.Info("Cache janitor stopped")
}

// Status reports the schedule and next run
func (j *CacheJanitor) Status() map[string]interface{} {
	j.mu.Lock()
	defer j.mu.Unlock()

	status := map[string]interface{}{
		"is_running": j.isRunning,
		"schedule":   j.schedule,
		"entries":    j.cache.Len(),
	}
	if entries := j.cron.Entries(); len(entries) > 0 {
		status["next_run"] = entries[0].Next
	}
	return status
}
