// Package rediscache provides a distance.Cache shared between service
// instances through Redis.
//
// Lookups go to a process-local distance.MemoryCache first and fall back to
// Redis; values found in Redis are promoted locally. Redis failures are
// logged and treated as misses, which only costs a recomputation because
// distances are pure functions of their key.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/fleet-pricing/distance"
)

const (
	DefaultPrefix  = "fleetpricing:distance:"
	DefaultTTL     = 24 * time.Hour
	DefaultTimeout = 200 * time.Millisecond
)

type Options struct {
	Prefix  string
	TTL     time.Duration
	Timeout time.Duration
	Logger  *zap.Logger
}

// Cache implements distance.Cache on top of a local tier and Redis.
type Cache struct {
	client  redis.UniversalClient
	local   *distance.MemoryCache
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

var _ distance.Cache = (*Cache)(nil)

func New(client redis.UniversalClient, opts Options) *Cache {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		client:  client,
		local:   distance.NewMemoryCache(),
		prefix:  opts.Prefix,
		ttl:     opts.TTL,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// Dial connects to addr and pings it before returning.
func Dial(ctx context.Context, addr, password string, db int, opts Options) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return New(client, opts), nil
}

func (c *Cache) Get(key string) (distance.Result, bool) {
	if r, ok := c.local.Get(key); ok {
		return r, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("distance cache read failed", zap.String("key", key), zap.Error(err))
		}
		return distance.Result{}, false
	}

	var r distance.Result
	if err := json.Unmarshal(data, &r); err != nil {
		c.logger.Warn("distance cache entry corrupt", zap.String("key", key), zap.Error(err))
		return distance.Result{}, false
	}
	c.local.Set(key, r)
	return r, true
}

func (c *Cache) Set(key string, r distance.Result) {
	c.local.Set(key, r)

	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("distance cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("distance cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Len reports the local tier only.
func (c *Cache) Len() int {
	return c.local.Len()
}

// Reset clears the local tier. Shared entries stay in Redis until they expire.
func (c *Cache) Reset() {
	c.local.Reset()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
