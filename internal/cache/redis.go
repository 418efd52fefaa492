// Package cache keeps the latest aggregate result in redis so repeated
// dashboard loads do not fan out to every regional database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

const aggregateKey = "cnec:creators:aggregate"

// AggregateCache stores the merged creator view with a TTL. All
// failures are soft: a broken redis degrades to uncached aggregation,
// never to an error the caller sees.
type AggregateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Config holds redis connection settings. An empty Addr disables
// caching.
type Config struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// New dials redis and verifies the connection. A nil return with nil
// error means caching is disabled by configuration.
func New(ctx context.Context, cfg Config) (*AggregateCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrapf(err, "cache: ping %s", cfg.Addr)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AggregateCache{client: client, ttl: ttl}, nil
}

// GetAggregate returns the cached result, or false on miss, expiry, or
// any redis/decode failure.
func (c *AggregateCache) GetAggregate(ctx context.Context) (*model.AggregateResult, bool) {
	payload, err := c.client.Get(ctx, aggregateKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("cache: get aggregate failed", zap.Error(err))
		}
		return nil, false
	}

	var result model.AggregateResult
	if err := json.Unmarshal(payload, &result); err != nil {
		zap.L().Warn("cache: decode aggregate failed", zap.Error(err))
		return nil, false
	}
	return &result, true
}

// SetAggregate stores the result. Failures are logged and swallowed.
func (c *AggregateCache) SetAggregate(ctx context.Context, result *model.AggregateResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		zap.L().Warn("cache: encode aggregate failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, aggregateKey, payload, c.ttl).Err(); err != nil {
		zap.L().Warn("cache: set aggregate failed", zap.Error(err))
	}
}

// Invalidate drops the cached aggregate, forcing the next call to
// refetch. Used after a snapshot sync.
func (c *AggregateCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, aggregateKey).Err(); err != nil {
		zap.L().Warn("cache: invalidate failed", zap.Error(err))
	}
}

// Close releases the redis connection.
func (c *AggregateCache) Close() error {
	return c.client.Close()
}
