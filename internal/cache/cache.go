// Package cache memoizes recommendations in Redis. Entries are keyed by the
// active weights fingerprint, so a weights reload never serves stale prices.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

const keyPrefix = "priceengine:rec:"

// Cache stores evaluated results by key.
type Cache interface {
	Get(ctx context.Context, key string) (*pricing.Result, bool, error)
	Set(ctx context.Context, key string, res *pricing.Result) error
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type RedisCache struct {
	cli *redis.Client
	ttl time.Duration
}

func NewRedisCache(cfg RedisConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return NewRedisCacheWithClient(rdb, cfg.TTL)
}

func NewRedisCacheWithClient(cli *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{cli: cli, ttl: ttl}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.cli.Close()
}

// entry carries the fields Result hides from its JSON form.
type entry struct {
	Result      *pricing.Result `json:"result"`
	Branch      string          `json:"branch"`
	MinPriceHit bool            `json:"min_price_hit"`
	CeilingHit  bool            `json:"ceiling_hit"`
}

func encode(res *pricing.Result) ([]byte, error) {
	return json.Marshal(entry{
		Result:      res,
		Branch:      res.Branch,
		MinPriceHit: res.MinPriceHit,
		CeilingHit:  res.CeilingHit,
	})
}

func decode(b []byte) (*pricing.Result, error) {
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	if e.Result == nil {
		return nil, errors.New("cache entry has no result")
	}
	e.Result.Branch = e.Branch
	e.Result.MinPriceHit = e.MinPriceHit
	e.Result.CeilingHit = e.CeilingHit
	return e.Result, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*pricing.Result, bool, error) {
	b, err := c.cli.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	res, err := decode(b)
	if err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, res *pricing.Result) error {
	b, err := encode(res)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return c.cli.Set(ctx, key, b, c.ttl).Err()
}

// Key derives the cache key for a request body evaluated under the weights
// identified by fingerprint. Map keys are sorted by encoding/json, so equal
// bodies produce equal keys.
func Key(fingerprint string, body map[string]any, explain bool) (string, error) {
	canonical, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("canonicalize request: %w", err)
	}
	h := sha256.New()
	h.Write(canonical)
	if explain {
		h.Write([]byte{1})
	}
	return keyPrefix + fingerprint + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
