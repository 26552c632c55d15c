// Package cache keeps the catalog listing in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sweetshop/apiserver/config"
	"github.com/sweetshop/apiserver/types"
)

const (
	generationKey = "sweets:gen"
	listKeyPrefix = "sweets:all:"
)

// CatalogCache stores the full sweet listing under a generation-scoped key.
// Invalidation bumps the generation; listings of older generations expire
// through their TTL.
type CatalogCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCatalogCache(rdb *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{rdb: rdb, ttl: ttl}
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg config.CacheConfig) (*CatalogCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewCatalogCache(rdb, cfg.TTL), nil
}

func listKey(gen int64) string {
	return listKeyPrefix + strconv.FormatInt(gen, 10)
}

// Generation returns the current listing generation. A missing counter is
// generation zero.
func (c *CatalogCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetList returns the listing cached for gen. ok is false on a miss.
func (c *CatalogCache) GetList(ctx context.Context, gen int64) ([]types.Sweet, bool, error) {
	data, err := c.rdb.Get(ctx, listKey(gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var sweets []types.Sweet
	if err := json.Unmarshal(data, &sweets); err != nil {
		return nil, false, fmt.Errorf("decode cached listing: %w", err)
	}
	if sweets == nil {
		sweets = []types.Sweet{}
	}
	return sweets, true, nil
}

func (c *CatalogCache) SetList(ctx context.Context, gen int64, sweets []types.Sweet) error {
	data, err := json.Marshal(sweets)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, listKey(gen), data, c.ttl).Err()
}

func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, generationKey).Err()
}

func (c *CatalogCache) Close() error {
	return c.rdb.Close()
}
