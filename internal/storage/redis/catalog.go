// Package redis provides a read-through Redis cache in front of the catalog
// repository.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/booking-orders/internal/domain/catalog"
)

const (
	servicePrefix = "catalog:service:"
	extraPrefix   = "catalog:extra:"
)

var _ catalog.Repository = (*CatalogCache)(nil)

// CatalogCache serves catalog entries from Redis and loads misses from the
// wrapped repository. Redis failures degrade to the wrapped repository.
type CatalogCache struct {
	client  *goredis.Client
	next    catalog.Repository
	baseTTL time.Duration
}

// NewCatalogCache wraps next with a Redis cache. Entries expire after ttl plus
// up to 20% jitter so a bulk import does not expire all at once.
func NewCatalogCache(client *goredis.Client, next catalog.Repository, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, next: next, baseTTL: ttl}
}

func (c *CatalogCache) ServicesByIDs(ctx context.Context, ids []string) ([]catalog.Service, error) {
	return readThrough(ctx, c, servicePrefix, ids, c.next.ServicesByIDs, func(s catalog.Service) string { return s.ID })
}

func (c *CatalogCache) ExtrasByIDs(ctx context.Context, ids []string) ([]catalog.Extra, error) {
	return readThrough(ctx, c, extraPrefix, ids, c.next.ExtrasByIDs, func(e catalog.Extra) string { return e.ID })
}

// InvalidateServices drops cached service entries.
func (c *CatalogCache) InvalidateServices(ctx context.Context, ids ...string) error {
	return c.invalidate(ctx, servicePrefix, ids)
}

// InvalidateExtras drops cached extra-service entries.
func (c *CatalogCache) InvalidateExtras(ctx context.Context, ids ...string) error {
	return c.invalidate(ctx, extraPrefix, ids)
}

// Ping reports whether Redis is reachable.
func (c *CatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *CatalogCache) invalidate(ctx context.Context, prefix string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys(prefix, ids)...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *CatalogCache) ttl() time.Duration {
	jitter := time.Duration(rand.Int64N(int64(c.baseTTL)/5 + 1))
	return c.baseTTL + jitter
}

func readThrough[T any](
	ctx context.Context,
	c *CatalogCache,
	prefix string,
	ids []string,
	load func(context.Context, []string) ([]T, error),
	idOf func(T) string,
) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	lg := zctx.From(ctx)

	vals, err := c.client.MGet(ctx, keys(prefix, ids)...).Result()
	if err != nil {
		lg.Warn("Catalog cache read failed", zap.String("prefix", prefix), zap.Error(err))
		return load(ctx, ids)
	}

	var (
		hits    = make([]T, 0, len(ids))
		missing []string
	)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		hits = append(hits, item)
	}
	if len(missing) == 0 {
		return hits, nil
	}

	loaded, err := load(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.client.Pipeline()
	for _, item := range loaded {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal catalog entry failed: %w", err)
		}
		pipe.Set(ctx, prefix+idOf(item), data, c.ttl())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		lg.Warn("Catalog cache write failed", zap.String("prefix", prefix), zap.Error(err))
	}

	return append(hits, loaded...), nil
}

func keys(prefix string, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = prefix + id
	}
	return out
}
