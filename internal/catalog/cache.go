package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Cache is a redis read-through cache for single products. Concurrent misses for
// the same product collapse into one load.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Fetch returns the cached product or populates the cache using loader.
func (c *Cache) Fetch(ctx context.Context, id int64, loader func(context.Context) (Product, error)) (Product, error) {
	if loader == nil {
		return Product{}, errors.New("catalog cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := shared.ProductCacheKey(id)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var p Product
		if err := json.Unmarshal(payload, &p); err == nil {
			return p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}

	ch := c.group.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		p, err := loader(ctx)
		if err != nil {
			return Product{}, err
		}
		if raw, err := json.Marshal(p); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return p, nil
	})
	select {
	case <-ctx.Done():
		return Product{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Product{}, res.Err
		}
		return res.Val.(Product), nil
	}
}

// Invalidate drops the cached copy of a product.
func (c *Cache) Invalidate(ctx context.Context, id int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, shared.ProductCacheKey(id)).Err()
}
