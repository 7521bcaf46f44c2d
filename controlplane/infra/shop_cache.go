package infra

import (
	"context"
	"strconv"

	"localdeals/controlplane/domain"

	"github.com/redis/go-redis/v9"
)

// ShopCache adapta Cache[domain.Shop] para domain.ShopCache.
type ShopCache struct {
	c *Cache[domain.Shop]
}

func NewShopCache(rdb redis.Cmdable, locker domain.Locker, pool *RebuildPool, shops domain.ShopRepository, opts ...CacheOption) *ShopCache {
	load := func(ctx context.Context, id string) (domain.Shop, error) {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return domain.Shop{}, domain.ErrNotFound
		}
		return shops.LoadByID(ctx, n)
	}
	return &ShopCache{c: NewCache[domain.Shop](rdb, locker, pool, "shop", load, opts...)}
}

func (s *ShopCache) Get(ctx context.Context, id int64, strategy domain.Strategy) (domain.Shop, bool, error) {
	return s.c.Get(ctx, strconv.FormatInt(id, 10), strategy)
}

func (s *ShopCache) SetLogical(ctx context.Context, id int64, shop domain.Shop) error {
	return s.c.SetLogical(ctx, strconv.FormatInt(id, 10), shop)
}

func (s *ShopCache) Invalidate(ctx context.Context, id int64) error {
	return s.c.Invalidate(ctx, strconv.FormatInt(id, 10))
}
