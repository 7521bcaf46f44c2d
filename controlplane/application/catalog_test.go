package application

import (
	"context"
	"errors"
	"testing"

	"localdeals/controlplane/domain"
	"localdeals/controlplane/infra"
)

type spyShopCache struct {
	strategies  []domain.Strategy
	invalidated []int64
	preheated   map[int64]domain.Shop
	err         error
}

func (c *spyShopCache) Get(_ context.Context, id int64, s domain.Strategy) (domain.Shop, bool, error) {
	c.strategies = append(c.strategies, s)
	return domain.Shop{ID: id}, true, nil
}

func (c *spyShopCache) SetLogical(_ context.Context, id int64, s domain.Shop) error {
	if c.preheated == nil {
		c.preheated = map[int64]domain.Shop{}
	}
	c.preheated[id] = s
	return c.err
}

func (c *spyShopCache) Invalidate(_ context.Context, id int64) error {
	c.invalidated = append(c.invalidated, id)
	return c.err
}

type brokenShops struct{}

func (brokenShops) LoadByID(context.Context, int64) (domain.Shop, error) {
	return domain.Shop{}, errors.New("db down")
}
func (brokenShops) Update(context.Context, domain.Shop) error { return errors.New("db down") }

func TestCatalogService_QueryUsesDefaultStrategy(t *testing.T) {
	cache := &spyShopCache{}
	svc := CatalogService{Cache: cache, Strategy: domain.Mutex}

	_, _, _ = svc.QueryShop(context.Background(), 1, "")
	_, _, _ = svc.QueryShop(context.Background(), 1, domain.LogicalExpire)

	if len(cache.strategies) != 2 || cache.strategies[0] != domain.Mutex || cache.strategies[1] != domain.LogicalExpire {
		t.Fatalf("unexpected strategies %v", cache.strategies)
	}
}

func TestCatalogService_UpdateWritesThenInvalidates(t *testing.T) {
	shops := infra.NewMemoryShops(domain.Shop{ID: 1, Name: "old"})
	cache := &spyShopCache{}
	svc := CatalogService{Shops: shops, Cache: cache}
	ctx := context.Background()

	if err := svc.UpdateShop(ctx, domain.Shop{ID: 1, Name: "new"}); err != nil {
		t.Fatalf("UpdateShop: %v", err)
	}
	s, _ := shops.LoadByID(ctx, 1)
	if s.Name != "new" {
		t.Fatalf("expected repository updated, got %q", s.Name)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != 1 {
		t.Fatalf("expected cache invalidated for shop 1, got %v", cache.invalidated)
	}
}

func TestCatalogService_UpdateRewritesLogicalRecord(t *testing.T) {
	shops := infra.NewMemoryShops(domain.Shop{ID: 1, Name: "old"})
	cache := &spyShopCache{}
	svc := CatalogService{Shops: shops, Cache: cache, Strategy: domain.LogicalExpire}

	if err := svc.UpdateShop(context.Background(), domain.Shop{ID: 1, Name: "new"}); err != nil {
		t.Fatalf("UpdateShop: %v", err)
	}
	if len(cache.invalidated) != 0 {
		t.Fatalf("expected no invalidation under logical expiry, got %v", cache.invalidated)
	}
	if cache.preheated[1].Name != "new" {
		t.Fatalf("expected logical record rewritten with the update, got %+v", cache.preheated)
	}
}

// Fim a fim sobre o Redis: depois do update a leitura lógica ainda acha a loja.
func TestCatalogService_UpdateKeepsLogicalReadsWarm(t *testing.T) {
	env := newTestEnv(t)
	shops := infra.NewMemoryShops(domain.Shop{ID: 4, Name: "old"})
	svc := CatalogService{
		Shops:    shops,
		Cache:    infra.NewShopCache(env.rdb, env.locker, nil, shops),
		Strategy: domain.LogicalExpire,
	}
	ctx := context.Background()

	if _, err := svc.PreheatShop(ctx, 4); err != nil {
		t.Fatalf("PreheatShop: %v", err)
	}
	if err := svc.UpdateShop(ctx, domain.Shop{ID: 4, Name: "new"}); err != nil {
		t.Fatalf("UpdateShop: %v", err)
	}
	s, found, err := svc.QueryShop(ctx, 4, "")
	if err != nil || !found || s.Name != "new" {
		t.Fatalf("expected updated shop served, got %+v found=%v err=%v", s, found, err)
	}
}

func TestCatalogService_UpdateRequiresID(t *testing.T) {
	cache := &spyShopCache{}
	svc := CatalogService{Shops: infra.NewMemoryShops(), Cache: cache}

	if err := svc.UpdateShop(context.Background(), domain.Shop{Name: "x"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(cache.invalidated) != 0 {
		t.Fatalf("expected no invalidation")
	}
}

func TestCatalogService_FailedUpdateKeepsCache(t *testing.T) {
	cache := &spyShopCache{}
	svc := CatalogService{Shops: brokenShops{}, Cache: cache}

	if err := svc.UpdateShop(context.Background(), domain.Shop{ID: 1}); err == nil {
		t.Fatalf("expected error")
	}
	if len(cache.invalidated) != 0 {
		t.Fatalf("expected cache untouched when the write fails")
	}
}

func TestCatalogService_Preheat(t *testing.T) {
	shops := infra.NewMemoryShops(domain.Shop{ID: 1, Name: "hot"})
	cache := &spyShopCache{}
	svc := CatalogService{Shops: shops, Cache: cache}
	ctx := context.Background()

	ok, err := svc.PreheatShop(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("expected preheat, ok=%v err=%v", ok, err)
	}
	if cache.preheated[1].Name != "hot" {
		t.Fatalf("expected logical record written, got %+v", cache.preheated)
	}

	ok, err = svc.PreheatShop(ctx, 2)
	if err != nil || ok {
		t.Fatalf("expected absent shop not preheated, ok=%v err=%v", ok, err)
	}
}

func TestCatalogService_PreheatUpstreamFailure(t *testing.T) {
	svc := CatalogService{Shops: brokenShops{}, Cache: &spyShopCache{}}

	if _, err := svc.PreheatShop(context.Background(), 1); !errors.Is(err, domain.ErrUpstreamLoad) {
		t.Fatalf("expected ErrUpstreamLoad, got %v", err)
	}
}
