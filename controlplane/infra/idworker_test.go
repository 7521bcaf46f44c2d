package infra

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestRedisIDWorker_Layout(t *testing.T) {
	mr, rdb := newTestRedis(t)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	w := NewRedisIDWorker(rdb, withIDClock(func() time.Time { return now }))

	id1, err := w.NextID(context.Background(), "order")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	id2, _ := w.NextID(context.Background(), "order")

	wantTS := now.Unix() - idEpoch
	if got := id1 >> 32; got != wantTS {
		t.Fatalf("expected timestamp bits %d, got %d", wantTS, got)
	}
	if got := id1 & 0xffffffff; got != 1 {
		t.Fatalf("expected first counter 1, got %d", got)
	}
	if id2 != id1+1 {
		t.Fatalf("expected consecutive ids in the same second, got %d then %d", id1, id2)
	}

	if ttl := mr.TTL("icr:order:2024:03:05"); ttl != 48*time.Hour {
		t.Fatalf("expected counter ttl 48h, got %s", ttl)
	}
}

func TestRedisIDWorker_MonotonicAcrossSeconds(t *testing.T) {
	_, rdb := newTestRedis(t)
	clock := newFakeClock(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	w := NewRedisIDWorker(rdb, withIDClock(clock.Now))

	prev := int64(-1)
	for i := 0; i < 20; i++ {
		id, err := w.NextID(context.Background(), "order")
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if id <= prev {
			t.Fatalf("expected strictly increasing ids, got %d after %d", id, prev)
		}
		prev = id
		if i%3 == 0 {
			clock.Advance(time.Second)
		}
	}
}

func TestRedisIDWorker_NamespacesAndDaysHaveOwnCounters(t *testing.T) {
	_, rdb := newTestRedis(t)
	clock := newFakeClock(time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC))
	w := NewRedisIDWorker(rdb, withIDClock(clock.Now))
	ctx := context.Background()

	_, _ = w.NextID(ctx, "order")
	_, _ = w.NextID(ctx, "order")
	other, _ := w.NextID(ctx, "shop")
	if other&0xffffffff != 1 {
		t.Fatalf("expected namespace shop to start at 1, got %d", other&0xffffffff)
	}

	clock.Advance(time.Second)
	next, _ := w.NextID(ctx, "order")
	if next&0xffffffff != 1 {
		t.Fatalf("expected a new day to start at 1, got %d", next&0xffffffff)
	}
}

func TestRedisIDWorker_UniqueUnderConcurrency(t *testing.T) {
	_, rdb := newTestRedis(t)
	w := NewRedisIDWorker(rdb)

	const n = 1000
	ids := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			id, err := w.NextID(context.Background(), "order")
			ids[i] = id
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("NextID: %v", err)
	}

	seen := make(map[int64]struct{}, n)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
}
