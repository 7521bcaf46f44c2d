package infra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"localdeals/controlplane/domain"
)

func TestRedisLocker_MutualExclusion(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb)
	ctx := context.Background()

	tok, ok, err := l.TryAcquire(ctx, "order:1", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.TryAcquire(ctx, "order:1", 5*time.Second); ok {
		t.Fatalf("expected second acquire to fail while held")
	}
	if _, ok, _ := l.TryAcquire(ctx, "order:2", 5*time.Second); !ok {
		t.Fatalf("expected a different resource to be independent")
	}

	if err := l.Release(ctx, tok); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := l.TryAcquire(ctx, "order:1", 5*time.Second); !ok {
		t.Fatalf("expected acquire after release to succeed")
	}
}

func TestRedisLocker_ConcurrentAcquireHasSingleWinner(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb)

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := l.TryAcquire(context.Background(), "shop:1", time.Minute); err == nil && ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
}

func TestRedisLocker_StaleReleaseIsNoop(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb)
	ctx := context.Background()

	stale, ok, _ := l.TryAcquire(ctx, "order:7", time.Second)
	if !ok {
		t.Fatalf("expected acquire")
	}
	mr.FastForward(2 * time.Second)

	fresh, ok, _ := l.TryAcquire(ctx, "order:7", 10*time.Second)
	if !ok {
		t.Fatalf("expected acquire after lease expiry")
	}

	if err := l.Release(ctx, stale); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	got, err := mr.Get("lock:order:7")
	if err != nil {
		t.Fatalf("expected lock key to survive stale release: %v", err)
	}
	if got != fresh.Owner {
		t.Fatalf("expected owner %q, got %q", fresh.Owner, got)
	}
}

func TestRedisLocker_LeaseIsSetOnKey(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb, WithLockPrefix("mylock:"))

	if _, ok, _ := l.TryAcquire(context.Background(), "r", 3*time.Second); !ok {
		t.Fatalf("expected acquire")
	}
	if ttl := mr.TTL("mylock:r"); ttl != 3*time.Second {
		t.Fatalf("expected ttl 3s, got %s", ttl)
	}
}

func TestRedisLocker_RejectsNonPositiveLease(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb)

	if _, _, err := l.TryAcquire(context.Background(), "r", 0); err == nil {
		t.Fatalf("expected error for zero lease")
	}
}

func TestRedisLocker_StoreDownIsError(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb)
	mr.Close()

	_, ok, err := l.TryAcquire(context.Background(), "r", time.Second)
	if ok {
		t.Fatalf("expected no lock when store is down")
	}
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
