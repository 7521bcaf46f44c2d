package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"localdeals/controlplane/domain"
	"localdeals/controlplane/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testEnv struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	locker   *infra.RedisLocker
	queue    *infra.RedisStreamQueue
	admitter *infra.RedisAdmitter
	orders   *infra.MemoryOrders
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := infra.NewRedisStreamQueue(rdb, infra.WithReadBlock(10*time.Millisecond))
	if err := q.EnsureGroup(context.Background()); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}
	return &testEnv{
		mr:       mr,
		rdb:      rdb,
		locker:   infra.NewRedisLocker(rdb),
		queue:    q,
		admitter: infra.NewRedisAdmitter(rdb, infra.WithAdmissionStream(q.Stream())),
		orders:   infra.NewMemoryOrders(),
	}
}

func (e *testEnv) worker(consumer string) *OrderWorker {
	return &OrderWorker{
		Queue:      e.queue,
		Locker:     e.locker,
		Orders:     e.orders,
		Consumer:   consumer,
		RetryDelay: time.Millisecond,
	}
}

func (e *testEnv) pending(t *testing.T) int64 {
	t.Helper()
	n, err := e.queue.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	return n
}

// drain processa até a fila ficar vazia para este consumidor. Lock ocupado
// não é falha: a entrada fica pendente para RecoverPending.
func drain(t *testing.T, w *OrderWorker) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		n, err := w.ProcessNext(context.Background())
		if errors.Is(err, domain.ErrLockNotAcquired) {
			continue
		}
		if err != nil {
			t.Errorf("ProcessNext: %v", err)
			return
		}
		if n == 0 {
			return
		}
	}
	t.Errorf("queue never drained")
}

type recordingPublisher struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (p *recordingPublisher) OrderCreated(_ context.Context, o domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, o)
	return nil
}

func (p *recordingPublisher) Published() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Order(nil), p.orders...)
}
