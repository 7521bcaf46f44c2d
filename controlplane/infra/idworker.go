package infra

import (
	"context"
	"fmt"
	"time"

	"localdeals/controlplane/domain"

	"github.com/redis/go-redis/v9"
)

const (
	// 2022-01-01T00:00:00Z
	idEpoch     int64 = 1640995200
	idCountBits       = 32
)

// RedisIDWorker implementa domain.IDGenerator. O único estado compartilhado é
// o INCR em icr:<namespace>:<yyyy:mm:dd>.
type RedisIDWorker struct {
	rdb       redis.Cmdable
	prefix    string
	keepAlive time.Duration
	now       func() time.Time
}

type IDWorkerOption func(*RedisIDWorker)

// WithCounterTTL define por quanto tempo o contador diário sobrevive (padrão 48h).
func WithCounterTTL(d time.Duration) IDWorkerOption {
	return func(w *RedisIDWorker) { w.keepAlive = d }
}

func withIDClock(now func() time.Time) IDWorkerOption {
	return func(w *RedisIDWorker) { w.now = now }
}

func NewRedisIDWorker(rdb redis.Cmdable, opts ...IDWorkerOption) *RedisIDWorker {
	w := &RedisIDWorker{
		rdb:       rdb,
		prefix:    "icr",
		keepAlive: 48 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *RedisIDWorker) NextID(ctx context.Context, namespace string) (int64, error) {
	now := w.now().UTC()
	ts := now.Unix() - idEpoch

	key := fmt.Sprintf("%s:%s:%s", w.prefix, namespace, now.Format("2006:01:02"))

	pipe := w.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if w.keepAlive > 0 {
		pipe.Expire(ctx, key, w.keepAlive)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("next id %s: %w: %w", namespace, domain.ErrStoreUnavailable, err)
	}

	return ts<<idCountBits | incr.Val(), nil
}
