package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"localdeals/controlplane/domain"

	"github.com/redis/go-redis/v9"
)

// Campos da mensagem no stream. O script de admissão grava os mesmos campos.
const (
	fieldOrderID    = "id"
	fieldUserID     = "userId"
	fieldVoucherID  = "voucherId"
	fieldEnqueuedAt = "enqueuedAt"
)

// RedisStreamQueue implementa domain.IntentQueue sobre Redis Streams com
// grupo de consumidores. O pending set de cada consumidor é o PEL do Redis.
type RedisStreamQueue struct {
	rdb    redis.Cmdable
	stream string
	group  string
	count  int64
	block  time.Duration
}

type StreamOption func(*RedisStreamQueue)

func WithStream(name string) StreamOption {
	return func(q *RedisStreamQueue) { q.stream = name }
}

func WithGroup(name string) StreamOption {
	return func(q *RedisStreamQueue) { q.group = name }
}

// WithReadBlock é quanto ReadNew espera quando não há entradas novas.
func WithReadBlock(d time.Duration) StreamOption {
	return func(q *RedisStreamQueue) { q.block = d }
}

func WithReadCount(n int64) StreamOption {
	return func(q *RedisStreamQueue) { q.count = n }
}

func NewRedisStreamQueue(rdb redis.Cmdable, opts ...StreamOption) *RedisStreamQueue {
	q := &RedisStreamQueue{
		rdb:    rdb,
		stream: "stream.orders",
		group:  "g1",
		count:  1,
		block:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisStreamQueue) Stream() string { return q.stream }

// EnsureGroup cria o stream e o grupo (a partir do início) se ainda não existirem.
func (q *RedisStreamQueue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s/%s: %w: %w", q.stream, q.group, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (q *RedisStreamQueue) Enqueue(ctx context.Context, in domain.OrderIntent) (string, error) {
	if in.EnqueuedAt.IsZero() {
		in.EnqueuedAt = time.Now()
	}
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: []any{
			fieldOrderID, strconv.FormatInt(in.OrderID, 10),
			fieldUserID, strconv.FormatInt(in.UserID, 10),
			fieldVoucherID, strconv.FormatInt(in.VoucherID, 10),
			fieldEnqueuedAt, strconv.FormatInt(in.EnqueuedAt.UnixMilli(), 10),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue order %d: %w: %w", in.OrderID, domain.ErrStoreUnavailable, err)
	}
	return id, nil
}

func (q *RedisStreamQueue) ReadNew(ctx context.Context, consumer string) ([]domain.Delivery, error) {
	return q.read(ctx, consumer, ">", q.block)
}

// ReadPending não bloqueia: leituras de histórico ("0") respondem na hora.
func (q *RedisStreamQueue) ReadPending(ctx context.Context, consumer string) ([]domain.Delivery, error) {
	return q.read(ctx, consumer, "0", -1)
}

func (q *RedisStreamQueue) read(ctx context.Context, consumer, from string, block time.Duration) ([]domain.Delivery, error) {
	args := &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, from},
		Count:    q.count,
		Block:    block,
	}
	res, err := q.rdb.XReadGroup(ctx, args).Result()
	if err != nil && strings.Contains(err.Error(), "NOGROUP") {
		if gerr := q.EnsureGroup(ctx); gerr != nil {
			return nil, gerr
		}
		res, err = q.rdb.XReadGroup(ctx, args).Result()
	}
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read %s as %s: %w: %w", q.stream, consumer, domain.ErrStoreUnavailable, err)
	}

	var out []domain.Delivery
	for _, s := range res {
		for _, m := range s.Messages {
			out = append(out, decodeDelivery(m))
		}
	}
	return out, nil
}

func (q *RedisStreamQueue) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := q.rdb.XAck(ctx, q.stream, q.group, ids...).Err(); err != nil {
		return fmt.Errorf("ack %v: %w: %w", ids, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// PendingCount devolve quantas entradas do grupo aguardam ack.
func (q *RedisStreamQueue) PendingCount(ctx context.Context) (int64, error) {
	p, err := q.rdb.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		return 0, fmt.Errorf("pending %s: %w: %w", q.stream, domain.ErrStoreUnavailable, err)
	}
	return p.Count, nil
}

func decodeDelivery(m redis.XMessage) domain.Delivery {
	d := domain.Delivery{ID: m.ID}
	if len(m.Values) == 0 {
		// entrada apagada do stream mas ainda no PEL
		d.Err = fmt.Errorf("%w: entry %s has no fields", domain.ErrInvalidIntent, m.ID)
		return d
	}

	var err error
	field := func(name string) int64 {
		if err != nil {
			return 0
		}
		raw, ok := m.Values[name].(string)
		if !ok {
			err = fmt.Errorf("%w: entry %s missing %s", domain.ErrInvalidIntent, m.ID, name)
			return 0
		}
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			err = fmt.Errorf("%w: entry %s field %s: %w", domain.ErrInvalidIntent, m.ID, name, perr)
		}
		return n
	}

	d.Intent.OrderID = field(fieldOrderID)
	d.Intent.UserID = field(fieldUserID)
	d.Intent.VoucherID = field(fieldVoucherID)
	if err != nil {
		d.Err = err
		return d
	}
	if raw, ok := m.Values[fieldEnqueuedAt].(string); ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			d.Intent.EnqueuedAt = time.UnixMilli(ms)
		}
	}
	return d
}
