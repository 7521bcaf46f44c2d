package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"localdeals/controlplane/domain"

	"github.com/redis/go-redis/v9"
)

// seckillScript é a admissão inteira numa avaliação atômica no servidor.
//
// KEYS: estoque, conjunto de compradores, janela, stream.
// ARGV: voucherId, userId, orderId, agora (unix s), enqueuedAt (unix ms).
// Retorno: 0 admitido, 1 esgotado, 2 duplicado, 3 não iniciado, 4 encerrado.
var seckillScript = redis.NewScript(`
if redis.call('sismember', KEYS[2], ARGV[2]) == 1 then
	return 2
end

local now = tonumber(ARGV[4])
local window = redis.call('hmget', KEYS[3], 'begin', 'end')
if window[1] and tonumber(window[1]) > now then
	return 3
end
if window[2] and tonumber(window[2]) < now then
	return 4
end

local raw = redis.call('get', KEYS[1])
if not raw then
	return 1
end
local stock = tonumber(raw)
if not stock or stock < 1 then
	return 1
end

redis.call('decr', KEYS[1])
redis.call('sadd', KEYS[2], ARGV[2])
redis.call('xadd', KEYS[4], '*', 'id', ARGV[3], 'userId', ARGV[2], 'voucherId', ARGV[1], 'enqueuedAt', ARGV[5])
return 0
`)

// RedisAdmitter implementa domain.Admitter.
//
// Chaves: seckill:stock:<id> (string), seckill:order:<id> (set de userIds),
// seckill:window:<id> (hash begin/end em unix s, opcional).
type RedisAdmitter struct {
	rdb    redis.Cmdable
	prefix string
	stream string
	now    func() time.Time
}

type AdmitterOption func(*RedisAdmitter)

func WithAdmissionStream(name string) AdmitterOption {
	return func(a *RedisAdmitter) { a.stream = name }
}

func withAdmissionClock(now func() time.Time) AdmitterOption {
	return func(a *RedisAdmitter) { a.now = now }
}

func NewRedisAdmitter(rdb redis.Cmdable, opts ...AdmitterOption) *RedisAdmitter {
	a := &RedisAdmitter{
		rdb:    rdb,
		prefix: "seckill",
		stream: "stream.orders",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *RedisAdmitter) stockKey(voucherID int64) string {
	return a.prefix + ":stock:" + strconv.FormatInt(voucherID, 10)
}

func (a *RedisAdmitter) orderKey(voucherID int64) string {
	return a.prefix + ":order:" + strconv.FormatInt(voucherID, 10)
}

func (a *RedisAdmitter) windowKey(voucherID int64) string {
	return a.prefix + ":window:" + strconv.FormatInt(voucherID, 10)
}

func (a *RedisAdmitter) Admit(ctx context.Context, in domain.OrderIntent) (domain.Verdict, error) {
	now := a.now()
	if in.EnqueuedAt.IsZero() {
		in.EnqueuedAt = now
	}
	keys := []string{
		a.stockKey(in.VoucherID),
		a.orderKey(in.VoucherID),
		a.windowKey(in.VoucherID),
		a.stream,
	}
	code, err := seckillScript.Run(ctx, a.rdb, keys,
		strconv.FormatInt(in.VoucherID, 10),
		strconv.FormatInt(in.UserID, 10),
		strconv.FormatInt(in.OrderID, 10),
		now.Unix(),
		in.EnqueuedAt.UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("admit voucher %d user %d: %w: %w", in.VoucherID, in.UserID, domain.ErrStoreUnavailable, err)
	}

	v := domain.Verdict(code)
	if v < domain.Admitted || v > domain.Ended {
		return 0, fmt.Errorf("admit voucher %d: unexpected script result %d", in.VoucherID, code)
	}
	return v, nil
}

// Stock semeia (ou repõe, no restock administrativo) o estoque e a janela.
// Janela zerada remove a restrição de horário.
func (a *RedisAdmitter) Stock(ctx context.Context, v domain.VoucherStock) error {
	if v.Stock < 0 {
		return fmt.Errorf("voucher %d: stock must be >= 0", v.VoucherID)
	}
	pipe := a.rdb.TxPipeline()
	pipe.Set(ctx, a.stockKey(v.VoucherID), v.Stock, 0)
	wk := a.windowKey(v.VoucherID)
	pipe.Del(ctx, wk)
	if !v.WindowStart.IsZero() {
		pipe.HSet(ctx, wk, "begin", v.WindowStart.Unix())
	}
	if !v.WindowEnd.IsZero() {
		pipe.HSet(ctx, wk, "end", v.WindowEnd.Unix())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stock voucher %d: %w: %w", v.VoucherID, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Restock altera só o estoque, preservando janela e compradores registrados.
func (a *RedisAdmitter) Restock(ctx context.Context, voucherID, stock int64) error {
	if stock < 0 {
		return fmt.Errorf("voucher %d: stock must be >= 0", voucherID)
	}
	if err := a.rdb.Set(ctx, a.stockKey(voucherID), stock, 0).Err(); err != nil {
		return fmt.Errorf("restock voucher %d: %w: %w", voucherID, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (a *RedisAdmitter) Remaining(ctx context.Context, voucherID int64) (int64, error) {
	n, err := a.rdb.Get(ctx, a.stockKey(voucherID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stock voucher %d: %w: %w", voucherID, domain.ErrStoreUnavailable, err)
	}
	return n, nil
}
