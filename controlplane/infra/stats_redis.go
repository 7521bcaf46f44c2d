package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"localdeals/controlplane/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore agrega veredictos em hashes:
//
//	<prefix>:total               campo = veredicto
//	<prefix>:voucher:<id>        campo = veredicto
//	<prefix>:minute:<yyyymmddhhmm> campo = veredicto (expira)
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas nos buckets por minuto; total e por voucher são cumulativos.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "seckill:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.VerdictEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := ev.Verdict.String()

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)
	pipe.HIncrBy(ctx, s.prefix+":voucher:"+strconv.FormatInt(ev.VoucherID, 10), field, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Voucher lê os contadores agregados de um voucher.
func (s *RedisStatsStore) Voucher(ctx context.Context, voucherID int64) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, s.prefix+":voucher:"+strconv.FormatInt(voucherID, 10)).Result()
	if err != nil {
		return nil, fmt.Errorf("stats voucher %d: %w: %w", voucherID, domain.ErrStoreUnavailable, err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
