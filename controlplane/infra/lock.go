package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"localdeals/controlplane/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript apaga a chave apenas se o dono ainda for o do token.
var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
	return redis.call('del', KEYS[1])
end
return 0
`)

// RedisLocker implementa domain.Locker com SET NX PX.
type RedisLocker struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

type LockerOption func(*RedisLocker)

func WithLockPrefix(prefix string) LockerOption {
	return func(l *RedisLocker) { l.prefix = strings.TrimSuffix(prefix, ":") }
}

func withLockClock(now func() time.Time) LockerOption {
	return func(l *RedisLocker) { l.now = now }
}

func NewRedisLocker(rdb redis.Cmdable, opts ...LockerOption) *RedisLocker {
	l := &RedisLocker{rdb: rdb, prefix: "lock", now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) key(resource string) string {
	return l.prefix + ":" + resource
}

func (l *RedisLocker) TryAcquire(ctx context.Context, resource string, lease time.Duration) (domain.LockToken, bool, error) {
	if lease <= 0 {
		return domain.LockToken{}, false, fmt.Errorf("lock %s: lease must be > 0", resource)
	}
	tok := domain.LockToken{
		Resource:  resource,
		Owner:     uuid.NewString(),
		ExpiresAt: l.now().Add(lease),
	}
	ok, err := l.rdb.SetNX(ctx, l.key(resource), tok.Owner, lease).Result()
	if err != nil {
		return domain.LockToken{}, false, fmt.Errorf("lock %s: %w: %w", resource, domain.ErrStoreUnavailable, err)
	}
	if !ok {
		return domain.LockToken{}, false, nil
	}
	return tok, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, tok domain.LockToken) error {
	if tok.Owner == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key(tok.Resource)}, tok.Owner).Err(); err != nil {
		return fmt.Errorf("unlock %s: %w: %w", tok.Resource, domain.ErrStoreUnavailable, err)
	}
	return nil
}
