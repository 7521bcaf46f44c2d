package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"localdeals/controlplane/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// nullMarker é o valor gravado para "confirmado ausente no upstream".
const nullMarker = ""

// LoadFunc é o colaborador relacional: devolve domain.ErrNotFound quando ausente.
type LoadFunc[T any] func(ctx context.Context, id string) (T, error)

// logicalRecord nunca expira no Redis; ExpireAt decide se está vencido.
type logicalRecord struct {
	Data     json.RawMessage `json:"data"`
	ExpireAt time.Time       `json:"expireAt"`
}

// envelope reconhece um logicalRecord: os dois campos presentes.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	ExpireAt *time.Time      `json:"expireAt"`
}

// unwrap separa payload e expiração lógica. Um registro de TTL rígido volta
// como está, com expireAt zero (já vencido para a expiração lógica).
func unwrap(raw []byte) (json.RawMessage, time.Time, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil && env.ExpireAt != nil {
		return env.Data, *env.ExpireAt, true
	}
	return raw, time.Time{}, false
}

type recordState int

const (
	recordMiss recordState = iota
	recordNull
	recordHit
)

// Cache é o cache-aside de uma entidade sobre o Redis.
//
// Chaves: cache:<entity>:<id>. Locks de reconstrução: lock:<entity>:<id>.
type Cache[T any] struct {
	rdb    redis.Cmdable
	locker domain.Locker
	pool   *RebuildPool
	load   LoadFunc[T]

	entity string

	ttl            time.Duration
	nullTTL        time.Duration
	logicalTTL     time.Duration
	lease          time.Duration
	retryDelay     time.Duration
	maxRetries     int
	rebuildTimeout time.Duration

	now func() time.Time
}

type CacheOption func(*cacheSettings)

type cacheSettings struct {
	ttl            time.Duration
	nullTTL        time.Duration
	logicalTTL     time.Duration
	lease          time.Duration
	retryDelay     time.Duration
	maxRetries     int
	rebuildTimeout time.Duration
	now            func() time.Time
}

// WithCacheTTL é o TTL nativo dos registros de TTL rígido.
func WithCacheTTL(d time.Duration) CacheOption {
	return func(s *cacheSettings) { s.ttl = d }
}

// WithNullTTL é a janela em que um NullMarker curto-circuita o upstream.
func WithNullTTL(d time.Duration) CacheOption {
	return func(s *cacheSettings) { s.nullTTL = d }
}

func WithLogicalTTL(d time.Duration) CacheOption {
	return func(s *cacheSettings) { s.logicalTTL = d }
}

func WithRebuildLease(d time.Duration) CacheOption {
	return func(s *cacheSettings) { s.lease = d }
}

func WithRebuildTimeout(d time.Duration) CacheOption {
	return func(s *cacheSettings) { s.rebuildTimeout = d }
}

// WithMutexRetry limita a espera da estratégia Mutex: `max` novas leituras
// espaçadas por `delay` antes de devolver domain.ErrRebuildContended.
func WithMutexRetry(delay time.Duration, max int) CacheOption {
	return func(s *cacheSettings) {
		s.retryDelay = delay
		s.maxRetries = max
	}
}

func withCacheClock(now func() time.Time) CacheOption {
	return func(s *cacheSettings) { s.now = now }
}

func NewCache[T any](rdb redis.Cmdable, locker domain.Locker, pool *RebuildPool, entity string, load LoadFunc[T], opts ...CacheOption) *Cache[T] {
	s := cacheSettings{
		ttl:            30 * time.Minute,
		nullTTL:        2 * time.Minute,
		logicalTTL:     30 * time.Minute,
		lease:          10 * time.Second,
		retryDelay:     50 * time.Millisecond,
		maxRetries:     20,
		rebuildTimeout: 5 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Cache[T]{
		rdb:            rdb,
		locker:         locker,
		pool:           pool,
		load:           load,
		entity:         entity,
		ttl:            s.ttl,
		nullTTL:        s.nullTTL,
		logicalTTL:     s.logicalTTL,
		lease:          s.lease,
		retryDelay:     s.retryDelay,
		maxRetries:     s.maxRetries,
		rebuildTimeout: s.rebuildTimeout,
		now:            s.now,
	}
}

func (c *Cache[T]) key(id string) string      { return "cache:" + c.entity + ":" + id }
func (c *Cache[T]) resource(id string) string { return c.entity + ":" + id }

// Get despacha para a estratégia pedida. found=false é "confirmado ausente"
// (ou, na expiração lógica, "nunca aquecido").
func (c *Cache[T]) Get(ctx context.Context, id string, strategy domain.Strategy) (T, bool, error) {
	switch strategy {
	case domain.Mutex:
		return c.GetWithMutex(ctx, id)
	case domain.LogicalExpire:
		return c.GetWithLogicalExpire(ctx, id)
	default:
		return c.GetPassThrough(ctx, id)
	}
}

func (c *Cache[T]) GetPassThrough(ctx context.Context, id string) (T, bool, error) {
	var zero T
	v, state, err := c.read(ctx, c.key(id))
	if err != nil {
		return zero, false, err
	}
	switch state {
	case recordHit:
		return v, true, nil
	case recordNull:
		return zero, false, nil
	}
	return c.loadAndFill(ctx, id)
}

func (c *Cache[T]) GetWithMutex(ctx context.Context, id string) (T, bool, error) {
	var zero T
	key := c.key(id)
	for attempt := 0; ; attempt++ {
		v, state, err := c.read(ctx, key)
		if err != nil {
			return zero, false, err
		}
		switch state {
		case recordHit:
			return v, true, nil
		case recordNull:
			return zero, false, nil
		}

		tok, ok, err := c.locker.TryAcquire(ctx, c.resource(id), c.lease)
		if err != nil {
			return zero, false, err
		}
		if ok {
			return c.rebuildLocked(ctx, id, tok)
		}

		if attempt >= c.maxRetries {
			return zero, false, fmt.Errorf("%s %s: %w", c.entity, id, domain.ErrRebuildContended)
		}
		t := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, false, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Cache[T]) rebuildLocked(ctx context.Context, id string, tok domain.LockToken) (T, bool, error) {
	defer c.release(ctx, tok)

	// outro dono pode ter populado entre a nossa leitura e o SET NX
	v, state, err := c.read(ctx, c.key(id))
	if err != nil {
		var zero T
		return zero, false, err
	}
	switch state {
	case recordHit:
		return v, true, nil
	case recordNull:
		var zero T
		return zero, false, nil
	}
	return c.loadAndFill(ctx, id)
}

func (c *Cache[T]) GetWithLogicalExpire(ctx context.Context, id string) (T, bool, error) {
	var zero T
	key := c.key(id)

	rec, v, ok, err := c.readLogical(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	if c.now().Before(rec.ExpireAt) {
		return v, true, nil
	}

	tok, acquired, err := c.locker.TryAcquire(ctx, c.resource(id), c.lease)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rebuild lock unavailable, serving stale")
		return v, true, nil
	}
	if !acquired {
		return v, true, nil
	}

	scheduled := c.pool != nil && c.pool.Submit(func(bctx context.Context) {
		c.rebuildLogical(bctx, id, tok)
	})
	if !scheduled {
		log.Warn().Str("key", key).Msg("rebuild pool saturated, serving stale")
		c.release(ctx, tok)
	}
	return v, true, nil
}

func (c *Cache[T]) rebuildLogical(ctx context.Context, id string, tok domain.LockToken) {
	defer c.release(ctx, tok)

	ctx, cancel := context.WithTimeout(ctx, c.rebuildTimeout)
	defer cancel()

	key := c.key(id)
	if rec, _, ok, err := c.readLogical(ctx, key); err == nil && ok && c.now().Before(rec.ExpireAt) {
		return
	}

	v, err := c.load(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			log.Error().Err(err).Str("key", key).Msg("drop vanished record")
		}
		return
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("logical rebuild failed")
		return
	}
	if err := c.SetLogical(ctx, id, v); err != nil {
		log.Error().Err(err).Str("key", key).Msg("logical rebuild write failed")
	}
}

// Set grava um registro de TTL rígido.
func (c *Cache[T]) Set(ctx context.Context, id string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.entity, id, err)
	}
	if err := c.rdb.Set(ctx, c.key(id), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w: %w", c.key(id), domain.ErrStoreUnavailable, err)
	}
	return nil
}

// SetLogical grava o registro sem TTL nativo, embrulhado com a expiração lógica.
func (c *Cache[T]) SetLogical(ctx context.Context, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.entity, id, err)
	}
	b, err := json.Marshal(logicalRecord{Data: data, ExpireAt: c.now().Add(c.logicalTTL)})
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.entity, id, err)
	}
	if err := c.rdb.Set(ctx, c.key(id), b, 0).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w: %w", c.key(id), domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Cache[T]) Invalidate(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("cache del %s: %w: %w", c.key(id), domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Cache[T]) read(ctx context.Context, key string) (T, recordState, error) {
	var v T
	raw, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return v, recordMiss, nil
	}
	if err != nil {
		return v, recordMiss, fmt.Errorf("cache get %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	if raw == nullMarker {
		return v, recordNull, nil
	}
	// a mesma chave pode guardar um registro lógico (preheat ou outra
	// estratégia); vencido ele é tratado como miss, já que não tem TTL nativo
	data, expireAt, logical := unwrap([]byte(raw))
	if logical && !c.now().Before(expireAt) {
		return v, recordMiss, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupt cache record, reloading")
		return v, recordMiss, nil
	}
	return v, recordHit, nil
}

func (c *Cache[T]) readLogical(ctx context.Context, key string) (logicalRecord, T, bool, error) {
	var (
		rec logicalRecord
		v   T
	)
	raw, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return rec, v, false, nil
	}
	if err != nil {
		return rec, v, false, fmt.Errorf("cache get %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	if raw == nullMarker {
		return rec, v, false, nil
	}
	// registro de TTL rígido: serve como vencido e a reconstrução o converte
	rec.Data, rec.ExpireAt, _ = unwrap([]byte(raw))
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupt logical payload")
		return rec, v, false, nil
	}
	return rec, v, true, nil
}

func (c *Cache[T]) loadAndFill(ctx context.Context, id string) (T, bool, error) {
	var zero T
	key := c.key(id)

	v, err := c.load(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		if err := c.rdb.Set(ctx, key, nullMarker, c.nullTTL).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("write null marker")
		}
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("load %s %s: %w: %w", c.entity, id, domain.ErrUpstreamLoad, err)
	}

	if err := c.Set(ctx, id, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("write cache record")
	}
	return v, true, nil
}

// release usa um ctx desligado do cancelamento do chamador: o lock precisa
// ser liberado mesmo quando a requisição ou o pool já foram cancelados.
func (c *Cache[T]) release(ctx context.Context, tok domain.LockToken) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := c.locker.Release(ctx, tok); err != nil {
		log.Error().Err(err).Str("resource", tok.Resource).Msg("release rebuild lock")
	}
}
