package infra

import (
	"context"
	"sync"
	"time"

	"localdeals/controlplane/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// LimiterStore guarda um token-bucket (x/time/rate) por comprador na rota de
// compra, com limpeza periódica dos compradores inativos. Fica na frente do
// script de admissão: um único comprador não martela o Redis.
type LimiterStore struct {
	mu           sync.Mutex
	buyers       map[string]*limiterEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type LimiterOption func(*LimiterStore)

func WithIdleTTL(d time.Duration) LimiterOption {
	return func(s *LimiterStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LimiterOption {
	return func(s *LimiterStore) { s.cleanupEvery = d }
}

func withLimiterClock(now func() time.Time) LimiterOption {
	return func(s *LimiterStore) { s.now = now }
}

func NewLimiterStore(rps float64, burst int, opts ...LimiterOption) *LimiterStore {
	s := &LimiterStore{
		buyers:       make(map[string]*limiterEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LimiterStore) RPS() float64 { return float64(s.rps) }
func (s *LimiterStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore. A chave é a do comprador (user:<id>),
// ou o IP quando a requisição não traz identidade.
func (s *LimiterStore) Get(key domain.Key) domain.Limiter {
	now := s.now()
	k := string(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.buyers[k]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.buyers[k] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

// Len é o número de compradores com bucket vivo.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buyers)
}

// Cleanup descarta os buckets sem uso há mais de idleTTL e devolve quantos saíram.
func (s *LimiterStore) Cleanup() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	removed := 0
	for k, ent := range s.buyers {
		if ent.lastSeen.Before(cutoff) {
			delete(s.buyers, k)
			removed++
		}
	}
	left := len(s.buyers)
	s.mu.Unlock()

	if removed > 0 {
		log.Debug().Int("removed", removed).Int("buyers", left).Msg("throttle buckets cleaned")
	}
	return removed
}

// StartJanitor limpa chaves inativas periodicamente até o ctx encerrar.
func (s *LimiterStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
