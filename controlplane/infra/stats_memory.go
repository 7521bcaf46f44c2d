package infra

import (
	"context"
	"sync"

	"localdeals/controlplane/domain"
)

// Counters conta veredictos por tipo.
type Counters map[domain.Verdict]int64

// MemoryStatsStore guarda estatísticas de admissão em memória.
// Útil para testes e desenvolvimento; não expira nada.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byVoucher map[int64]Counters
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		total:     make(Counters),
		byVoucher: make(map[int64]Counters),
	}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.VerdictEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total[ev.Verdict]++
	c, ok := s.byVoucher[ev.VoucherID]
	if !ok {
		c = make(Counters)
		s.byVoucher[ev.VoucherID] = c
	}
	c[ev.Verdict]++
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounters(s.total)
}

func (s *MemoryStatsStore) ByVoucher(voucherID int64) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounters(s.byVoucher[voucherID])
}

func copyCounters(in Counters) Counters {
	out := make(Counters, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
