package infra

import (
	"context"
	"sync"

	"localdeals/controlplane/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um semáforo baseado em channel com capacidade `max`.
// Limita as requisições em voo no servidor HTTP.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	if !take(ctx, p.sem) {
		return nil, false
	}
	return func() { <-p.sem }, true
}

func take(ctx context.Context, sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// VoucherSlots mantém um semáforo por voucher, criado no primeiro pedido e
// descartado quando ninguém mais o segura nem espera por ele.
type VoucherSlots struct {
	mu    sync.Mutex
	max   int
	slots map[int64]*voucherSlot
}

type voucherSlot struct {
	sem  chan struct{}
	refs int
}

var _ domain.VoucherSlots = (*VoucherSlots)(nil)

func NewVoucherSlots(max int) *VoucherSlots {
	if max <= 0 {
		max = 1
	}
	return &VoucherSlots{max: max, slots: make(map[int64]*voucherSlot)}
}

func (s *VoucherSlots) Acquire(ctx context.Context, voucherID int64) (func(), bool) {
	slot := s.ref(voucherID)
	if !take(ctx, slot.sem) {
		s.unref(voucherID)
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			s.unref(voucherID)
		})
	}, true
}

// InFlight é o número de compras segurando vaga no voucher.
func (s *VoucherSlots) InFlight(voucherID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.slots[voucherID]; ok {
		return len(slot.sem)
	}
	return 0
}

// Tracked é o número de vouchers com semáforo vivo.
func (s *VoucherSlots) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *VoucherSlots) ref(voucherID int64) *voucherSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[voucherID]
	if !ok {
		slot = &voucherSlot{sem: make(chan struct{}, s.max)}
		s.slots[voucherID] = slot
	}
	slot.refs++
	return slot
}

func (s *VoucherSlots) unref(voucherID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[voucherID]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(s.slots, voucherID)
	}
}
