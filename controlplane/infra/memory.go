package infra

import (
	"context"
	"sync"
	"time"

	"localdeals/controlplane/domain"
)

// Repositórios em memória: desenvolvimento local sem Postgres e testes.

type MemoryShops struct {
	mu    sync.RWMutex
	shops map[int64]domain.Shop
	loads int64
}

func NewMemoryShops(shops ...domain.Shop) *MemoryShops {
	r := &MemoryShops{shops: make(map[int64]domain.Shop)}
	for _, s := range shops {
		r.shops[s.ID] = s
	}
	return r
}

func (r *MemoryShops) LoadByID(_ context.Context, id int64) (domain.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	s, ok := r.shops[id]
	if !ok {
		return domain.Shop{}, domain.ErrNotFound
	}
	return s, nil
}

func (r *MemoryShops) Update(_ context.Context, s domain.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shops[s.ID]; !ok {
		return domain.ErrNotFound
	}
	s.UpdatedAt = time.Now()
	r.shops[s.ID] = s
	return nil
}

// Loads conta as idas ao "banco".
func (r *MemoryShops) Loads() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loads
}

type orderKey struct{ user, voucher int64 }

type MemoryOrders struct {
	mu     sync.Mutex
	orders map[orderKey]domain.Order
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[orderKey]domain.Order)}
}

func (r *MemoryOrders) Exists(_ context.Context, userID, voucherID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[orderKey{userID, voucherID}]
	return ok, nil
}

func (r *MemoryOrders) Insert(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := orderKey{o.UserID, o.VoucherID}
	if _, ok := r.orders[k]; ok {
		return domain.ErrPersistenceConflict
	}
	r.orders[k] = o
	return nil
}

func (r *MemoryOrders) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *MemoryOrders) CountFor(userID, voucherID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[orderKey{userID, voucherID}]; ok {
		return 1
	}
	return 0
}

type MemoryVouchers struct {
	mu       sync.Mutex
	vouchers map[int64]domain.VoucherStock
}

func NewMemoryVouchers() *MemoryVouchers {
	return &MemoryVouchers{vouchers: make(map[int64]domain.VoucherStock)}
}

func (r *MemoryVouchers) CreateSeckill(_ context.Context, v domain.VoucherStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vouchers[v.VoucherID] = v
	return nil
}

func (r *MemoryVouchers) SetStock(_ context.Context, voucherID, stock int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[voucherID]
	if !ok {
		return domain.ErrNotFound
	}
	v.Stock = stock
	r.vouchers[voucherID] = v
	return nil
}

func (r *MemoryVouchers) Get(voucherID int64) (domain.VoucherStock, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[voucherID]
	return v, ok
}
