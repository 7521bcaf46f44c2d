package application

import (
	"context"
	"testing"
	"time"
)

type blockingPool struct{}

func (p *blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestConcurrencyService_Acquire_UsesTimeout(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	if _, ok := svc.Acquire(context.Background()); ok {
		t.Fatalf("expected timeout and ok=false")
	}
}

func TestConcurrencyService_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool}

	if _, ok := svc.Acquire(context.Background()); !ok {
		t.Fatalf("expected ok")
	}
	if pool.acquired != 1 {
		t.Fatalf("expected pool Acquire to be called once, got %d", pool.acquired)
	}
}

type recordingVoucherSlots struct {
	vouchers []int64
	block    bool
}

func (v *recordingVoucherSlots) Acquire(ctx context.Context, voucherID int64) (func(), bool) {
	v.vouchers = append(v.vouchers, voucherID)
	if v.block {
		<-ctx.Done()
		return nil, false
	}
	return func() {}, true
}

func TestConcurrencyService_AcquireVoucher_AllowsWhenNoSlots(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}}

	release, ok := svc.AcquireVoucher(context.Background(), 3)
	if !ok {
		t.Fatalf("expected ok without voucher slots")
	}
	release()
}

func TestConcurrencyService_AcquireVoucher_PassesVoucherAndTimesOut(t *testing.T) {
	slots := &recordingVoucherSlots{block: true}
	svc := ConcurrencyService{Vouchers: slots, AcquireTimeout: 10 * time.Millisecond}

	if _, ok := svc.AcquireVoucher(context.Background(), 42); ok {
		t.Fatalf("expected timeout and ok=false")
	}
	if len(slots.vouchers) != 1 || slots.vouchers[0] != 42 {
		t.Fatalf("expected acquire on voucher 42, got %v", slots.vouchers)
	}
}
