package infra

import (
	"context"
	"testing"
	"time"
)

func TestChanPool_BlocksAtCapacity(t *testing.T) {
	p := NewChanPool(1)

	release, ok := p.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first acquire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := p.Acquire(ctx); ok {
		t.Fatalf("expected acquire to fail while full")
	}

	release()
	if _, ok := p.Acquire(context.Background()); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestVoucherSlots_CapIsPerVoucher(t *testing.T) {
	s := NewVoucherSlots(2)
	ctx := context.Background()

	r1, ok1 := s.Acquire(ctx, 10)
	r2, ok2 := s.Acquire(ctx, 10)
	if !ok1 || !ok2 {
		t.Fatalf("expected two slots on voucher 10")
	}

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, ok := s.Acquire(short, 10); ok {
		t.Fatalf("expected third purchase on voucher 10 to wait out")
	}

	// outro voucher não disputa as vagas do 10
	r3, ok := s.Acquire(ctx, 11)
	if !ok {
		t.Fatalf("expected voucher 11 to have its own slots")
	}
	if got := s.InFlight(10); got != 2 {
		t.Fatalf("expected 2 in flight on voucher 10, got %d", got)
	}

	r1()
	r1()
	if got := s.InFlight(10); got != 1 {
		t.Fatalf("expected double release to free one slot, got %d in flight", got)
	}
	r2()
	r3()
	if got := s.Tracked(); got != 0 {
		t.Fatalf("expected idle vouchers forgotten, %d tracked", got)
	}
}

func TestVoucherSlots_WaiterGetsReleasedSlot(t *testing.T) {
	s := NewVoucherSlots(1)
	ctx := context.Background()

	release, _ := s.Acquire(ctx, 5)
	got := make(chan bool, 1)
	go func() {
		r, ok := s.Acquire(ctx, 5)
		if ok {
			r()
		}
		got <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	release()
	select {
	case ok := <-got:
		if !ok {
			t.Fatalf("expected waiter to acquire")
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter never acquired the released slot")
	}
	if s.Tracked() != 0 {
		t.Fatalf("expected slot map empty after both released")
	}
}
