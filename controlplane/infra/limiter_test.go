package infra

import (
	"testing"
	"time"

	"localdeals/controlplane/domain"
)

func TestLimiterStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewLimiterStore(10, 1)

	l1 := s.Get(domain.Key("user:1"))
	l2 := s.Get(domain.Key("user:1"))
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
}

func TestLimiterStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewLimiterStore(0.02, 1)

	lim := s.Get(domain.Key("user:1"))
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestLimiterStore_KeysAreIndependent(t *testing.T) {
	s := NewLimiterStore(0.02, 1)

	if !s.Get("user:1").Allow() {
		t.Fatalf("expected user:1 allowed")
	}
	if !s.Get("user:2").Allow() {
		t.Fatalf("expected user:2 to have its own bucket")
	}
}

func TestLimiterStore_CleanupRemovesIdleBuyers(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	s := NewLimiterStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0), withLimiterClock(clock.Now))

	before := s.Get(domain.Key("user:1"))
	clock.Advance(30 * time.Second)
	s.Get(domain.Key("user:2"))
	clock.Advance(45 * time.Second)

	if removed := s.Cleanup(); removed != 1 {
		t.Fatalf("expected only user:1 idle, removed %d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected user:2 kept, %d buyers", s.Len())
	}

	after := s.Get(domain.Key("user:1"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

func TestLimiterStore_ActiveBuyerSurvivesCleanup(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	s := NewLimiterStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0), withLimiterClock(clock.Now))

	first := s.Get(domain.Key("user:1"))
	for i := 0; i < 3; i++ {
		clock.Advance(40 * time.Second)
		s.Get(domain.Key("user:1"))
		s.Cleanup()
	}
	if s.Get(domain.Key("user:1")) != first {
		t.Fatalf("expected a buyer seen within idleTTL to keep its bucket")
	}
}
