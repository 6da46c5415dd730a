package netcode

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// TickManager
// ---------------------------------------------------------------------------

func TestTickManagerNoTickBeforeInterval(t *testing.T) {
	clock := newFakeClock()
	tm := NewTickManager(clock, 50*time.Millisecond)
	clock.advance(10 * time.Millisecond)
	if tm.RecvServerTick() {
		t.Fatal("RecvServerTick() true before one interval elapsed")
	}
}

func TestTickManagerOneTickPerInterval(t *testing.T) {
	clock := newFakeClock()
	tm := NewTickManager(clock, 50*time.Millisecond)
	clock.advance(50 * time.Millisecond)
	if !tm.RecvServerTick() {
		t.Fatal("expected a tick after one interval")
	}
	if tm.RecvServerTick() {
		t.Fatal("expected only one tick to be consumed")
	}
	if tm.CurrentTick() != 1 {
		t.Fatalf("CurrentTick() = %d; want 1", tm.CurrentTick())
	}
}

func TestTickManagerCatchUpOnSlowPoll(t *testing.T) {
	clock := newFakeClock()
	tm := NewTickManager(clock, 10*time.Millisecond)
	clock.advance(35 * time.Millisecond)

	count := 0
	for tm.RecvServerTick() {
		count++
	}
	if count != 3 {
		t.Fatalf("caught up %d ticks; want 3 (35ms / 10ms)", count)
	}
}

func TestTickGreaterThanWrapsAround(t *testing.T) {
	if !TickGreaterThan(0, 65535) {
		t.Fatal("expected 0 to be greater than 65535 (wraparound)")
	}
	if TickGreaterThan(65535, 0) {
		t.Fatal("expected 65535 to not be greater than 0 (wraparound)")
	}
	if !TickGreaterThan(10, 5) {
		t.Fatal("expected 10 > 5 without wraparound")
	}
}
