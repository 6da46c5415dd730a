package netcode

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically instead of sleeping.
type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(0, 0)} }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// ---------------------------------------------------------------------------
// Timer
// ---------------------------------------------------------------------------

func TestTimerDoesNotRingBeforePeriod(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock, time.Second)
	clock.advance(500 * time.Millisecond)
	if timer.Ring() {
		t.Fatal("Ring() returned true before the period elapsed")
	}
}

func TestTimerRingsAfterPeriod(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock, time.Second)
	clock.advance(time.Second)
	if !timer.Ring() {
		t.Fatal("Ring() returned false after the period elapsed")
	}
}

func TestTimerRingOnceUntilNextPeriod(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock, time.Second)
	clock.advance(3 * time.Second)
	if !timer.Ring() {
		t.Fatal("expected first Ring() after a long gap to return true")
	}
	if timer.Ring() {
		t.Fatal("expected immediate second Ring() to return false")
	}
}

func TestTimerReset(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock, time.Second)
	clock.advance(2 * time.Second)
	timer.Reset()
	if timer.Ring() {
		t.Fatal("Ring() returned true immediately after Reset()")
	}
}
