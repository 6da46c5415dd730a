package tickbuffer

import "testing"

// ---------------------------------------------------------------------------
// Insert / ReceiveMessages
// ---------------------------------------------------------------------------

func TestReceiveMessagesReleasesOnlyMatchingTick(t *testing.T) {
	b := New()
	b.Insert(10, 10, "move", []byte("a"))
	b.Insert(10, 11, "move", []byte("b"))

	got := b.ReceiveMessages(10)
	if len(got) != 1 || string(got[0].Payload) != "a" {
		t.Fatalf("got %+v; want only the tick-10 entry", got)
	}
}

func TestReceiveMessagesIsOneShotPerTick(t *testing.T) {
	b := New()
	b.Insert(5, 5, "move", []byte("a"))

	_ = b.ReceiveMessages(5)
	if got := b.ReceiveMessages(5); len(got) != 0 {
		t.Fatalf("got %+v on second claim of the same tick; want empty", got)
	}
}

func TestReceiveMessagesPreservesInsertOrderWithinATick(t *testing.T) {
	b := New()
	b.Insert(1, 1, "move", []byte("first"))
	b.Insert(1, 1, "move", []byte("second"))

	got := b.ReceiveMessages(1)
	if len(got) != 2 || string(got[0].Payload) != "first" || string(got[1].Payload) != "second" {
		t.Fatalf("got %+v; want [first second] in insertion order", got)
	}
}

func TestInsertDropsEntriesOlderThanRetentionWindow(t *testing.T) {
	b := New()
	b.Insert(MaxBuffer+100, 0, "move", []byte("stale"))

	if got := b.ReceiveMessages(0); len(got) != 0 {
		t.Fatalf("got %+v for a tick beyond the retention window; want dropped at insert", got)
	}
}

func TestInsertKeepsEntriesWithinRetentionWindow(t *testing.T) {
	b := New()
	current := uint16(MaxBuffer)
	b.Insert(current, 0, "move", []byte("still-good"))

	got := b.ReceiveMessages(0)
	if len(got) != 1 || string(got[0].Payload) != "still-good" {
		t.Fatalf("got %+v; want the entry right at the retention boundary kept", got)
	}
}

func TestInsertAcceptsTicksAheadOfServerTick(t *testing.T) {
	b := New()
	b.Insert(0, 5, "move", []byte("early"))

	got := b.ReceiveMessages(5)
	if len(got) != 1 || string(got[0].Payload) != "early" {
		t.Fatalf("got %+v; want a future-tick message retained until its tick arrives", got)
	}
}

// ---------------------------------------------------------------------------
// NewWithDelay
// ---------------------------------------------------------------------------

func TestNewWithDelayHoldsEntriesUntilServerTickPassesDelay(t *testing.T) {
	b := NewWithDelay(2)
	b.Insert(10, 10, "move", []byte("a"))

	if got := b.ReceiveMessages(10); len(got) != 0 {
		t.Fatalf("got %+v at serverTick==clientTick with delay 2; want held", got)
	}
	if got := b.ReceiveMessages(11); len(got) != 0 {
		t.Fatalf("got %+v one tick short of the delay; want still held", got)
	}
	got := b.ReceiveMessages(12)
	if len(got) != 1 || string(got[0].Payload) != "a" {
		t.Fatalf("got %+v at serverTick==clientTick+delay; want released", got)
	}
}

func TestNewMatchesNewWithDelayZero(t *testing.T) {
	b := New()
	b.Insert(3, 3, "move", []byte("a"))

	got := b.ReceiveMessages(3)
	if len(got) != 1 || string(got[0].Payload) != "a" {
		t.Fatalf("got %+v; want New() to release at serverTick with no extra delay", got)
	}
}

// ---------------------------------------------------------------------------
// eviction of unclaimed stale ticks
// ---------------------------------------------------------------------------

func TestReceiveMessagesEvictsOldUnclaimedTicks(t *testing.T) {
	b := New()
	b.Insert(0, 0, "move", []byte("tick-0"))

	// Advance the server tick far enough that tick 0 can never be claimed
	// again; claiming some other tick should sweep it out.
	b.ReceiveMessages(MaxBuffer + 1)

	if got := b.ReceiveMessages(0); len(got) != 0 {
		t.Fatalf("got %+v for an evicted stale tick; want empty", got)
	}
}
