package netcode

import "testing"

func TestSuspicionTrackerTripsAtThreshold(t *testing.T) {
	tr := newSuspicionTracker()
	addr := addr("127.0.0.1:4000")

	for i := 0; i < suspicionThreshold-1; i++ {
		if tr.offend(addr) {
			t.Fatalf("offend tripped early at offense %d", i+1)
		}
	}
	if !tr.offend(addr) {
		t.Fatal("offend did not trip at the configured threshold")
	}
}

func TestSuspicionTrackerClearResetsCount(t *testing.T) {
	tr := newSuspicionTracker()
	addr := addr("127.0.0.1:4000")

	for i := 0; i < suspicionThreshold-1; i++ {
		tr.offend(addr)
	}
	tr.clear(addr)

	if tr.offend(addr) {
		t.Fatal("offend tripped immediately after clear reset the count")
	}
}

func TestSuspicionTrackerIsPerAddress(t *testing.T) {
	tr := newSuspicionTracker()
	a1 := addr("127.0.0.1:4000")
	a2 := addr("127.0.0.1:4001")

	for i := 0; i < suspicionThreshold; i++ {
		tr.offend(a1)
	}
	if tr.offend(a2) {
		t.Fatal("a fresh address tripped on its first offense")
	}
}
