package netcode

import "testing"

// ---------------------------------------------------------------------------
// Room
// ---------------------------------------------------------------------------

func TestRoomHasUserAndEntity(t *testing.T) {
	r := newRoom()
	u := UserKey{index: 1}
	r.users[u] = struct{}{}
	r.entities["entity-1"] = struct{}{}

	if !r.hasUser(u) {
		t.Fatal("hasUser false for a user just added")
	}
	if !r.hasEntity("entity-1") {
		t.Fatal("hasEntity false for an entity just added")
	}
	if r.hasUser(UserKey{index: 2}) {
		t.Fatal("hasUser true for a user never added")
	}
}

func TestRoomDrainRemovalsIsFIFOAndClearsQueue(t *testing.T) {
	r := newRoom()
	u1, u2 := UserKey{index: 1}, UserKey{index: 2}
	r.removals = append(r.removals,
		removalEntry{user: u1, entity: "e1"},
		removalEntry{user: u2, entity: "e2"},
	)

	drained := r.drainRemovals()
	if len(drained) != 2 || drained[0].user != u1 || drained[1].user != u2 {
		t.Fatalf("drainRemovals() = %+v; want FIFO order [u1, u2]", drained)
	}
	if more := r.drainRemovals(); len(more) != 0 {
		t.Fatalf("drainRemovals() after drain = %+v; want empty", more)
	}
}
