package netcode

import "testing"

// ---------------------------------------------------------------------------
// EntityScopeMap
// ---------------------------------------------------------------------------

func TestEntityScopeMapDefaultsToNotInScope(t *testing.T) {
	m := newEntityScopeMap()
	u := UserKey{index: 1}
	if m.shouldBeInScope(u, "entity-1") {
		t.Fatal("an entity never mentioned must default to out of scope")
	}
}

func TestEntityScopeMapIncludeExclude(t *testing.T) {
	m := newEntityScopeMap()
	u := UserKey{index: 1}

	m.Include(u, "entity-1")
	if !m.shouldBeInScope(u, "entity-1") {
		t.Fatal("Include did not take effect")
	}

	m.Exclude(u, "entity-1")
	if m.shouldBeInScope(u, "entity-1") {
		t.Fatal("Exclude did not take effect")
	}
}

func TestEntityScopeMapPruneUser(t *testing.T) {
	m := newEntityScopeMap()
	u := UserKey{index: 1}
	m.Include(u, "entity-1")
	m.pruneUser(u)
	if m.shouldBeInScope(u, "entity-1") {
		t.Fatal("pruneUser left a stale override behind")
	}
}

func TestEntityScopeMapPruneEntity(t *testing.T) {
	m := newEntityScopeMap()
	u1 := UserKey{index: 1}
	u2 := UserKey{index: 2}
	m.Include(u1, "entity-1")
	m.Include(u2, "entity-1")

	m.pruneEntity("entity-1")

	if m.shouldBeInScope(u1, "entity-1") || m.shouldBeInScope(u2, "entity-1") {
		t.Fatal("pruneEntity left overrides behind for some user")
	}
}
