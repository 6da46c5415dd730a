package netcode

// EntityScopeMap holds explicit per-(user, entity) visibility overrides
// (spec §3/§4.9): absence means "not in scope" even if the user shares a
// room with the entity — room co-membership is necessary but not
// sufficient. Pruned on user deletion and entity despawn so the map never
// outlives what it describes.
type EntityScopeMap struct {
	byUser map[UserKey]map[Entity]bool
}

func newEntityScopeMap() *EntityScopeMap {
	return &EntityScopeMap{byUser: make(map[UserKey]map[Entity]bool)}
}

// Include marks entity as in-scope for user. Taking effect is deferred to
// the next update_entity_scopes pass (spec §4.9's diff loop), not
// synchronous — matching the spec's "next send_all_updates emits" framing
// in scenario 3.
func (m *EntityScopeMap) Include(user UserKey, e Entity) {
	m.set(user, e, true)
}

// Exclude marks entity as explicitly out of scope for user (equivalent to
// absence for the purposes of the diff, but recorded so a later Include can
// be told apart from "never mentioned").
func (m *EntityScopeMap) Exclude(user UserKey, e Entity) {
	m.set(user, e, false)
}

func (m *EntityScopeMap) set(user UserKey, e Entity, in bool) {
	overrides, ok := m.byUser[user]
	if !ok {
		overrides = make(map[Entity]bool)
		m.byUser[user] = overrides
	}
	overrides[e] = in
}

// shouldBeInScope is should_be_in_scope from spec §4.9: the override if
// present, else false (default not-in-scope).
func (m *EntityScopeMap) shouldBeInScope(user UserKey, e Entity) bool {
	overrides, ok := m.byUser[user]
	if !ok {
		return false
	}
	return overrides[e]
}

// pruneUser drops every override for user, called when the user's
// Connection is destroyed.
func (m *EntityScopeMap) pruneUser(user UserKey) {
	delete(m.byUser, user)
}

// pruneEntity drops every override naming e, called on entity despawn.
func (m *EntityScopeMap) pruneEntity(e Entity) {
	for _, overrides := range m.byUser {
		delete(overrides, e)
	}
}
