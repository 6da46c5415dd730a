// Package entitymgr implements the per-connection "mirror world": which
// entities a client has been told about, which component kinds on each, and
// the entity-dependency gate for messages that embed entity references
// (spec.md §4.7).
package entitymgr

import (
	"time"

	"github.com/ardentnet/netcode/internal/domain"
)

// ActionKind tags one outbound entity-replication action.
type ActionKind int

const (
	Spawn ActionKind = iota
	Despawn
	Insert
	Remove
)

// Action is one queued or in-flight entity-replication action. Spawn and
// Insert are reliable — they carry a Seq and are retransmitted until Acked
// (spec §4.7: "Reliable replication is layered on top").
type Action struct {
	Kind      ActionKind
	Entity    domain.Entity
	NetID     uint16 // connection-local wire id for Entity, stable for its lifetime on this connection
	Component domain.ComponentKind // Insert, Remove
	Payload   []byte                // Insert: encoded component value

	seq    uint16
	sent   bool
	sentAt time.Time
	acked  bool
}

func (a *Action) reliable() bool { return a.Kind == Spawn || a.Kind == Insert }

// Seq is the sequence number assigned when this action was drained for
// send (spec §4.7's reliable replication); zero and meaningless before
// that (Despawn/Remove never populate it on the wire, see internal/protocol
// EntityActionFrame).
func (a *Action) Seq() uint16 { return a.seq }

type entityState struct {
	inScope    bool // server intends this entity to be visible
	opened     bool // the Spawn action has been Acked by the client
	netID      uint16
	components map[domain.ComponentKind]struct{}
}

type parked struct {
	channel   domain.ChannelID
	msg       any
	remaining map[domain.Entity]struct{}
	dead      bool
}

// Manager is the per-connection EntityManager.
type Manager struct {
	entities map[domain.Entity]*entityState

	outbox   []*Action         // not yet sent
	unacked  map[uint16]*Action // sent, awaiting ACK
	nextSeq  uint16

	pendingQueue    []*parked
	pendingByEntity map[domain.Entity][]*parked

	byNetID   map[uint16]domain.Entity
	nextNetID uint16
}

func New() *Manager {
	return &Manager{
		entities:        make(map[domain.Entity]*entityState),
		unacked:         make(map[uint16]*Action),
		pendingByEntity: make(map[domain.Entity][]*parked),
		byNetID:         make(map[uint16]domain.Entity),
	}
}

// NetID returns the connection-local wire id for e, assigned at SpawnEntity
// time and stable until DespawnEntity — the server rendition of naia-style
// netcode's per-connection local entity handle, since Entity itself is an
// opaque external handle with no general wire encoding of its own.
func (m *Manager) NetID(e domain.Entity) (uint16, bool) {
	s, ok := m.entities[e]
	if !ok {
		return 0, false
	}
	return s.netID, true
}

// EntityForNetID reverses NetID, used when decoding an inbound frame that
// references an entity by its connection-local id.
func (m *Manager) EntityForNetID(id uint16) (domain.Entity, bool) {
	e, ok := m.byNetID[id]
	return e, ok
}

func (m *Manager) state(e domain.Entity) *entityState {
	s, ok := m.entities[e]
	if !ok {
		s = &entityState{components: make(map[domain.ComponentKind]struct{})}
		m.entities[e] = s
	}
	return s
}

// ScopeHasEntity reports whether e is currently mirrored to this client
// (spawned, not yet despawned) — used by update_entity_scopes to decide
// spawn/despawn transitions (spec §4.9).
func (m *Manager) ScopeHasEntity(e domain.Entity) bool {
	s, ok := m.entities[e]
	return ok && s.inScope
}

// EntityChannelIsOpen reports whether e's Spawn action has been
// acknowledged by the client — the gate for releasing entity-dependent
// messages and for it being safe to stream component deltas (spec §4.7).
func (m *Manager) EntityChannelIsOpen(e domain.Entity) bool {
	s, ok := m.entities[e]
	return ok && s.opened
}

// SpawnEntity marks e in-scope and enqueues a reliable Spawn action.
func (m *Manager) SpawnEntity(e domain.Entity) {
	s := m.state(e)
	if s.inScope {
		return
	}
	s.inScope = true
	s.netID = m.nextNetID
	m.byNetID[s.netID] = e
	m.nextNetID++
	m.outbox = append(m.outbox, &Action{Kind: Spawn, Entity: e, NetID: s.netID})
}

// DespawnEntity enqueues Despawn, clears the mirror, and discards any
// pending_entity_messages depending on e (spec §4.7).
func (m *Manager) DespawnEntity(e domain.Entity) {
	s, ok := m.entities[e]
	if !ok || !s.inScope {
		return
	}
	delete(m.entities, e)
	delete(m.byNetID, s.netID)
	m.outbox = append(m.outbox, &Action{Kind: Despawn, Entity: e, NetID: s.netID})
	for _, p := range m.pendingByEntity[e] {
		p.dead = true
	}
	delete(m.pendingByEntity, e)
}

// InsertComponent requires e in scope; enqueues a reliable Insert delta.
func (m *Manager) InsertComponent(e domain.Entity, kind domain.ComponentKind, payload []byte) {
	s, ok := m.entities[e]
	if !ok || !s.inScope {
		panic("netcode/entitymgr: insert_component on entity not in scope")
	}
	if _, have := s.components[kind]; have {
		return
	}
	s.components[kind] = struct{}{}
	m.outbox = append(m.outbox, &Action{Kind: Insert, Entity: e, NetID: s.netID, Component: kind, Payload: payload})
}

// RemoveComponent requires e in scope; enqueues an unreliable-is-fine
// Remove delta (idempotent on the client).
func (m *Manager) RemoveComponent(e domain.Entity, kind domain.ComponentKind) {
	s, ok := m.entities[e]
	if !ok || !s.inScope {
		panic("netcode/entitymgr: remove_component on entity not in scope")
	}
	if _, have := s.components[kind]; !have {
		return
	}
	delete(s.components, kind)
	m.outbox = append(m.outbox, &Action{Kind: Remove, Entity: e, NetID: s.netID, Component: kind})
}

// DrainOutbound moves queued actions into the send set, assigning each a
// sequence number, up to budget entries (the caller sizes entries against
// its own MTU budget; counting entries rather than bytes here keeps this
// package free of wire-format knowledge — internal/protocol owns encoding).
func (m *Manager) DrainOutbound(now time.Time, budget int) []*Action {
	var out []*Action
	for len(m.outbox) > 0 && len(out) < budget {
		a := m.outbox[0]
		m.outbox = m.outbox[1:]
		a.seq = m.nextSeq
		m.nextSeq++
		a.sent = true
		a.sentAt = now
		out = append(out, a)
		if a.reliable() {
			m.unacked[a.seq] = a
		}
	}
	return out
}

// Retransmit returns unacked reliable actions whose last send is older than
// after, re-stamping their send time. Mirrors the retransmit-on-missing-ACK
// rule spec §4.4 describes for MessageManager, applied to entity actions.
func (m *Manager) Retransmit(now time.Time, after time.Duration) []*Action {
	var out []*Action
	for _, a := range m.unacked {
		if now.Sub(a.sentAt) >= after {
			a.sentAt = now
			out = append(out, a)
		}
	}
	return out
}

// Ack marks the action with the given sequence delivered. Acking a Spawn
// opens the entity's channel and releases any pending_entity_messages whose
// last dependency was this entity.
func (m *Manager) Ack(seq uint16) {
	a, ok := m.unacked[seq]
	if !ok {
		return
	}
	delete(m.unacked, seq)
	a.acked = true
	if a.Kind == Spawn {
		if s, ok := m.entities[a.Entity]; ok {
			s.opened = true
		}
		m.releaseDependentsOf(a.Entity)
	}
}

// QueueEntityMessage parks msg until every entity in deps has an open
// channel on this connection, discarding it if any dependency despawns
// first (spec §4.4, §4.7). Returns true, without parking msg, if it was
// already releasable so the caller can send it immediately.
func (m *Manager) QueueEntityMessage(deps []domain.Entity, channel domain.ChannelID, msg any) (ready bool) {
	remaining := make(map[domain.Entity]struct{}, len(deps))
	for _, e := range deps {
		if !m.EntityChannelIsOpen(e) {
			remaining[e] = struct{}{}
		}
	}
	if len(remaining) == 0 {
		return true
	}
	p := &parked{channel: channel, msg: msg, remaining: remaining}
	m.pendingQueue = append(m.pendingQueue, p)
	for e := range remaining {
		m.pendingByEntity[e] = append(m.pendingByEntity[e], p)
	}
	return false
}

func (m *Manager) releaseDependentsOf(e domain.Entity) {
	for _, p := range m.pendingByEntity[e] {
		if p.dead {
			continue
		}
		delete(p.remaining, e)
	}
	delete(m.pendingByEntity, e)
}

// ReleaseReady drains, in original queuing order, every parked message that
// is now fully satisfied or was discarded by a despawn. Discarded entries
// are dropped silently; ready ones are returned for delivery. A message
// earlier in the queue that is still blocked halts release of everything
// behind it, preserving relative order (spec P4).
func (m *Manager) ReleaseReady() []struct {
	Channel domain.ChannelID
	Message any
} {
	var out []struct {
		Channel domain.ChannelID
		Message any
	}
	i := 0
	for ; i < len(m.pendingQueue); i++ {
		p := m.pendingQueue[i]
		if p.dead {
			continue
		}
		if len(p.remaining) > 0 {
			break
		}
		out = append(out, struct {
			Channel domain.ChannelID
			Message any
		}{p.channel, p.msg})
	}
	m.pendingQueue = m.pendingQueue[i:]
	return out
}
