package main

import (
	"encoding/json"
	"fmt"
	"sync"

	netcode "github.com/ardentnet/netcode"
)

// demoChannel and demoComponent are the opaque ChannelID/ComponentKind
// handles this binary registers; a real application supplies its own,
// generated from its own message/component definitions (spec §1: the
// catalogs are external collaborators, never owned by the engine core).
type demoChannel string

const (
	ChannelChat     demoChannel = "chat"
	ChannelPosition demoChannel = "position"
	ChannelTick     demoChannel = "tick-input"
)

type demoComponent string

const (
	ComponentTransform demoComponent = "transform"
	ComponentHealth    demoComponent = "health"
)

// demoCatalog is the minimal concrete ChannelCatalog + ComponentCatalog this
// binary wires into netcode.NewServer — just enough registry to exercise
// every wire path (reliable/unreliable/tick-buffered channels, a JSON
// component codec) without pulling in a real game's schema.
type demoCatalog struct {
	channels   map[netcode.ChannelID]netcode.ChannelSettings
	channelIDs map[netcode.ChannelID]uint32
	idChannels map[uint32]netcode.ChannelID

	kindIDs  map[netcode.ComponentKind]uint32
	idKinds  map[uint32]netcode.ComponentKind

	mu     sync.RWMutex
	values map[netcode.Entity]map[netcode.ComponentKind]any
}

func newDemoCatalog() *demoCatalog {
	c := &demoCatalog{
		channels: map[netcode.ChannelID]netcode.ChannelSettings{
			ChannelChat:     {Direction: netcode.Bidirectional, Reliability: netcode.Reliable, Ordering: netcode.Ordered},
			ChannelPosition: {Direction: netcode.ServerToClient, Reliability: netcode.Unreliable, Ordering: netcode.Sequenced},
			ChannelTick:     {Direction: netcode.ClientToServer, Reliability: netcode.Unreliable, Ordering: netcode.TickBuffered},
		},
		channelIDs: map[netcode.ChannelID]uint32{ChannelChat: 1, ChannelPosition: 2, ChannelTick: 3},
		idChannels: map[uint32]netcode.ChannelID{1: ChannelChat, 2: ChannelPosition, 3: ChannelTick},
		kindIDs:    map[netcode.ComponentKind]uint32{ComponentTransform: 1, ComponentHealth: 2},
		idKinds:    map[uint32]netcode.ComponentKind{1: ComponentTransform, 2: ComponentHealth},
		values:     make(map[netcode.Entity]map[netcode.ComponentKind]any),
	}
	return c
}

func (c *demoCatalog) Settings(ch netcode.ChannelID) (netcode.ChannelSettings, bool) {
	s, ok := c.channels[ch]
	return s, ok
}

func (c *demoCatalog) ChannelWireID(ch netcode.ChannelID) (uint32, bool) {
	id, ok := c.channelIDs[ch]
	return id, ok
}

func (c *demoCatalog) ChannelByWireID(id uint32) (netcode.ChannelID, bool) {
	ch, ok := c.idChannels[id]
	return ch, ok
}

func (c *demoCatalog) KindID(kind netcode.ComponentKind) (uint32, bool) {
	id, ok := c.kindIDs[kind]
	return id, ok
}

func (c *demoCatalog) KindByID(id uint32) (netcode.ComponentKind, bool) {
	k, ok := c.idKinds[id]
	return k, ok
}

// SetValue records the application-level value for an entity/component
// pair, used by Encode to produce the payload replicated to clients. A real
// game reads this straight from its ECS store instead.
func (c *demoCatalog) SetValue(e netcode.Entity, kind netcode.ComponentKind, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values[e] == nil {
		c.values[e] = make(map[netcode.ComponentKind]any)
	}
	c.values[e][kind] = v
}

func (c *demoCatalog) Encode(e netcode.Entity, kind netcode.ComponentKind) ([]byte, error) {
	c.mu.RLock()
	v, ok := c.values[e][kind]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("netcodeserver: no value recorded for entity %v component %v", e, kind)
	}
	return json.Marshal(v)
}

func (c *demoCatalog) Decode(e netcode.Entity, kind netcode.ComponentKind, payload []byte) error {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return err
	}
	c.SetValue(e, kind, v)
	return nil
}

// demoWorld is the minimal World this binary hands to netcode.NewServer: a
// set of entities that "exist" once spawned, nothing more (spec §1: the
// authoritative ECS state is out of scope for the engine core).
type demoWorld struct {
	mu       sync.RWMutex
	entities map[netcode.Entity]struct{}
}

func newDemoWorld() *demoWorld {
	return &demoWorld{entities: make(map[netcode.Entity]struct{})}
}

func (w *demoWorld) Spawn(e netcode.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entities[e] = struct{}{}
}

func (w *demoWorld) Despawn(e netcode.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entities, e)
}

func (w *demoWorld) EntityExists(e netcode.Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entities[e]
	return ok
}
