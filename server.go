package netcode

import (
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ardentnet/netcode/internal/entitymgr"
	"github.com/ardentnet/netcode/internal/protocol"
	"github.com/ardentnet/netcode/internal/transport"
)

// packetPayloadBudget bounds how many bytes of channel messages one Data
// packet carries, leaving headroom under a conservative UDP MTU for the
// StandardHeader and entity-action framing (spec §6).
const packetPayloadBudget = 1100

// entityActionBudget bounds how many entity actions DrainOutbound hands
// back per packet, the entity-replication analogue of packetPayloadBudget.
const entityActionBudget = 64

// Server is the engine root spec §2 describes: it owns the user/room
// tables, the handshake and (optional) tick managers, the WorldRecord
// mirror, and drives the three-phase loop in §4.8. Single-threaded
// cooperative by contract (spec §5) — every exported method must be called
// from the one driver goroutine; nothing here takes a lock of its own.
type Server struct {
	cfg   ServerConfig
	clock Clock
	io    *transport.Io
	log   *zap.Logger

	handshake  *HandshakeManager
	tick       *TickManager
	catalog    ChannelCatalog
	components ComponentCatalog
	world      World

	worldRecord *WorldRecord
	scope       *EntityScopeMap

	users       *genMap[*UserRecord]
	connections map[UserKey]*Connection
	addrToKey   map[string]UserKey

	rooms *genMap[*Room]

	heartbeatTimer *Timer
	timeoutTimer   *Timer
	pingTimer      *Timer

	suspicion *suspicionTracker
	metrics   *Metrics

	pendingEvents []Event

	// pendingDisconnect holds users whose verified Disconnect request was
	// observed this pass; actual teardown is deferred to the next
	// maintainSocket call so one more SendAllUpdates can flush in-flight
	// reliable sends first (SPEC_FULL.md supplemented feature 4).
	pendingDisconnect map[UserKey]DisconnectReason

	// connCount mirrors len(connections), updated at every insert/delete
	// alongside the map itself. UsersCount reads this instead of the map
	// so it stays safe to call from a goroutine other than the driver loop
	// (e.g. an admin HTTP health handler) without taking a lock on
	// connections, which the single-threaded driver never otherwise needs.
	connCount atomic.Int64
}

// NewServer wires the engine against its external collaborators: the I/O
// adapter, the channel/component catalogs, and the authoritative world. The
// handshake signing secret is the application's root secret; NewServer
// derives the actual HMAC key from it via HKDF (handshake.go).
func NewServer(cfg ServerConfig, io *transport.Io, catalog ChannelCatalog, components ComponentCatalog, world World, handshakeSecret []byte, clock Clock, log *zap.Logger) *Server {
	if clock == nil {
		clock = SystemClock
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:               cfg,
		clock:             clock,
		io:                io,
		log:               log,
		handshake:         NewHandshakeManager(handshakeSecret),
		catalog:           catalog,
		components:        components,
		world:             world,
		worldRecord:       newWorldRecord(),
		scope:             newEntityScopeMap(),
		users:             newGenMap[*UserRecord](),
		connections:       make(map[UserKey]*Connection),
		addrToKey:         make(map[string]UserKey),
		rooms:             newGenMap[*Room](),
		heartbeatTimer:    NewTimer(clock, cfg.Connection.HeartbeatInterval),
		timeoutTimer:      NewTimer(clock, cfg.Connection.DisconnectionTimeoutDuration),
		pingTimer:         NewTimer(clock, cfg.Connection.Ping.PingInterval),
		suspicion:         newSuspicionTracker(),
		pendingDisconnect: make(map[UserKey]DisconnectReason),
	}
	if cfg.Protocol.TickInterval > 0 {
		s.tick = NewTickManager(clock, cfg.Protocol.TickInterval)
	}
	return s
}

// UseMetrics attaches a Metrics set (see metrics.go) the loop updates as it
// runs. Optional — a Server with none attached simply skips the updates.
func (s *Server) UseMetrics(m *Metrics) { s.metrics = m }

func (s *Server) emit(events *[]Event, ev Event) { *events = append(*events, ev) }

// UsersCount reports the number of live connections. Backed by an atomic
// counter rather than len(connections) so it can be called from a
// goroutine other than the single-threaded driver loop (e.g. an admin
// HTTP health handler) without racing the loop's unsynchronized map
// mutations.
func (s *Server) UsersCount() int { return int(s.connCount.Load()) }

// RequireAuth reports the configured require_auth value (spec §4.10,
// open question 3): whether the embedding application must call
// AcceptConnection/RejectConnection itself after an Auth event, rather
// than the engine auto-accepting once the handshake's signature checks
// out. The engine never reads this itself — handleConnectRequest raises
// an Auth event whenever a payload is present regardless of this flag —
// it exists purely so an embedder's event loop can read one source of
// truth instead of re-threading the flag it passed into NewServer.
func (s *Server) RequireAuth() bool { return s.cfg.RequireAuth }

// user returns the UserRecord and Connection for key, panicking per spec §7
// if the key is stale or unknown.
func (s *Server) user(key UserKey) (*UserRecord, *Connection) {
	rec, ok := s.users.get(key.index, key.generation)
	conn, connOK := s.connections[key]
	if !ok || !connOK {
		panicUnknownKey("user", key.generation, key.index)
	}
	return rec, conn
}

// room returns the Room for key, panicking per spec §7 if stale/unknown.
func (s *Server) room(key RoomKey) *Room {
	r, ok := s.rooms.get(key.index, key.generation)
	if !ok {
		panicUnknownKey("room", key.generation, key.index)
	}
	return r
}

// shuffledUserKeys returns every live UserKey in a randomized order (spec
// §4.8: randomization avoids systematic starvation of late-iteration
// connections).
func (s *Server) shuffledUserKeys() []UserKey {
	keys := make([]UserKey, 0, len(s.connections))
	for k := range s.connections {
		keys = append(keys, k)
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	return keys
}

// ---- receive() ----------------------------------------------------------

// Receive drives maintain_socket, the optional tick step, and per-connection
// event draining, returning the accumulated events (spec §4.8).
func (s *Server) Receive() []Event {
	now := s.clock.Now()
	events := s.pendingEvents
	s.pendingEvents = nil

	s.maintainSocket(now, &events)

	didTick := false
	if s.tick != nil {
		for s.tick.RecvServerTick() {
			didTick = true
		}
		if s.metrics != nil {
			s.metrics.Tick.Set(float64(s.tick.CurrentTick()))
		}
	}

	order := s.shuffledUserKeys()
	for _, uk := range order {
		conn, ok := s.connections[uk]
		if !ok {
			continue
		}
		for _, d := range conn.Messages.ReceiveMessages() {
			events = append(events, messageEvent(User{Key: uk}, d.Channel, d.Payload))
		}
	}

	if didTick {
		serverTick := s.tick.CurrentTick()
		for _, uk := range order {
			conn, ok := s.connections[uk]
			if !ok {
				continue
			}
			for _, entry := range conn.Ticks.ReceiveMessages(serverTick) {
				ch, _ := entry.Channel.(ChannelID)
				events = append(events, messageEvent(User{Key: uk}, ch, entry.Payload))
			}
		}
		events = append(events, tickEvent())
	}

	if s.metrics != nil {
		s.metrics.Connections.Set(float64(len(s.connections)))
		in, out := s.io.AggregateUsage(now)
		s.metrics.BandwidthInUse.Set(float64(in))
		s.metrics.BandwidthOutUse.Set(float64(out))
	}

	return events
}

func (s *Server) maintainSocket(now time.Time, events *[]Event) {
	if len(s.pendingDisconnect) > 0 {
		for uk, reason := range s.pendingDisconnect {
			delete(s.pendingDisconnect, uk)
			s.disconnectUser(uk, reason, events)
		}
	}
	if s.timeoutTimer.Ring() {
		for uk, conn := range s.connections {
			if conn.Disconnecting() {
				continue // already scheduled for teardown this pass
			}
			if conn.ShouldDrop(now, s.cfg.Connection.DisconnectionTimeoutDuration) {
				s.disconnectUser(uk, DisconnectTimeout, events)
			}
		}
	}
	if s.heartbeatTimer.Ring() {
		for uk, conn := range s.connections {
			if conn.Disconnecting() {
				continue // draining — no point keeping it alive with heartbeats
			}
			if conn.ShouldSendHeartbeat(now, s.cfg.Connection.HeartbeatInterval) {
				s.sendHeartbeat(now, conn)
			}
		}
	}
	if s.pingTimer.Ring() {
		for _, conn := range s.connections {
			if conn.Disconnecting() {
				continue
			}
			if conn.Ping.ShouldSendPing() {
				s.sendPing(now, conn)
			}
		}
	}
	if s.cfg.MaxBandwidthPerPeer > 0 && s.io.BandwidthMonitorEnabled() {
		for uk, conn := range s.connections {
			if conn.Disconnecting() {
				continue
			}
			in, out := s.io.BandwidthUsage(now, conn.Address)
			if in > s.cfg.MaxBandwidthPerPeer || out > s.cfg.MaxBandwidthPerPeer {
				s.disconnectUser(uk, DisconnectBandwidth, events)
			}
		}
	}

	for {
		addr, payload, ok, err := s.io.RecvReader(now)
		if err != nil {
			s.emit(events, errorEvent(newError(ErrIoRecvFailure, err)))
			continue
		}
		if !ok {
			break
		}
		if !s.io.AllowPacket(addr) {
			if s.suspicion.offend(addr) {
				if uk, found := s.userKeyForAddr(addr); found {
					s.disconnectUser(uk, DisconnectSuspicion, events)
				}
			}
			continue
		}
		s.dispatchPacket(now, addr, payload, events)
	}
}

func (s *Server) userKeyForAddr(addr PeerAddress) (UserKey, bool) {
	uk, ok := s.addrToKey[addrKey(addr)]
	return uk, ok
}

func (s *Server) dispatchPacket(now time.Time, addr PeerAddress, payload []byte, events *[]Event) {
	header, rest, err := protocol.DecodeHeader(payload)
	if err != nil {
		if s.metrics != nil {
			s.metrics.MalformedDrops.Inc()
		}
		if s.suspicion.offend(addr) {
			if uk, found := s.userKeyForAddr(addr); found {
				s.disconnectUser(uk, DisconnectSuspicion, events)
			}
		}
		s.emit(events, errorEvent(newError(ErrMalformedPacket, err)))
		return
	}

	switch header.Type {
	case protocol.ClientChallengeRequest:
		s.handleChallengeRequest(now, addr, rest)
		return
	case protocol.ClientConnectRequest:
		s.handleConnectRequest(now, addr, rest, events)
		return
	}

	uk, ok := s.userKeyForAddr(addr)
	if !ok {
		return // established-only packet type from an unrecognized peer: drop
	}
	conn := s.connections[uk]
	conn.MarkHeard(now)
	conn.ObserveIncomingHeader(header)
	s.suspicion.clear(addr)
	s.flushReleasedEntityMessages(conn)

	switch header.Type {
	case protocol.Data:
		s.handleData(conn, rest, events)
	case protocol.Disconnect:
		s.handleDisconnect(uk, conn, addr, rest, events)
	case protocol.Heartbeat:
		// mark_heard already happened above; nothing else to do.
	case protocol.Ping:
		body, err := protocol.DecodePingPongBody(rest)
		if err != nil {
			s.emit(events, errorEvent(newError(ErrMalformedPacket, err)))
			return
		}
		s.sendPong(now, conn, body.PingIndex)
	case protocol.Pong:
		body, err := protocol.DecodePingPongBody(rest)
		if err != nil {
			s.emit(events, errorEvent(newError(ErrMalformedPacket, err)))
			return
		}
		conn.Ping.ProcessPong(body.PingIndex)
		if s.metrics != nil {
			s.metrics.RTT.Observe(conn.Ping.RTT().Seconds())
		}
	default:
		s.emit(events, errorEvent(newError(ErrMalformedPacket, nil)))
	}
}

// flushReleasedEntityMessages pushes any parked entity-gated messages that
// just became deliverable (because ObserveIncomingHeader Acked the Spawn
// they were waiting on) into the real send queue — spec §4.4/§4.7/P4:
// release means "actually sent to the client", not a local event.
func (s *Server) flushReleasedEntityMessages(conn *Connection) {
	for _, rel := range conn.Entities.ReleaseReady() {
		if payload, ok := rel.Message.([]byte); ok {
			conn.Messages.Send(rel.Channel, payload)
		}
	}
}

func (s *Server) handleChallengeRequest(now time.Time, addr PeerAddress, body []byte) {
	req, err := protocol.DecodeChallengeRequest(body)
	if err != nil {
		return
	}
	sig := s.handshake.Challenge(req.ClientTimestamp, addr)
	resp := protocol.ChallengeResponse{ClientTimestamp: req.ClientTimestamp, Signature: sig}
	pkt := protocol.StandardHeader{Type: protocol.ServerChallengeResponse}.AppendTo(nil)
	pkt = resp.AppendTo(pkt)
	_ = s.io.SendWriter(now, addr, pkt)
}

func (s *Server) handleConnectRequest(now time.Time, addr PeerAddress, body []byte, events *[]Event) {
	req, err := protocol.DecodeConnectRequest(body)
	if err != nil {
		return
	}
	if !s.handshake.VerifyConnect(req.ClientTimestamp, addr, req.Signature) {
		return // HandshakeInvalid: silently dropped, per spec §4.1/§7.
	}

	if uk, ok := s.userKeyForAddr(addr); ok {
		conn := s.connections[uk]
		if !conn.pendingAuth {
			s.sendConnectResponse(now, addr) // idempotent re-send, P8.
		}
		return
	}

	idx, gen := s.users.insert(newUserRecord(addr))
	uk := UserKey{index: idx, generation: gen}
	conn := newConnection(uk, addr, s.catalog, s.clock, s.cfg.Connection.Ping.PingInterval, req.ClientTimestamp, s.cfg.Protocol.TickBufferDelay)
	s.connections[uk] = conn
	s.addrToKey[addrKey(addr)] = uk
	s.connCount.Add(1)

	if len(req.Auth) > 0 {
		// Open Question 3: an auth payload raises an Auth event regardless
		// of require_auth — the surrounding loop, not HandshakeManager,
		// decides auto-accept vs waiting for the application.
		conn.pendingAuth = true
		s.emit(events, authEvent(User{Key: uk}, req.Auth))
		return
	}
	s.finishAccept(now, uk, conn, events)
}

func (s *Server) sendConnectResponse(now time.Time, addr PeerAddress) {
	pkt := protocol.StandardHeader{Type: protocol.ServerConnectResponse}.AppendTo(nil)
	_ = s.io.SendWriter(now, addr, pkt)
}

func (s *Server) finishAccept(now time.Time, uk UserKey, conn *Connection, events *[]Event) {
	conn.pendingAuth = false
	s.sendConnectResponse(now, conn.Address)
	conn.MarkSent(now)
	s.emit(events, connectionEvent(User{Key: uk}))
}

// AcceptConnection finalizes a handshake that raised an Auth event (spec
// §4.10). The resulting Connection event is delivered on the next
// Receive() call.
func (s *Server) AcceptConnection(user UserKey) {
	_, conn := s.user(user)
	if !conn.pendingAuth {
		return
	}
	now := s.clock.Now()
	conn.pendingAuth = false
	s.sendConnectResponse(now, conn.Address)
	conn.MarkSent(now)
	s.pendingEvents = append(s.pendingEvents, connectionEvent(User{Key: user}))
}

// RejectConnection finalizes a handshake rejection: sends RejectResponse
// and deletes the user record without ever raising a Connection event.
func (s *Server) RejectConnection(user UserKey) {
	rec, _ := s.user(user)
	now := s.clock.Now()
	pkt := protocol.StandardHeader{Type: protocol.ServerRejectResponse}.AppendTo(nil)
	_ = s.io.SendWriter(now, rec.Address, pkt)
	s.deleteUser(user)
}

func (s *Server) handleData(conn *Connection, body []byte, events *[]Event) {
	data, err := protocol.DecodeDataBody(body)
	if err != nil {
		s.emit(events, errorEvent(newError(ErrMalformedPacket, err)))
		return
	}
	var serverTick uint16
	if s.tick != nil {
		serverTick = s.tick.CurrentTick()
	}
	for _, cf := range data.Channels {
		ch, ok := s.catalog.ChannelByWireID(cf.ChannelWireID)
		if !ok {
			continue
		}
		settings, ok := s.catalog.Settings(ch)
		if !ok {
			continue
		}
		for _, m := range cf.Messages {
			if settings.Ordering == TickBuffered {
				clientTick := data.ClientTick
				conn.Ticks.Insert(serverTick, clientTick, ch, m.Payload)
				continue
			}
			conn.Messages.Receive(ch, m.Seq, m.Payload)
		}
	}
}

func (s *Server) handleDisconnect(uk UserKey, conn *Connection, addr PeerAddress, body []byte, events *[]Event) {
	dbody, err := protocol.DecodeDisconnectBody(body)
	if err != nil {
		return
	}
	if !s.handshake.VerifyDisconnect(conn.handshakeTimestamp, addr, dbody.Signature) {
		return
	}
	if conn.pendingAuth {
		return // a Disconnect before accept has no effect (spec §4.1)
	}
	conn.BeginGracefulDisconnect()
	// Deferred to the next maintainSocket pass (see pendingDisconnect) so
	// this tick's SendAllUpdates still flushes any in-flight reliable acks
	// for conn before the user record is actually deleted.
	s.pendingDisconnect[uk] = DisconnectExplicit
}

func (s *Server) disconnectUser(uk UserKey, reason DisconnectReason, events *[]Event) {
	rec, ok := s.users.get(uk.index, uk.generation)
	if !ok {
		return
	}
	s.emit(events, disconnectionEvent(User{Key: uk}, rec, reason))
	if s.metrics != nil {
		s.metrics.Disconnects.WithLabelValues(disconnectReasonLabel(reason)).Inc()
	}
	s.deleteUser(uk)
}

func (s *Server) deleteUser(uk UserKey) {
	rec, ok := s.users.get(uk.index, uk.generation)
	if !ok {
		return
	}
	for rk := range rec.RoomKeys {
		if r, ok := s.rooms.get(rk.index, rk.generation); ok {
			delete(r.users, uk)
		}
	}
	s.scope.pruneUser(uk)
	s.suspicion.clear(rec.Address)
	delete(s.addrToKey, addrKey(rec.Address))
	delete(s.connections, uk)
	s.connCount.Add(-1)
	s.io.Deregister(rec.Address)
	s.users.remove(uk.index, uk.generation)
}

func (s *Server) sendHeartbeat(now time.Time, conn *Connection) {
	h := conn.NextOutboundHeader(protocol.Heartbeat, outboundRecord{})
	pkt := h.AppendTo(nil)
	var tick uint16
	present := s.tick != nil
	if present {
		tick = s.tick.CurrentTick()
	}
	pkt = protocol.AppendOptionalTick(pkt, tick, present)
	if err := s.io.SendWriter(now, conn.Address, pkt); err == nil {
		conn.MarkSent(now)
	}
}

func (s *Server) sendPing(now time.Time, conn *Connection) {
	idx := conn.Ping.EmitPing()
	var tick uint16
	if s.tick != nil {
		tick = s.tick.CurrentTick()
	}
	h := conn.NextOutboundHeader(protocol.Ping, outboundRecord{})
	pkt := h.AppendTo(nil)
	pkt = protocol.PingPongBody{ServerTick: tick, PingIndex: idx}.AppendTo(pkt)
	if err := s.io.SendWriter(now, conn.Address, pkt); err == nil {
		conn.MarkSent(now)
	}
}

func (s *Server) sendPong(now time.Time, conn *Connection, index uint16) {
	var tick uint16
	if s.tick != nil {
		tick = s.tick.CurrentTick()
	}
	h := conn.NextOutboundHeader(protocol.Pong, outboundRecord{})
	pkt := h.AppendTo(nil)
	pkt = protocol.PingPongBody{ServerTick: tick, PingIndex: index}.AppendTo(pkt)
	if err := s.io.SendWriter(now, conn.Address, pkt); err == nil {
		conn.MarkSent(now)
	}
}

// ---- send_all_updates ---------------------------------------------------

// SendAllUpdates diffs every room's scope and assembles/sends one Data
// packet per connection (spec §4.8). The external World is read-only for
// the duration of this call (spec §5).
func (s *Server) SendAllUpdates() {
	now := s.clock.Now()
	s.updateEntityScopes()
	for _, uk := range s.shuffledUserKeys() {
		conn, ok := s.connections[uk]
		if !ok {
			continue
		}
		s.sendOutgoingPacket(now, conn)
	}
}

func (s *Server) updateEntityScopes() {
	s.rooms.each(func(_, _ uint32, r *Room) {
		for _, entry := range r.drainRemovals() {
			conn, ok := s.connections[entry.user]
			if !ok {
				continue
			}
			// Open Question 1: kept as the source behaves — despawn
			// unconditionally without checking whether the user shares
			// another room with this entity. If another shared room still
			// wants it in scope, that room's diff re-spawns it later in
			// this pass when that room comes after this one in index
			// order, otherwise on the next pass (spec §9 option (a)).
			wasInScope := conn.Entities.ScopeHasEntity(entry.entity)
			conn.Entities.DespawnEntity(entry.entity)
			if wasInScope && s.metrics != nil {
				s.metrics.ScopeDespawns.Inc()
			}
		}

		for user := range r.users {
			conn, ok := s.connections[user]
			if !ok {
				continue
			}
			for entity := range r.entities {
				if !s.world.EntityExists(entity) {
					continue
				}
				current := conn.Entities.ScopeHasEntity(entity)
				should := s.scope.shouldBeInScope(user, entity)
				switch {
				case should && !current:
					conn.Entities.SpawnEntity(entity)
					for _, kind := range s.worldRecord.componentKinds(entity) {
						payload, err := s.components.Encode(entity, kind)
						if err != nil {
							continue
						}
						conn.Entities.InsertComponent(entity, kind, payload)
					}
					if s.metrics != nil {
						s.metrics.ScopeSpawns.Inc()
					}
				case !should && current:
					conn.Entities.DespawnEntity(entity)
					if s.metrics != nil {
						s.metrics.ScopeDespawns.Inc()
					}
				}
			}
		}
	})
}

func (s *Server) sendOutgoingPacket(now time.Time, conn *Connection) {
	retransmitAfter := conn.RetransmitAfter()

	actions := conn.Entities.DrainOutbound(now, entityActionBudget)
	actions = append(actions, conn.Entities.Retransmit(now, retransmitAfter)...)

	byChannel := conn.Messages.WritePacketContents(now, packetPayloadBudget)
	for ch, frames := range conn.Messages.Retransmittable(now, retransmitAfter) {
		byChannel[ch] = append(byChannel[ch], frames...)
	}

	if len(actions) == 0 && len(byChannel) == 0 {
		if !conn.ShouldSendHeartbeat(now, s.cfg.Connection.HeartbeatInterval) {
			return
		}
		s.sendHeartbeat(now, conn)
		return
	}

	rec := outboundRecord{}
	var actionFrames []protocol.EntityActionFrame
	for _, a := range actions {
		f := protocol.EntityActionFrame{NetID: a.NetID}
		switch a.Kind {
		case entitymgr.Spawn:
			f.Kind = protocol.ActionSpawn
			f.Seq = a.Seq()
			rec.entitySeqs = append(rec.entitySeqs, a.Seq())
		case entitymgr.Insert:
			f.Kind = protocol.ActionInsert
			f.Seq = a.Seq()
			f.Payload = a.Payload
			if id, ok := s.components.KindID(a.Component); ok {
				f.ComponentID = id
			}
			rec.entitySeqs = append(rec.entitySeqs, a.Seq())
		case entitymgr.Remove:
			f.Kind = protocol.ActionRemove
			if id, ok := s.components.KindID(a.Component); ok {
				f.ComponentID = id
			}
		case entitymgr.Despawn:
			f.Kind = protocol.ActionDespawn
		}
		actionFrames = append(actionFrames, f)
	}

	var channelFrames []protocol.ChannelFrame
	for ch, frames := range byChannel {
		wireID, ok := s.catalog.ChannelWireID(ch)
		if !ok {
			continue
		}
		cf := protocol.ChannelFrame{ChannelWireID: wireID}
		for _, m := range frames {
			rec.messageAcks = append(rec.messageAcks, chanSeq{Channel: ch, Seq: m.Seq})
			cf.Messages = append(cf.Messages, protocol.MessageFrame{Seq: m.Seq, Payload: m.Payload})
		}
		channelFrames = append(channelFrames, cf)
	}

	var serverTick uint16
	haveTick := s.tick != nil
	if haveTick {
		serverTick = s.tick.CurrentTick()
	}

	header := conn.NextOutboundHeader(protocol.Data, rec)
	pkt := header.AppendTo(nil)
	pkt = protocol.DataBody{
		ClientTick:    serverTick,
		HasClientTick: haveTick,
		EntityActions: actionFrames,
		Channels:      channelFrames,
	}.AppendTo(pkt)

	if err := s.io.SendWriter(now, conn.Address, pkt); err == nil {
		conn.MarkSent(now)
	}
}

// ---- rooms & scope -------------------------------------------------------

// MakeRoom creates an empty room and returns its key.
func (s *Server) MakeRoom() RoomKey {
	idx, gen := s.rooms.insert(newRoom())
	return RoomKey{index: idx, generation: gen}
}

// RoomAddUser adds user to room's membership, maintaining the inverse index
// on UserRecord (P2: room symmetry).
func (s *Server) RoomAddUser(room RoomKey, user UserKey) {
	r := s.room(room)
	rec, _ := s.user(user)
	r.users[user] = struct{}{}
	rec.RoomKeys[room] = struct{}{}
}

// RoomRemoveUser removes user from room, queuing a removal entry for every
// entity currently in the room so update_entity_scopes revokes visibility
// on the next pass (spec §4.9 step 1).
func (s *Server) RoomRemoveUser(room RoomKey, user UserKey) {
	r := s.room(room)
	rec, _ := s.user(user)
	delete(r.users, user)
	delete(rec.RoomKeys, room)
	for e := range r.entities {
		r.removals = append(r.removals, removalEntry{user: user, entity: e})
	}
}

// RoomAddEntity adds entity to room, creating its WorldRecord mirror entry
// if this is the first time the server has seen it.
func (s *Server) RoomAddEntity(room RoomKey, e Entity) {
	r := s.room(room)
	r.entities[e] = struct{}{}
	s.worldRecord.addRoom(e, room)
}

// RoomRemoveEntity removes entity from room, queuing a removal entry for
// every member user.
func (s *Server) RoomRemoveEntity(room RoomKey, e Entity) {
	r := s.room(room)
	delete(r.entities, e)
	s.worldRecord.removeRoom(e, room)
	for u := range r.users {
		r.removals = append(r.removals, removalEntry{user: u, entity: e})
	}
}

// RoomDestroy removes every entity from room first, then every user, then
// frees the RoomKey (spec §3: destruction clears entities before members).
func (s *Server) RoomDestroy(room RoomKey) {
	r := s.room(room)
	for e := range r.entities {
		s.RoomRemoveEntity(room, e)
	}
	for u := range r.users {
		s.RoomRemoveUser(room, u)
	}
	s.rooms.remove(room.index, room.generation)
}

// userScopeHandle is the receiver for user_scope(key).include(e)/.exclude(e)
// (spec §4.10).
type userScopeHandle struct {
	s    *Server
	user UserKey
}

// UserScope returns a handle for including/excluding entities from user's
// scope. Panics via user() if the key is unknown.
func (s *Server) UserScope(user UserKey) userScopeHandle {
	s.user(user) // validate the key exists
	return userScopeHandle{s: s, user: user}
}

func (h userScopeHandle) Include(e Entity) { h.s.scope.Include(h.user, e) }
func (h userScopeHandle) Exclude(e Entity) { h.s.scope.Exclude(h.user, e) }

// ---- world mutation hooks -------------------------------------------------

// DespawnEntity deletes e from the world mirror and every connection that
// currently has it in scope. Panics if e is unknown to WorldRecord (spec
// §7: a programmer-misuse condition, not a runtime one).
func (s *Server) DespawnEntity(e Entity) {
	if !s.worldRecord.exists(e) {
		panicUnknownEntity(e)
	}
	for _, conn := range s.connections {
		if conn.Entities.ScopeHasEntity(e) {
			conn.Entities.DespawnEntity(e)
		}
	}
	s.scope.pruneEntity(e)
	s.worldRecord.despawn(e)
}

// InsertComponent records kind on e in the world mirror and propagates an
// Insert delta to every connection that currently has e in scope.
func (s *Server) InsertComponent(e Entity, kind ComponentKind) {
	if !s.worldRecord.exists(e) {
		panicUnknownEntity(e)
	}
	s.worldRecord.insertComponent(e, kind)
	for _, conn := range s.connections {
		if !conn.Entities.ScopeHasEntity(e) {
			continue
		}
		payload, err := s.components.Encode(e, kind)
		if err != nil {
			continue
		}
		conn.Entities.InsertComponent(e, kind, payload)
	}
}

// RemoveComponent drops kind from e in the world mirror and propagates a
// Remove delta to every connection that currently has e in scope.
func (s *Server) RemoveComponent(e Entity, kind ComponentKind) {
	if !s.worldRecord.exists(e) {
		panicUnknownEntity(e)
	}
	s.worldRecord.removeComponent(e, kind)
	for _, conn := range s.connections {
		if conn.Entities.ScopeHasEntity(e) {
			conn.Entities.RemoveComponent(e, kind)
		}
	}
}

// ---- messaging -------------------------------------------------------

// SendMessage enqueues payload for delivery to user on channel, panicking
// if the channel's declared direction forbids server-to-client delivery
// (spec §4.10, §7). deps, if non-empty, names the entities payload
// references; delivery is parked in the connection's EntityManager until
// every one is spawned and Acked on that connection (spec §4.4/§4.7, P4).
func (s *Server) SendMessage(user UserKey, channel ChannelID, payload []byte, deps ...Entity) {
	_, conn := s.user(user)
	s.sendToConnection(conn, channel, payload, deps)
}

func (s *Server) sendToConnection(conn *Connection, channel ChannelID, payload []byte, deps []Entity) {
	if settings, ok := s.catalog.Settings(channel); ok && settings.Direction == ClientToServer {
		panicChannelDirection(channel)
	}
	if len(deps) == 0 {
		conn.Messages.Send(channel, payload)
		return
	}
	if conn.Entities.QueueEntityMessage(deps, channel, payload) {
		conn.Messages.Send(channel, payload)
	}
}

// BroadcastMessage sends payload to every connected user.
func (s *Server) BroadcastMessage(channel ChannelID, payload []byte, deps ...Entity) {
	for _, conn := range s.connections {
		s.sendToConnection(conn, channel, payload, deps)
	}
}

// RoomBroadcastMessage sends payload to every user currently in room.
func (s *Server) RoomBroadcastMessage(room RoomKey, channel ChannelID, payload []byte, deps ...Entity) {
	r := s.room(room)
	for u := range r.users {
		if conn, ok := s.connections[u]; ok {
			s.sendToConnection(conn, channel, payload, deps)
		}
	}
}

// Close releases the underlying Io (and thus its socket).
func (s *Server) Close() error { return s.io.Close() }
