package netcode

import (
	"time"

	"github.com/google/uuid"

	"github.com/ardentnet/netcode/internal/entitymgr"
	"github.com/ardentnet/netcode/internal/message"
	"github.com/ardentnet/netcode/internal/protocol"
	"github.com/ardentnet/netcode/internal/tickbuffer"
)

// defaultRetransmitFloor is the retransmit interval used before the first
// RTT sample arrives (spec §4.4: "retransmit on missing ACK after RTT·α" —
// undefined until PingManager has a sample, so a conservative floor avoids
// a retransmit storm against an unmeasured connection).
const (
	retransmitAlpha = 2.0
	defaultRetransmitFloor = 200 * time.Millisecond
)

// ackWindowSize mirrors StandardHeader's 32-bit ack bitfield plus the
// current remote_seq: the peer can only ever confirm the 33 most recent
// sequence numbers it has seen from us.
const ackWindowSize = 33

// chanSeq names one application-level reliable send bundled into a sent
// packet, for confirming via the packet-level ACK it rode in on.
type chanSeq struct {
	Channel ChannelID
	Seq     uint16
}

// outboundRecord is what one of our sent packets carried, kept only long
// enough to translate a peer's packet-level ACK into the underlying
// MessageManager/EntityManager acks.
type outboundRecord struct {
	messageAcks []chanSeq
	entitySeqs  []uint16
}

// Connection is the per-accepted-user aggregate spec §3 describes: owns
// MessageManager, TickBuffer, EntityManager, PingManager, liveness
// counters, and the UserKey. Also owns the packet-level sequence/ACK
// bookkeeping the StandardHeader needs (spec §4.4's "ACKs piggyback on
// outgoing headers"), translating a peer's packet ACK into acks against the
// message- and entity-level sequences that packet carried.
type Connection struct {
	Key           UserKey
	Address       PeerAddress
	CorrelationID uuid.UUID

	Messages *message.Manager
	Ticks    *tickbuffer.Buffer
	Entities *entitymgr.Manager
	Ping     *PingManager

	lastHeard time.Time
	lastSent  time.Time

	// handshakeTimestamp is the signed value from this user's ConnectRequest,
	// reused to verify a later client-initiated Disconnect (spec §4.1).
	handshakeTimestamp uint64

	// pendingAuth is true between raising an Auth event (any connect
	// request carrying an auth payload) and
	// the application calling accept_connection/reject_connection.
	pendingAuth bool

	// disconnecting marks the graceful half-state a verified client
	// Disconnect enters (SPEC_FULL.md supplemented feature 4): one more
	// maintain_socket pass to flush in-flight reliable ACKs before the user
	// record is actually deleted.
	disconnecting bool

	outboundSeq uint16
	outbound    map[uint16]outboundRecord

	havePeerSeq  bool
	peerSeq      uint16
	peerReceived map[uint16]struct{}
}

func newConnection(key UserKey, addr PeerAddress, catalog ChannelCatalog, clock Clock, pingInterval time.Duration, handshakeTimestamp uint64, tickBufferDelay uint16) *Connection {
	now := clock.Now()
	return &Connection{
		Key:                key,
		Address:            addr,
		CorrelationID:      uuid.New(),
		Messages:           message.New(catalog),
		Ticks:              tickbuffer.NewWithDelay(tickBufferDelay),
		Entities:           entitymgr.New(),
		Ping:               NewPingManager(clock, pingInterval),
		lastHeard:          now,
		lastSent:           now,
		handshakeTimestamp: handshakeTimestamp,
		outbound:           make(map[uint16]outboundRecord),
		peerReceived:       make(map[uint16]struct{}),
	}
}

// MarkHeard refreshes the last-heard clock, called for every packet type
// once a connection is established (spec §4.8: "mark_heard").
func (c *Connection) MarkHeard(now time.Time) { c.lastHeard = now }

// MarkSent refreshes the last-sent clock, called whenever any packet is
// written to this peer.
func (c *Connection) MarkSent(now time.Time) { c.lastSent = now }

// ShouldDrop reports whether this connection has been silent longer than
// timeout (spec §4.8's should_drop, driving P9).
func (c *Connection) ShouldDrop(now time.Time, timeout time.Duration) bool {
	return now.Sub(c.lastHeard) >= timeout
}

// ShouldSendHeartbeat reports whether this connection has been quiet
// (nothing sent) longer than interval (spec §4.8's should_send_heartbeat).
func (c *Connection) ShouldSendHeartbeat(now time.Time, interval time.Duration) bool {
	return now.Sub(c.lastSent) >= interval
}

// RetransmitAfter is the RTT·α threshold spec §4.4 names, floored until a
// real RTT sample exists.
func (c *Connection) RetransmitAfter() time.Duration {
	rtt := c.Ping.RTT()
	if rtt <= 0 {
		return defaultRetransmitFloor
	}
	d := time.Duration(float64(rtt) * retransmitAlpha)
	if d < defaultRetransmitFloor {
		return defaultRetransmitFloor
	}
	return d
}

// NextOutboundHeader stamps local_seq/remote_seq/ack_bitfield for a packet
// about to be sent, and remembers rec so a later peer ACK covering this
// local_seq can be translated into the underlying message/entity acks.
func (c *Connection) NextOutboundHeader(packetType protocol.PacketType, rec outboundRecord) protocol.StandardHeader {
	seq := c.outboundSeq
	c.outboundSeq++
	c.outbound[seq] = rec
	c.pruneOutbound(seq)

	var remoteSeq uint16
	if c.havePeerSeq {
		remoteSeq = c.peerSeq
	}
	bits := protocol.BuildAckBitfield(remoteSeq, func(s uint16) bool {
		_, ok := c.peerReceived[s]
		return ok
	})
	return protocol.StandardHeader{
		Type:        packetType,
		LocalSeq:    seq,
		RemoteSeq:   remoteSeq,
		AckBitfield: bits,
	}
}

// pruneOutbound drops any record older than the ack window can ever confirm
// again, bounding the map's size across a long-lived connection.
func (c *Connection) pruneOutbound(latest uint16) {
	for seq := range c.outbound {
		if latest-seq >= ackWindowSize && protocol.SequenceGreaterThan(latest, seq) {
			delete(c.outbound, seq)
		}
	}
}

// ObserveIncomingHeader folds an inbound packet's header into this
// connection's peer-seq tracking (for our own future ack bitfields) and
// confirms any of our previously sent packets the header's ack bitfield
// now covers, translating packet-level ACKs into message/entity acks.
func (c *Connection) ObserveIncomingHeader(h protocol.StandardHeader) {
	if !c.havePeerSeq || protocol.SequenceGreaterThan(h.LocalSeq, c.peerSeq) {
		c.havePeerSeq = true
		c.peerSeq = h.LocalSeq
	}
	c.peerReceived[h.LocalSeq] = struct{}{}
	for seq := range c.peerReceived {
		if c.peerSeq-seq > 64 && protocol.SequenceGreaterThan(c.peerSeq, seq) {
			delete(c.peerReceived, seq)
		}
	}

	for seq, rec := range c.outbound {
		if !h.AckBits(seq) {
			continue
		}
		for _, ms := range rec.messageAcks {
			c.Messages.AckReceived(ms.Channel, ms.Seq)
		}
		for _, es := range rec.entitySeqs {
			c.Entities.Ack(es)
		}
		delete(c.outbound, seq)
	}
}

// BeginGracefulDisconnect marks this connection as draining
// (SPEC_FULL.md supplemented feature 4): the server gives it one more
// maintain_socket pass before deleting the user record.
func (c *Connection) BeginGracefulDisconnect() { c.disconnecting = true }

// Disconnecting reports whether this connection is in the draining
// half-state: its user already requested Disconnect, and it is being kept
// alive only long enough to flush in-flight reliable sends before the
// server deletes the user record on the next maintainSocket pass.
func (c *Connection) Disconnecting() bool { return c.disconnecting }
