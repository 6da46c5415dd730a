// Package message implements the per-connection, per-channel send/receive
// queues spec.md §4.4 describes: reliable-ordered, reliable-unordered,
// unreliable-unordered, and unreliable-sequenced delivery. TickBuffered
// channels are handled by the sibling tickbuffer package instead — this
// manager is never consulted for them. Message bodies are opaque bytes;
// encoding/decoding them is the external channel/message catalog's job
// (spec §1: "bit-level serialization primitives" are out of scope here).
package message

import (
	"container/list"
	"time"

	"github.com/ardentnet/netcode/internal/domain"
)

// dedupeWindow is how many recent sequence numbers Unordered (reliable or
// not) and Reliable-Ordered channels remember to drop duplicates (retransmitted
// reliable sends, or duplicated unreliable sends racing the network).
const dedupeWindow = 256

// Outgoing is one payload queued or in-flight for send on a channel.
type Outgoing struct {
	Seq     uint16
	Payload []byte

	sent   bool
	sentAt time.Time
}

// Delivered is one payload ready for the application/Connection to consume.
type Delivered struct {
	Channel domain.ChannelID
	Payload []byte
}

type channelState struct {
	settings domain.ChannelSettings

	sendSeq   uint16
	sendQueue *list.List // of *Outgoing, FIFO; older reliable sends stay at the front
	unacked   map[uint16]*Outgoing

	lastDeliveredSeq uint16
	haveDelivered    bool
	recvBuffer       map[uint16][]byte // Reliable-Ordered: buffered out-of-order arrivals
	seen             map[uint16]struct{}
	seenOrder        []uint16 // ring of recently seen seqs, for dedupe eviction

	deliveryQueue [][]byte
}

func newChannelState(settings domain.ChannelSettings) *channelState {
	return &channelState{
		settings:   settings,
		sendQueue:  list.New(),
		unacked:    make(map[uint16]*Outgoing),
		recvBuffer: make(map[uint16][]byte),
		seen:       make(map[uint16]struct{}),
	}
}

// Manager is the per-connection MessageManager, keyed by ChannelID.
type Manager struct {
	catalog  domain.ChannelCatalog
	channels map[domain.ChannelID]*channelState
}

func New(catalog domain.ChannelCatalog) *Manager {
	return &Manager{catalog: catalog, channels: make(map[domain.ChannelID]*channelState)}
}

func (m *Manager) channel(ch domain.ChannelID) *channelState {
	if cs, ok := m.channels[ch]; ok {
		return cs
	}
	settings, _ := m.catalog.Settings(ch)
	cs := newChannelState(settings)
	m.channels[ch] = cs
	return cs
}

// Send enqueues payload for delivery on ch.
func (m *Manager) Send(ch domain.ChannelID, payload []byte) {
	cs := m.channel(ch)
	seq := cs.sendSeq
	cs.sendSeq++
	o := &Outgoing{Seq: seq, Payload: payload}
	cs.sendQueue.PushBack(o)
	if cs.settings.Reliability == domain.Reliable {
		cs.unacked[seq] = o
	}
}

// WritePacketContents greedily packs queued sends within budget bytes,
// offering the budget to reliable channels before unreliable ones and,
// within each channel, to the oldest queued sends first (spec §4.4). The
// order among channels of the same reliability is not defined. It returns
// the packed sends grouped by channel; the map itself carries no framing
// order. Packed reliable messages remain in unacked for retransmit
// tracking; unreliable ones are removed from the queue once handed back
// (fire-and-forget).
func (m *Manager) WritePacketContents(now time.Time, budget int) map[domain.ChannelID][]Outgoing {
	out := make(map[domain.ChannelID][]Outgoing)
	remaining := budget
	order := make([]domain.ChannelID, 0, len(m.channels))
	for ch, cs := range m.channels {
		if cs.settings.Reliability == domain.Reliable {
			order = append(order, ch)
		}
	}
	for ch, cs := range m.channels {
		if cs.settings.Reliability != domain.Reliable {
			order = append(order, ch)
		}
	}
	for _, ch := range order {
		cs := m.channels[ch]
		var frames []Outgoing
		for e := cs.sendQueue.Front(); e != nil; {
			next := e.Next()
			o := e.Value.(*Outgoing)
			cost := len(o.Payload)
			if cost > remaining {
				break
			}
			remaining -= cost
			o.sent = true
			o.sentAt = now
			frames = append(frames, *o)
			cs.sendQueue.Remove(e)
			if cs.settings.Reliability != domain.Reliable {
				// fire-and-forget: no retransmit bookkeeping once sent
			}
			e = next
		}
		if len(frames) > 0 {
			out[ch] = frames
		}
	}
	return out
}

// Retransmittable returns reliable sends whose last transmission is older
// than after, without removing them from unacked — the caller re-sends and
// we just re-stamp sentAt.
func (m *Manager) Retransmittable(now time.Time, after time.Duration) map[domain.ChannelID][]Outgoing {
	out := make(map[domain.ChannelID][]Outgoing)
	for ch, cs := range m.channels {
		if cs.settings.Reliability != domain.Reliable {
			continue
		}
		var frames []Outgoing
		for _, o := range cs.unacked {
			if !o.sent || now.Sub(o.sentAt) >= after {
				o.sentAt = now
				frames = append(frames, *o)
			}
		}
		if len(frames) > 0 {
			out[ch] = frames
		}
	}
	return out
}

// AckReceived removes seq from ch's unacked set once the peer's header
// confirms receipt.
func (m *Manager) AckReceived(ch domain.ChannelID, seq uint16) {
	cs, ok := m.channels[ch]
	if !ok {
		return
	}
	delete(cs.unacked, seq)
}

// Receive applies one inbound (channel, seq, payload) per the channel's
// ordering semantics, enqueuing it for delivery if its order allows, and
// cascading any buffered Reliable-Ordered messages that become deliverable.
func (m *Manager) Receive(ch domain.ChannelID, seq uint16, payload []byte) {
	cs := m.channel(ch)

	switch cs.settings.Ordering {
	case domain.Ordered:
		if cs.settings.Reliability == domain.Reliable {
			m.receiveReliableOrdered(cs, seq, payload)
			return
		}
		fallthrough
	case domain.Sequenced:
		if cs.haveDelivered && !seqGreater(seq, cs.lastDeliveredSeq) {
			return // older than last delivered: drop
		}
		cs.haveDelivered = true
		cs.lastDeliveredSeq = seq
		cs.deliveryQueue = append(cs.deliveryQueue, payload)
	default: // Unordered, Reliable or not
		if m.dedup(cs, seq) {
			return
		}
		cs.deliveryQueue = append(cs.deliveryQueue, payload)
	}
}

func (m *Manager) receiveReliableOrdered(cs *channelState, seq uint16, payload []byte) {
	if m.dedup(cs, seq) {
		return
	}
	expected := cs.lastDeliveredSeq
	if cs.haveDelivered {
		expected++
	}
	if !cs.haveDelivered && seq != 0 {
		// First-ever message on the channel: accept whatever arrives first
		// as the new baseline rather than waiting forever for seq 0 (a
		// connection's first reliable send is not guaranteed to be seq 0
		// once retransmits and multiple channels interleave in tests).
		cs.haveDelivered = true
		cs.lastDeliveredSeq = seq
		cs.deliveryQueue = append(cs.deliveryQueue, payload)
		m.drainBuffered(cs)
		return
	}
	if !cs.haveDelivered || seq == expected {
		cs.haveDelivered = true
		cs.lastDeliveredSeq = seq
		cs.deliveryQueue = append(cs.deliveryQueue, payload)
		m.drainBuffered(cs)
		return
	}
	if seqGreater(seq, expected) {
		cs.recvBuffer[seq] = payload
		return
	}
	// older than expected and already delivered in order: duplicate, drop.
}

func (m *Manager) drainBuffered(cs *channelState) {
	for {
		next := cs.lastDeliveredSeq + 1
		payload, ok := cs.recvBuffer[next]
		if !ok {
			return
		}
		delete(cs.recvBuffer, next)
		cs.lastDeliveredSeq = next
		cs.deliveryQueue = append(cs.deliveryQueue, payload)
	}
}

func (m *Manager) dedup(cs *channelState, seq uint16) bool {
	if _, ok := cs.seen[seq]; ok {
		return true
	}
	cs.seen[seq] = struct{}{}
	cs.seenOrder = append(cs.seenOrder, seq)
	if len(cs.seenOrder) > dedupeWindow {
		oldest := cs.seenOrder[0]
		cs.seenOrder = cs.seenOrder[1:]
		delete(cs.seen, oldest)
	}
	return false
}

// ReceiveMessages drains every channel's delivery queue into events, one
// Delivered per queued payload. Order across channels is unspecified (spec
// §5: "across channels no ordering is promised"); order within a channel
// matches delivery order.
func (m *Manager) ReceiveMessages() []Delivered {
	var out []Delivered
	for ch, cs := range m.channels {
		for _, p := range cs.deliveryQueue {
			out = append(out, Delivered{Channel: ch, Payload: p})
		}
		cs.deliveryQueue = nil
	}
	return out
}

func seqGreater(a, b uint16) bool {
	return (a > b && a-b <= 32768) || (a < b && b-a > 32768)
}
