// Package transport adapts a datagram Socket into the Io the server core
// depends on: framed send/recv, per-peer and aggregate bandwidth counters
// over a sliding window, and an optional compression pass. The Socket
// itself — raw UDP or a WebRTC-style data-channel shim — is the external
// collaborator spec.md §1 calls out as out of scope; this package owns only
// the adapter around it (spec §4.2).
package transport

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Socket is the minimal external collaborator: non-blocking-style datagram
// send/recv addressed by net.Addr. udp.go and webtransport.go are two
// concrete implementations; applications may supply their own.
type Socket interface {
	// RecvFrom returns the next pending datagram, or ok=false if none is
	// currently available (spec §4.2: "recv_reader returns
	// Some((addr, reader)) | None | Err").
	RecvFrom() (addr net.Addr, payload []byte, ok bool, err error)
	SendTo(addr net.Addr, payload []byte) error
	Close() error
}

// Codec is the optional compression collaborator (spec §1: compression is
// out of scope for the core to implement).
type Codec interface {
	Compress(p []byte) []byte
	Decompress(p []byte) ([]byte, error)
}

// bandwidthCounter is a simple sliding-window byte counter: it keeps one
// timestamped sample per add, evicts samples older than the configured
// window, and sums the rest.
type bandwidthCounter struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
}

type sample struct {
	at    time.Time
	bytes uint64
}

func newBandwidthCounter(window time.Duration) *bandwidthCounter {
	return &bandwidthCounter{window: window}
}

func (c *bandwidthCounter) add(now time.Time, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, sample{at: now, bytes: n})
	c.evict(now)
}

func (c *bandwidthCounter) evict(now time.Time) {
	cutoff := now.Add(-c.window)
	i := 0
	for ; i < len(c.samples); i++ {
		if c.samples[i].at.After(cutoff) {
			break
		}
	}
	c.samples = c.samples[i:]
}

func (c *bandwidthCounter) total(now time.Time) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evict(now)
	var total uint64
	for _, s := range c.samples {
		total += s.bytes
	}
	return total
}

// peerCounters holds one peer's inbound and outbound bandwidth counters
// (its rate.Limiter is kept separately in Io.limiters); kept here so Io can
// vend usage without the root package poking at transport internals.
type peerCounters struct {
	in  *bandwidthCounter
	out *bandwidthCounter
}

// Io wraps a Socket with bandwidth accounting and optional compression.
// Single-threaded by contract (spec §5): every method is called from the
// one driver goroutine that owns receive()/send_all_updates(). Io still
// guards its peer and limiter maps with mu, and each sliding window has its
// own lock (those guard against a Socket implementation that itself
// spawns background I/O, e.g. the WebTransport one).
type Io struct {
	socket Socket
	codec  Codec
	window time.Duration

	mu    sync.Mutex
	peers map[string]*peerCounters
	aggIn *bandwidthCounter
	aggOut *bandwidthCounter

	limiters map[string]*rate.Limiter
}

// NewIo wraps socket. window configures the bandwidth sliding window
// (spec §4.2 "bandwidth_measure_duration"); a zero window disables
// per-peer/aggregate accounting (spec §9 open question 4: threshold is an
// implementation choice, resolved here as "window <= 0").
func NewIo(socket Socket, codec Codec, window time.Duration) *Io {
	return &Io{
		socket:   socket,
		codec:    codec,
		window:   window,
		peers:    make(map[string]*peerCounters),
		aggIn:    newBandwidthCounter(window),
		aggOut:   newBandwidthCounter(window),
		limiters: make(map[string]*rate.Limiter),
	}
}

// BandwidthMonitorEnabled reports whether the sliding-window counters are
// active.
func (io *Io) BandwidthMonitorEnabled() bool { return io.window > 0 }

func (io *Io) peer(addr net.Addr) *peerCounters {
	key := addr.Network() + ":" + addr.String()
	io.mu.Lock()
	defer io.mu.Unlock()
	p, ok := io.peers[key]
	if !ok {
		p = &peerCounters{in: newBandwidthCounter(io.window), out: newBandwidthCounter(io.window)}
		io.peers[key] = p
	}
	return p
}

// packetRateLimit is the default per-peer packet budget: generous for a
// well-behaved client sending at a normal tick rate, tight enough to cap
// the cost of a flood of malformed packets (supplemented feature, see
// SPEC_FULL.md supplemented feature 1, "per-peer suspicion").
const (
	packetRateLimit = rate.Limit(200)
	packetRateBurst = 400
)

func (io *Io) limiter(addr net.Addr) *rate.Limiter {
	key := addr.Network() + ":" + addr.String()
	io.mu.Lock()
	defer io.mu.Unlock()
	l, ok := io.limiters[key]
	if !ok {
		l = rate.NewLimiter(packetRateLimit, packetRateBurst)
		io.limiters[key] = l
	}
	return l
}

// AllowPacket reports whether a packet just received from addr is within
// its per-peer token bucket, consuming one token if so. The server loop
// treats a sustained false as cause for suspicion-based disconnect
// alongside the malformed-packet counter in limits.go.
func (io *Io) AllowPacket(addr net.Addr) bool {
	return io.limiter(addr).Allow()
}

// Deregister drops the bandwidth counters for addr (spec §4.2's
// register/deregister hooks), called when a connection is torn down so the
// map doesn't grow unbounded across the server's lifetime.
func (io *Io) Deregister(addr net.Addr) {
	key := addr.Network() + ":" + addr.String()
	io.mu.Lock()
	defer io.mu.Unlock()
	delete(io.peers, key)
	delete(io.limiters, key)
}

// RecvReader returns the next pending datagram, decompressed if a Codec is
// configured, and accounts its size against the per-peer and aggregate
// recv windows.
func (io *Io) RecvReader(now time.Time) (addr net.Addr, payload []byte, ok bool, err error) {
	addr, payload, ok, err = io.socket.RecvFrom()
	if err != nil || !ok {
		return addr, payload, ok, err
	}
	n := uint64(len(payload))
	if io.codec != nil {
		payload, err = io.codec.Decompress(payload)
		if err != nil {
			return addr, nil, true, err
		}
	}
	if io.BandwidthMonitorEnabled() {
		io.peer(addr).in.add(now, n)
		io.aggIn.add(now, n)
	}
	return addr, payload, true, nil
}

// SendWriter compresses (if configured) and sends payload to addr,
// accounting its size. Failures return an error but never poison Io — the
// caller (server.go) does not log the error and moves on (spec §4.2, §7).
func (io *Io) SendWriter(now time.Time, addr net.Addr, payload []byte) error {
	out := payload
	if io.codec != nil {
		out = io.codec.Compress(payload)
	}
	if err := io.socket.SendTo(addr, out); err != nil {
		return err
	}
	if io.BandwidthMonitorEnabled() {
		n := uint64(len(out))
		io.peer(addr).out.add(now, n)
		io.aggOut.add(now, n)
	}
	return nil
}

// BandwidthUsage reports the bytes seen in/out for addr over the configured
// window (the "high-water-mark hook" SPEC_FULL.md adds).
func (io *Io) BandwidthUsage(now time.Time, addr net.Addr) (in, out uint64) {
	key := addr.Network() + ":" + addr.String()
	io.mu.Lock()
	p, ok := io.peers[key]
	io.mu.Unlock()
	if !ok {
		return 0, 0
	}
	return p.in.total(now), p.out.total(now)
}

// AggregateUsage reports total bytes in/out across all peers over the
// window, used by metrics.go's Prometheus gauges.
func (io *Io) AggregateUsage(now time.Time) (in, out uint64) {
	return io.aggIn.total(now), io.aggOut.total(now)
}

// Close releases the underlying socket.
func (io *Io) Close() error { return io.socket.Close() }
