package netcode

import "time"

// rttAlpha/jitterAlpha are the exponential-smoothing factors for RTT and
// jitter (mean absolute deviation of RTT), the same constant naaia-derived
// engines commonly pick (similar to TCP's RFC 6298 SRTT/RTTVAR smoothing,
// which also uses 1/8 and 1/4) — a reasonable, well-known default rather
// than a value discovered by tuning (spec §4.6 leaves it unspecified).
const (
	rttAlpha    = 0.125
	jitterAlpha = 0.25
)

// PingManager is the per-connection RTT/jitter estimator (spec §4.6). It
// emits Pings with a 16-bit monotonically increasing index, matches Pongs
// by index against the instant the Ping was sent, and ignores any Pong
// whose index it has no record of (already matched, or never sent).
type PingManager struct {
	clock    Clock
	interval time.Duration

	timer *Timer

	nextIndex uint16
	inFlight  map[uint16]time.Time

	haveRTT bool
	rtt     time.Duration
	jitter  time.Duration
}

// NewPingManager creates a PingManager gated by interval (spec's
// ping_interval).
func NewPingManager(clock Clock, interval time.Duration) *PingManager {
	if clock == nil {
		clock = SystemClock
	}
	return &PingManager{
		clock:    clock,
		interval: interval,
		timer:    NewTimer(clock, interval),
		inFlight: make(map[uint16]time.Time),
	}
}

// ShouldSendPing reports whether interval has elapsed since the last check,
// per connection (spec §4.6: "gated by ping_interval").
func (p *PingManager) ShouldSendPing() bool {
	return p.timer.Ring()
}

// EmitPing allocates the next ping index, records its send instant, and
// returns it for the caller to frame into a Ping packet.
func (p *PingManager) EmitPing() uint16 {
	idx := p.nextIndex
	p.nextIndex++
	p.inFlight[idx] = p.clock.Now()
	return idx
}

// ProcessPong matches a Pong's index against a prior Ping's send instant and
// folds the resulting RTT sample into the smoothed rtt/jitter estimate.
// An index with no matching in-flight Ping (already matched, or a pong for
// an index this connection never sent) is ignored, per spec §4.6.
func (p *PingManager) ProcessPong(index uint16) {
	sentAt, ok := p.inFlight[index]
	if !ok {
		return
	}
	delete(p.inFlight, index)

	sample := p.clock.Now().Sub(sentAt)
	if sample < 0 {
		sample = 0
	}
	if !p.haveRTT {
		p.haveRTT = true
		p.rtt = sample
		p.jitter = 0
		return
	}
	delta := sample - p.rtt
	if delta < 0 {
		delta = -delta
	}
	p.jitter += time.Duration(jitterAlpha * float64(delta-p.jitter))
	p.rtt += time.Duration(rttAlpha * float64(sample-p.rtt))
}

// RTT is the current smoothed round-trip estimate; zero until the first
// Pong is processed.
func (p *PingManager) RTT() time.Duration { return p.rtt }

// Jitter is the current smoothed mean absolute deviation of RTT samples.
func (p *PingManager) Jitter() time.Duration { return p.jitter }
