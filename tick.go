package netcode

import "time"

// TickManager owns the server's monotonically increasing tick counter,
// advanced by wall clock against a configured interval — present only when
// the application configures ProtocolConfig.TickInterval (spec §4.3).
type TickManager struct {
	clock    Clock
	interval time.Duration

	tick     uint16
	lastTick time.Time
	pending  uint32 // ticks crossed since the last recv_server_tick() call
}

// NewTickManager starts the tick counter at 0, with the next tick due one
// interval from now.
func NewTickManager(clock Clock, interval time.Duration) *TickManager {
	if clock == nil {
		clock = SystemClock
	}
	return &TickManager{clock: clock, interval: interval, lastTick: clock.Now()}
}

// advance folds elapsed wall-clock time into whole ticks crossed, carrying
// any remainder forward so a caller that polls slower than interval doesn't
// lose time. Unlike Timer, which resets to now, lastTick advances by whole
// intervals (reset-to-last+period), and every crossed tick stays
// individually observable via RecvServerTick, so they are counted instead
// of collapsed into one ring.
func (t *TickManager) advance() {
	now := t.clock.Now()
	elapsed := now.Sub(t.lastTick)
	if elapsed < t.interval {
		return
	}
	crossed := uint32(elapsed / t.interval)
	t.lastTick = t.lastTick.Add(time.Duration(crossed) * t.interval)
	t.tick += uint16(crossed)
	t.pending += crossed
}

// RecvServerTick returns true exactly once per tick crossed since the
// previous call; a slow caller gets one true per call until it has caught
// up (spec §4.3: "may be true multiple times if the caller was slow; each
// call consumes at most one").
func (t *TickManager) RecvServerTick() bool {
	t.advance()
	if t.pending == 0 {
		return false
	}
	t.pending--
	return true
}

// CurrentTick is the present value of the wrapping 16-bit counter, for
// writing into outbound headers (write_server_tick, spec §4.3).
func (t *TickManager) CurrentTick() uint16 { return t.tick }

// ReadClientTick is the wire-decode half of spec §4.3's "read_client_tick /
// write_server_tick are the only bit-level surfaces" — trivial here since
// the field is already a plain uint16 by the time protocol.DecodeOptionalTick
// hands it back; kept as a named method so call sites read like the spec's
// vocabulary rather than passing raw uint16s around.
func ReadClientTick(tick uint16) uint16 { return tick }

// WriteServerTick is the wire-encode half; see ReadClientTick.
func WriteServerTick(tick uint16) uint16 { return tick }

// TickGreaterThan is the wrap-aware comparison spec §4.3/P6 requires:
// server_tick only increases, and 65535 -> 0 counts as an increase.
func TickGreaterThan(a, b uint16) bool {
	return (a > b && a-b <= 32768) || (a < b && b-a > 32768)
}
