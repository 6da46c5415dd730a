package netcode

import "time"

// Clock is the monotonic time source the server reads from. The default
// implementation wraps the standard library's time package — spec §1 lists
// "clock/timer primitives" among the external collaborators, which this
// module reads as: don't invent a custom Instant type, trust stdlib time
// (see DESIGN.md for why no ecosystem library replaces this). Tests inject
// a fakeClock to drive timers deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock, backed by time.Now.
var SystemClock Clock = systemClock{}

// Timer is a periodic "ringing" timer: Ring reports true at most once per
// call even if several periods have elapsed since the last check; a ring
// restarts the period from the moment of the check, so any time elapsed
// beyond the period is not carried over. Used for heartbeat/ping/
// timeout checks driven once per maintain_socket() pass (spec §4.3, §4.8).
type Timer struct {
	clock  Clock
	period time.Duration
	last   time.Time
}

// NewTimer creates a Timer that rings every period, starting from clock.Now().
func NewTimer(clock Clock, period time.Duration) *Timer {
	if clock == nil {
		clock = SystemClock
	}
	return &Timer{clock: clock, period: period, last: clock.Now()}
}

// Ring reports whether the timer's period has elapsed since it last rang,
// and if so resets its reference point to now (not to last+period), so a
// slow caller does not get a burst of consecutive true results.
func (t *Timer) Ring() bool {
	now := t.clock.Now()
	if now.Sub(t.last) < t.period {
		return false
	}
	t.last = now
	return true
}

// Reset restarts the timer's period from now, used when an event that
// makes the timer's next ring redundant just happened (e.g. a heartbeat
// was just sent for another reason).
func (t *Timer) Reset() {
	t.last = t.clock.Now()
}
