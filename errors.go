package netcode

import "fmt"

// ErrorKind tags the taxonomy of errors the server surfaces as Error events.
// Programmer-misuse conditions (ChannelDirectionViolation, UnknownEntity,
// UnknownKey) are not in this taxonomy — those panic, per spec §7.
type ErrorKind int

const (
	// ErrMalformedPacket means a packet failed to parse; the packet is
	// dropped and the loop continues.
	ErrMalformedPacket ErrorKind = iota
	// ErrIoRecvFailure means the socket returned an error on recv.
	ErrIoRecvFailure
	// ErrIoSendFailure means the socket returned an error on send. Not
	// surfaced as an Error event (best-effort datagram); kept here for
	// logging call sites that want a name for it.
	ErrIoSendFailure
	// ErrHandshakeInvalid means a handshake packet failed verification;
	// the packet is silently dropped.
	ErrHandshakeInvalid
	// ErrTimeout means a connection was dropped for silence.
	ErrTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformedPacket:
		return "malformed_packet"
	case ErrIoRecvFailure:
		return "io_recv_failure"
	case ErrIoSendFailure:
		return "io_send_failure"
	case ErrHandshakeInvalid:
		return "handshake_invalid"
	case ErrTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a data-carrying error surfaced through the Events stream. It is
// never panicked — network-facing failures are data, not exceptions,
// because they are attacker-controlled and must never destabilize the
// server (spec §7).
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// panicUnknownKey is the single call site for the "fatal programmer error"
// path on a dangling/unknown generational key. Accessors (user(), room())
// call this rather than returning an error, matching spec §7: UnknownKey is
// a bug, not a runtime condition.
func panicUnknownKey(kind string, gen uint32, idx uint32) {
	panic(fmt.Sprintf("netcode: unknown or stale %s key (index=%d generation=%d)", kind, idx, gen))
}

// panicUnknownEntity is the call site for despawn_entity/insert_component/
// remove_component being handed an entity the WorldRecord has never seen.
func panicUnknownEntity(e Entity) {
	panic(fmt.Sprintf("netcode: unknown entity %v — world mutation API misuse", e))
}

// panicChannelDirection is the call site for send_message targeting a
// channel whose declared Direction forbids server→client delivery.
func panicChannelDirection(channel ChannelID) {
	panic(fmt.Sprintf("netcode: cannot send to client on channel %v: direction forbids it", channel))
}
