package netcode

// EventKind tags the union of events receive() can surface.
type EventKind int

const (
	EventConnection EventKind = iota
	EventAuth
	EventDisconnection
	EventMessage
	EventTick
	EventError
)

// Event is the tagged union delivered through receive(). Only the fields
// relevant to Kind are populated. Modeled as one struct rather than an
// interface hierarchy because the server loop builds these in tight loops
// and a single allocation-free append is worth more here than type safety
// the caller would immediately switch back out of anyway — callers are
// expected to switch on Kind exactly once.
type Event struct {
	Kind EventKind

	User User // EventConnection, EventAuth, EventDisconnection, EventMessage

	AuthPayload []byte // EventAuth

	DisconnectedUser *UserRecord // EventDisconnection: snapshot of the user that was removed
	DisconnectReason DisconnectReason

	Channel ChannelID // EventMessage
	Message any       // EventMessage

	Err *Error // EventError
}

// DisconnectReason records why a Disconnection event fired.
type DisconnectReason int

const (
	DisconnectExplicit DisconnectReason = iota
	DisconnectTimeout
	DisconnectSuspicion
	DisconnectHandshakeReject
	// DisconnectBandwidth fires when a peer sustains usage over
	// ServerConfig.MaxBandwidthPerPeer (supplemented feature, SPEC_FULL.md).
	DisconnectBandwidth
)

func connectionEvent(u User) Event { return Event{Kind: EventConnection, User: u} }

func authEvent(u User, payload []byte) Event {
	return Event{Kind: EventAuth, User: u, AuthPayload: payload}
}

func disconnectionEvent(u User, rec *UserRecord, reason DisconnectReason) Event {
	return Event{Kind: EventDisconnection, User: u, DisconnectedUser: rec, DisconnectReason: reason}
}

func messageEvent(u User, ch ChannelID, msg any) Event {
	return Event{Kind: EventMessage, User: u, Channel: ch, Message: msg}
}

func tickEvent() Event { return Event{Kind: EventTick} }

func errorEvent(err *Error) Event { return Event{Kind: EventError, Err: err} }
