package netcode

import "net"

// PeerAddress identifies a client's transport endpoint. net.Addr is already
// the right abstraction — both the UDP and WebTransport Io implementations
// vend one from their respective connections (spec §6: "peer addressed by
// (ip, port)").
type PeerAddress = net.Addr

// User is the public, immutable handle to a connected client, carried in
// events and accepted by the public mutation surface. It holds nothing but
// the key on purpose — spec §4: "Back-references are non-owning lookups via
// keys, not pointers."
type User struct {
	Key UserKey
}

// UserRecord is the server-owned state behind a UserKey: the peer address
// and the cached set of rooms this user belongs to (spec §3). Server owns
// it; the type is exported because a Disconnection event carries the
// departed user's record, and live records are reached only through the
// accessors on Server, which enforce the UnknownKey panic contract.
type UserRecord struct {
	Address  PeerAddress
	RoomKeys map[RoomKey]struct{}
}

func newUserRecord(addr PeerAddress) *UserRecord {
	return &UserRecord{Address: addr, RoomKeys: make(map[RoomKey]struct{})}
}

func addrKey(addr PeerAddress) string {
	if addr == nil {
		return ""
	}
	return addr.Network() + ":" + addr.String()
}
