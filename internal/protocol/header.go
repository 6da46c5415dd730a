// Package protocol implements the wire format spec.md §6 defines:
// StandardHeader, the per-PacketType body layouts, and the ACK bitfield.
// Bit-level serialization of entity/component payloads is an external
// collaborator (the component catalog's per-kind codecs) — this package
// only ever touches the fixed framing around those opaque payloads.
package protocol

import (
	"encoding/binary"
	"errors"
)

// PacketType is the first byte of every packet.
type PacketType uint8

const (
	ClientChallengeRequest PacketType = iota
	ServerChallengeResponse
	ClientConnectRequest
	ServerConnectResponse
	ServerRejectResponse
	Data
	Heartbeat
	Ping
	Pong
	Disconnect
)

func (t PacketType) String() string {
	switch t {
	case ClientChallengeRequest:
		return "ClientChallengeRequest"
	case ServerChallengeResponse:
		return "ServerChallengeResponse"
	case ClientConnectRequest:
		return "ClientConnectRequest"
	case ServerConnectResponse:
		return "ServerConnectResponse"
	case ServerRejectResponse:
		return "ServerRejectResponse"
	case Data:
		return "Data"
	case Heartbeat:
		return "Heartbeat"
	case Ping:
		return "Ping"
	case Pong:
		return "Pong"
	case Disconnect:
		return "Disconnect"
	default:
		return "Unknown"
	}
}

// HeaderSize is the fixed on-wire size of StandardHeader in bytes.
const HeaderSize = 1 + 2 + 2 + 4

// ErrTruncated means the buffer was shorter than the structure being
// decoded requires.
var ErrTruncated = errors.New("protocol: truncated packet")

// StandardHeader is the fixed header prefixing every packet (spec §6):
// packet_type:u8, local_seq:u16, remote_seq:u16, ack_bitfield:u32, all
// network byte order (big-endian).
type StandardHeader struct {
	Type        PacketType
	LocalSeq    uint16
	RemoteSeq   uint16
	AckBitfield uint32
}

// AppendTo appends the encoded header to dst and returns the result.
func (h StandardHeader) AppendTo(dst []byte) []byte {
	dst = append(dst, byte(h.Type))
	dst = binary.BigEndian.AppendUint16(dst, h.LocalSeq)
	dst = binary.BigEndian.AppendUint16(dst, h.RemoteSeq)
	dst = binary.BigEndian.AppendUint32(dst, h.AckBitfield)
	return dst
}

// DecodeHeader parses a StandardHeader from the front of p, returning the
// header and the remaining bytes.
func DecodeHeader(p []byte) (StandardHeader, []byte, error) {
	if len(p) < HeaderSize {
		return StandardHeader{}, nil, ErrTruncated
	}
	h := StandardHeader{
		Type:        PacketType(p[0]),
		LocalSeq:    binary.BigEndian.Uint16(p[1:3]),
		RemoteSeq:   binary.BigEndian.Uint16(p[3:5]),
		AckBitfield: binary.BigEndian.Uint32(p[5:9]),
	}
	return h, p[HeaderSize:], nil
}

// AckBits reports whether the peer's header acknowledges sequence seq,
// relative to the header's RemoteSeq (the 33 most recent sequence numbers
// the sender of this header has received: RemoteSeq itself, plus one bit
// per prior sequence in AckBitfield, bit 0 = RemoteSeq-1).
func (h StandardHeader) AckBits(seq uint16) bool {
	if seq == h.RemoteSeq {
		return true
	}
	diff := h.RemoteSeq - seq
	if diff == 0 || diff > 32 {
		return false
	}
	return h.AckBitfield&(1<<(diff-1)) != 0
}

// BuildAckBitfield constructs the rolling ACK bitfield for remoteSeq given a
// predicate reporting whether a given earlier sequence number has been
// received. Bit (diff-1) is set when remoteSeq-diff has been received, for
// diff in [1, 32].
func BuildAckBitfield(remoteSeq uint16, received func(seq uint16) bool) uint32 {
	var bits uint32
	for diff := uint16(1); diff <= 32; diff++ {
		if received(remoteSeq - diff) {
			bits |= 1 << (diff - 1)
		}
	}
	return bits
}

// SequenceGreaterThan implements wrap-aware 16-bit sequence comparison
// (spec §6 glossary: "ACK bitfield" window is meaningless without this).
func SequenceGreaterThan(a, b uint16) bool {
	return (a > b && a-b <= 32768) || (a < b && b-a > 32768)
}
