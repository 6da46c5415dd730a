package protocol

import "encoding/binary"

// SignatureSize is the length of the HMAC-SHA256 tag carried by the
// handshake and disconnect packets.
const SignatureSize = 32

// ChallengeRequest is the client->server body: client_timestamp:u64.
type ChallengeRequest struct {
	ClientTimestamp uint64
}

func (r ChallengeRequest) AppendTo(dst []byte) []byte {
	return binary.BigEndian.AppendUint64(dst, r.ClientTimestamp)
}

func DecodeChallengeRequest(p []byte) (ChallengeRequest, error) {
	if len(p) < 8 {
		return ChallengeRequest{}, ErrTruncated
	}
	return ChallengeRequest{ClientTimestamp: binary.BigEndian.Uint64(p)}, nil
}

// ChallengeResponse is the server->client body: client_timestamp:u64 +
// signature:[32]byte.
type ChallengeResponse struct {
	ClientTimestamp uint64
	Signature       [SignatureSize]byte
}

func (r ChallengeResponse) AppendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint64(dst, r.ClientTimestamp)
	return append(dst, r.Signature[:]...)
}

func DecodeChallengeResponse(p []byte) (ChallengeResponse, error) {
	if len(p) < 8+SignatureSize {
		return ChallengeResponse{}, ErrTruncated
	}
	r := ChallengeResponse{ClientTimestamp: binary.BigEndian.Uint64(p)}
	copy(r.Signature[:], p[8:8+SignatureSize])
	return r, nil
}

// ConnectRequest is the client->server body: client_timestamp:u64 +
// signature:[32]byte + has_auth:u8 + optional length-prefixed auth payload.
type ConnectRequest struct {
	ClientTimestamp uint64
	Signature       [SignatureSize]byte
	Auth            []byte // nil means "no auth payload present"
}

func (r ConnectRequest) AppendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint64(dst, r.ClientTimestamp)
	dst = append(dst, r.Signature[:]...)
	if r.Auth == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	dst = binary.AppendUvarint(dst, uint64(len(r.Auth)))
	return append(dst, r.Auth...)
}

func DecodeConnectRequest(p []byte) (ConnectRequest, error) {
	if len(p) < 8+SignatureSize+1 {
		return ConnectRequest{}, ErrTruncated
	}
	r := ConnectRequest{ClientTimestamp: binary.BigEndian.Uint64(p)}
	copy(r.Signature[:], p[8:8+SignatureSize])
	rest := p[8+SignatureSize:]
	hasAuth := rest[0]
	rest = rest[1:]
	if hasAuth == 0 {
		return r, nil
	}
	n, m := binary.Uvarint(rest)
	if m <= 0 || uint64(len(rest)-m) < n {
		return ConnectRequest{}, ErrTruncated
	}
	rest = rest[m:]
	r.Auth = append([]byte(nil), rest[:n]...)
	return r, nil
}

// DisconnectBody is the client->server body for a client-initiated
// Disconnect: signature:[32]byte, authenticated the same way as a
// ConnectRequest so a third party cannot forge a disconnect (spec §4.1).
type DisconnectBody struct {
	Signature [SignatureSize]byte
}

func (b DisconnectBody) AppendTo(dst []byte) []byte {
	return append(dst, b.Signature[:]...)
}

func DecodeDisconnectBody(p []byte) (DisconnectBody, error) {
	if len(p) < SignatureSize {
		return DisconnectBody{}, ErrTruncated
	}
	var b DisconnectBody
	copy(b.Signature[:], p[:SignatureSize])
	return b, nil
}

// AppendOptionalTick appends a presence byte followed by the tick (if
// present) to dst. Used for Heartbeat's optional server_tick and as the
// building block for Data's optional client_tick.
func AppendOptionalTick(dst []byte, tick uint16, present bool) []byte {
	if !present {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return binary.BigEndian.AppendUint16(dst, tick)
}

func DecodeOptionalTick(p []byte) (tick uint16, present bool, rest []byte, err error) {
	if len(p) < 1 {
		return 0, false, nil, ErrTruncated
	}
	if p[0] == 0 {
		return 0, false, p[1:], nil
	}
	if len(p) < 3 {
		return 0, false, nil, ErrTruncated
	}
	return binary.BigEndian.Uint16(p[1:3]), true, p[3:], nil
}

// PingBody/PongBody: server_tick:u16 + ping_index:u16.
type PingPongBody struct {
	ServerTick uint16
	PingIndex  uint16
}

func (b PingPongBody) AppendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, b.ServerTick)
	return binary.BigEndian.AppendUint16(dst, b.PingIndex)
}

func DecodePingPongBody(p []byte) (PingPongBody, error) {
	if len(p) < 4 {
		return PingPongBody{}, ErrTruncated
	}
	return PingPongBody{
		ServerTick: binary.BigEndian.Uint16(p[0:2]),
		PingIndex:  binary.BigEndian.Uint16(p[2:4]),
	}, nil
}

// AppendVarUint/ReadVarUint expose the LEB128 varint codec used for
// Data's channel_id/message_count frame fields (spec §6). encoding/binary's
// Uvarint is the stdlib-accepted choice here — no pack library implements
// LEB128 (see DESIGN.md).
func AppendVarUint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

func ReadVarUint(p []byte) (v uint64, n int) {
	return binary.Uvarint(p)
}
