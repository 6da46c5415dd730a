package protocol

import "testing"

// ---------------------------------------------------------------------------
// ChallengeRequest / ChallengeResponse
// ---------------------------------------------------------------------------

func TestChallengeRequestRoundTrip(t *testing.T) {
	r := ChallengeRequest{ClientTimestamp: 123456789}
	got, err := DecodeChallengeRequest(r.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeChallengeRequest: %v", err)
	}
	if got != r {
		t.Fatalf("got %+v; want %+v", got, r)
	}
}

func TestChallengeResponseRoundTrip(t *testing.T) {
	r := ChallengeResponse{ClientTimestamp: 42}
	for i := range r.Signature {
		r.Signature[i] = byte(i)
	}
	got, err := DecodeChallengeResponse(r.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeChallengeResponse: %v", err)
	}
	if got != r {
		t.Fatalf("got %+v; want %+v", got, r)
	}
}

// ---------------------------------------------------------------------------
// ConnectRequest
// ---------------------------------------------------------------------------

func TestConnectRequestRoundTripNoAuth(t *testing.T) {
	r := ConnectRequest{ClientTimestamp: 7}
	got, err := DecodeConnectRequest(r.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeConnectRequest: %v", err)
	}
	if got.ClientTimestamp != r.ClientTimestamp || got.Auth != nil {
		t.Fatalf("got %+v; want no-auth request with timestamp %d", got, r.ClientTimestamp)
	}
}

func TestConnectRequestRoundTripWithAuth(t *testing.T) {
	r := ConnectRequest{ClientTimestamp: 7, Auth: []byte("player-token")}
	got, err := DecodeConnectRequest(r.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeConnectRequest: %v", err)
	}
	if string(got.Auth) != "player-token" {
		t.Fatalf("got Auth %q; want %q", got.Auth, "player-token")
	}
}

// ---------------------------------------------------------------------------
// DisconnectBody
// ---------------------------------------------------------------------------

func TestDisconnectBodyRoundTrip(t *testing.T) {
	var b DisconnectBody
	for i := range b.Signature {
		b.Signature[i] = byte(255 - i)
	}
	got, err := DecodeDisconnectBody(b.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeDisconnectBody: %v", err)
	}
	if got != b {
		t.Fatalf("got %+v; want %+v", got, b)
	}
}

// ---------------------------------------------------------------------------
// OptionalTick
// ---------------------------------------------------------------------------

func TestOptionalTickPresent(t *testing.T) {
	buf := AppendOptionalTick(nil, 4242, true)
	tick, present, rest, err := DecodeOptionalTick(buf)
	if err != nil {
		t.Fatalf("DecodeOptionalTick: %v", err)
	}
	if !present || tick != 4242 || len(rest) != 0 {
		t.Fatalf("got tick=%d present=%v rest=%d; want 4242 true 0", tick, present, len(rest))
	}
}

func TestOptionalTickAbsent(t *testing.T) {
	buf := AppendOptionalTick(nil, 0, false)
	tick, present, rest, err := DecodeOptionalTick(buf)
	if err != nil {
		t.Fatalf("DecodeOptionalTick: %v", err)
	}
	if present || tick != 0 || len(rest) != 0 {
		t.Fatalf("got tick=%d present=%v rest=%d; want 0 false 0", tick, present, len(rest))
	}
}

// ---------------------------------------------------------------------------
// PingPongBody
// ---------------------------------------------------------------------------

func TestPingPongBodyRoundTrip(t *testing.T) {
	b := PingPongBody{ServerTick: 10, PingIndex: 999}
	got, err := DecodePingPongBody(b.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodePingPongBody: %v", err)
	}
	if got != b {
		t.Fatalf("got %+v; want %+v", got, b)
	}
}
