package netcode

import (
	"net"
	"testing"
)

func addr(s string) PeerAddress {
	a, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		panic(err)
	}
	return a
}

// ---------------------------------------------------------------------------
// HandshakeManager
// ---------------------------------------------------------------------------

func TestHandshakeVerifyConnectRoundTrip(t *testing.T) {
	hm := NewHandshakeManager([]byte("test-secret"))
	peer := addr("127.0.0.1:4000")

	sig := hm.Challenge(42, peer)
	if !hm.VerifyConnect(42, peer, sig) {
		t.Fatal("VerifyConnect rejected a signature it just issued")
	}
}

func TestHandshakeRejectsWrongAddress(t *testing.T) {
	hm := NewHandshakeManager([]byte("test-secret"))
	issued := addr("127.0.0.1:4000")
	attacker := addr("10.0.0.1:4000")

	sig := hm.Challenge(42, issued)
	if hm.VerifyConnect(42, attacker, sig) {
		t.Fatal("VerifyConnect accepted a signature replayed from a different address (P7 violation)")
	}
}

func TestHandshakeRejectsWrongTimestamp(t *testing.T) {
	hm := NewHandshakeManager([]byte("test-secret"))
	peer := addr("127.0.0.1:4000")

	sig := hm.Challenge(42, peer)
	if hm.VerifyConnect(43, peer, sig) {
		t.Fatal("VerifyConnect accepted a signature for a different timestamp")
	}
}

func TestHandshakeDifferentSecretsDisagree(t *testing.T) {
	peer := addr("127.0.0.1:4000")
	hm1 := NewHandshakeManager([]byte("secret-one"))
	hm2 := NewHandshakeManager([]byte("secret-two"))

	sig := hm1.Challenge(1, peer)
	if hm2.VerifyConnect(1, peer, sig) {
		t.Fatal("a signature from one root secret verified against a HandshakeManager derived from another")
	}
}

func TestHandshakeVerifyDisconnectMatchesConnect(t *testing.T) {
	hm := NewHandshakeManager([]byte("test-secret"))
	peer := addr("127.0.0.1:4000")

	sig := hm.Challenge(7, peer)
	if !hm.VerifyDisconnect(7, peer, sig) {
		t.Fatal("VerifyDisconnect rejected the same signature VerifyConnect would accept")
	}
}
