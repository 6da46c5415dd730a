package protocol

import "testing"

// ---------------------------------------------------------------------------
// StandardHeader
// ---------------------------------------------------------------------------

func TestHeaderRoundTrip(t *testing.T) {
	h := StandardHeader{Type: Data, LocalSeq: 100, RemoteSeq: 99, AckBitfield: 0xDEADBEEF}
	buf := h.AppendTo(nil)

	got, rest, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover bytes after decoding a bare header: %d", len(rest))
	}
	if got != h {
		t.Fatalf("DecodeHeader = %+v; want %+v", got, h)
	}
}

func TestHeaderDecodeTruncated(t *testing.T) {
	h := StandardHeader{Type: Ping, LocalSeq: 1, RemoteSeq: 1}
	buf := h.AppendTo(nil)
	_, _, err := DecodeHeader(buf[:HeaderSize-1])
	if err != ErrTruncated {
		t.Fatalf("DecodeHeader on truncated input = %v; want ErrTruncated", err)
	}
}

func TestHeaderAppendToPreservesPrefix(t *testing.T) {
	prefix := []byte{1, 2, 3}
	h := StandardHeader{Type: Heartbeat}
	buf := h.AppendTo(prefix)
	if len(buf) != len(prefix)+HeaderSize {
		t.Fatalf("AppendTo length = %d; want %d", len(buf), len(prefix)+HeaderSize)
	}
	for i, b := range prefix {
		if buf[i] != b {
			t.Fatalf("AppendTo clobbered prefix byte %d", i)
		}
	}
}

// ---------------------------------------------------------------------------
// AckBits / BuildAckBitfield
// ---------------------------------------------------------------------------

func TestBuildAckBitfieldAndAckBitsAgree(t *testing.T) {
	received := map[uint16]bool{100: true, 98: true, 95: true}
	bits := BuildAckBitfield(100, func(s uint16) bool { return received[s] })
	h := StandardHeader{RemoteSeq: 100, AckBitfield: bits}

	for seq, want := range map[uint16]bool{100: true, 99: false, 98: true, 95: true, 50: false} {
		if got := h.AckBits(seq); got != want {
			t.Errorf("AckBits(%d) = %v; want %v", seq, got, want)
		}
	}
}

func TestAckBitsOutsideWindowIsFalse(t *testing.T) {
	h := StandardHeader{RemoteSeq: 100, AckBitfield: 0xFFFFFFFF}
	if h.AckBits(100 - 33) {
		t.Fatal("AckBits true for a sequence older than the 32-bit window can express")
	}
}

// ---------------------------------------------------------------------------
// SequenceGreaterThan
// ---------------------------------------------------------------------------

func TestSequenceGreaterThanWrapsAround(t *testing.T) {
	if !SequenceGreaterThan(0, 65535) {
		t.Fatal("expected 0 to be greater than 65535 across the wrap")
	}
	if SequenceGreaterThan(65535, 0) {
		t.Fatal("expected 65535 to not be greater than 0 across the wrap")
	}
	if !SequenceGreaterThan(10, 5) {
		t.Fatal("expected ordinary 10 > 5")
	}
	if SequenceGreaterThan(5, 5) {
		t.Fatal("a sequence must not be greater than itself")
	}
}
