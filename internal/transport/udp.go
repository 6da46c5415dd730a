package transport

import (
	"net"
	"time"
)

// deadlineImmediate returns a deadline in the past, which makes the next
// Read return immediately — either with already-buffered data or a
// timeout error — giving the poll-style non-blocking recv spec §4.2 wants
// without spinning up a reader goroutine per the single-threaded
// contract in spec §5.
func deadlineImmediate() time.Time { return time.Now() }

// maxDatagramSize bounds a single read; oversized reads are truncated by
// ReadFromUDP itself, so this just sizes the scratch buffer generously for
// a typical game-state MTU budget.
const maxDatagramSize = 1400

// UDPSocket is the raw-UDP Socket implementation: stdlib net.UDPConn, no
// third-party involvement, matching spec §6's "raw UDP" transport option.
// There is no ecosystem library for plain datagram UDP — net.UDPConn is
// the accepted idiomatic choice (see DESIGN.md).
type UDPSocket struct {
	conn *net.UDPConn
	buf  []byte
}

// ListenUDP opens a UDP socket on addr (e.g. ":7777").
func ListenUDP(addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadBuffer(1 << 20); err != nil {
		// non-fatal: OS may cap this, best effort.
		_ = err
	}
	return &UDPSocket{conn: conn, buf: make([]byte, maxDatagramSize)}, nil
}

func (s *UDPSocket) RecvFrom() (net.Addr, []byte, bool, error) {
	if err := s.conn.SetReadDeadline(deadlineImmediate()); err != nil {
		return nil, nil, false, err
	}
	n, addr, err := s.conn.ReadFromUDP(s.buf)
	if err != nil {
		if isTimeout(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	payload := make([]byte, n)
	copy(payload, s.buf[:n])
	return addr, payload, true, nil
}

func (s *UDPSocket) SendTo(addr net.Addr, payload []byte) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		resolved, err := net.ResolveUDPAddr(addr.Network(), addr.String())
		if err != nil {
			return err
		}
		udpAddr = resolved
	}
	_, err := s.conn.WriteToUDP(payload, udpAddr)
	return err
}

func (s *UDPSocket) Close() error { return s.conn.Close() }

type timeoutError interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	te, ok := err.(timeoutError)
	return ok && te.Timeout()
}
