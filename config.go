package netcode

import "time"

// ServerConfig is plain data — no flag coupling — so the engine can be
// embedded by any application (the teacher's NewServer(addr, tlsConfig,
// room, idleTimeout) constructor-injection pattern, generalized: every
// tunable spec §6 names is a field here, grouped the way spec.md groups
// them).
type ServerConfig struct {
	Connection   ConnectionConfig
	Protocol     ProtocolConfig
	RequireAuth  bool
	MaxBandwidthPerPeer uint64 // bytes per Io bandwidth window, each direction; 0 disables the check (supplemented feature, see SPEC_FULL.md)
}

// ConnectionConfig groups the heartbeat/timeout/ping/bandwidth tunables
// spec §6 calls "connection.*".
type ConnectionConfig struct {
	HeartbeatInterval            time.Duration
	DisconnectionTimeoutDuration time.Duration
	Ping                         PingConfig
	BandwidthMeasureDuration     time.Duration
}

type PingConfig struct {
	PingInterval time.Duration
}

// ProtocolConfig groups "protocol.*" tunables: optional tick and
// compression, and the transport selector.
type ProtocolConfig struct {
	// TickInterval, if non-zero, enables the TickManager and the tick wire
	// fields (spec §4.3).
	TickInterval time.Duration
	// TickBufferDelay holds tick-buffered messages this many extra ticks
	// past their declared client tick before release, trading latency for
	// resilience to jitter (supplemented feature, see SPEC_FULL.md). 0
	// releases exactly at server_tick, the literal spec.md behavior.
	TickBufferDelay uint16
	// Compression, if non-nil, is applied to outgoing Io writes and
	// reversed on incoming reads. Out of scope to implement (spec §1); an
	// external collaborator plugged in here.
	Compression Codec
	// Socket selects/configures the transport; left to the application —
	// the server core only ever sees the resulting Io.
	Socket SocketConfig
}

// SocketConfig is opaque configuration for whichever transport the
// application's Io wraps (UDP, WebTransport, ...). The server core never
// reads it.
type SocketConfig struct {
	ListenAddr string
}

// Codec is the external, optional compression collaborator (spec §1: "out
// of scope ... compression").
type Codec interface {
	Compress(p []byte) []byte
	Decompress(p []byte) ([]byte, error)
}

// DefaultServerConfig returns sane defaults matching the happy-connect
// scenario in spec §8.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Connection: ConnectionConfig{
			HeartbeatInterval:            2 * time.Second,
			DisconnectionTimeoutDuration: 10 * time.Second,
			Ping:                         PingConfig{PingInterval: time.Second},
			BandwidthMeasureDuration:     time.Second,
		},
	}
}
