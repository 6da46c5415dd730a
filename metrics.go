package netcode

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the Prometheus surface for a running Server: connection count,
// aggregate bandwidth, a histogram of smoothed per-connection RTT samples
// (jitter is not exported), the current tick, and running totals of the
// spawn/despawn transitions scope updates produced. Grounded on
// the teacher's periodic RunMetrics logger, generalized from a log line
// into real counters/gauges via the pack's client_golang dependency.
type Metrics struct {
	Connections     prometheus.Gauge
	BandwidthInUse  prometheus.Gauge
	BandwidthOutUse prometheus.Gauge
	Tick            prometheus.Gauge
	RTT             prometheus.Histogram
	ScopeSpawns     prometheus.Counter
	ScopeDespawns   prometheus.Counter
	MalformedDrops  prometheus.Counter
	Disconnects     *prometheus.CounterVec
}

// NewMetrics builds and registers a Metrics set against reg. Passing a
// fresh prometheus.NewRegistry() keeps tests hermetic; production wiring
// can pass prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netcode", Name: "connections", Help: "Currently connected users.",
		}),
		BandwidthInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netcode", Name: "bandwidth_in_bytes", Help: "Aggregate inbound bytes over the configured window.",
		}),
		BandwidthOutUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netcode", Name: "bandwidth_out_bytes", Help: "Aggregate outbound bytes over the configured window.",
		}),
		Tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netcode", Name: "server_tick", Help: "Current server tick counter.",
		}),
		RTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netcode", Name: "rtt_seconds", Help: "Smoothed per-connection RTT samples.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		ScopeSpawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcode", Name: "scope_spawns_total", Help: "Entity spawns emitted by update_entity_scopes.",
		}),
		ScopeDespawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcode", Name: "scope_despawns_total", Help: "Entity despawns emitted by update_entity_scopes.",
		}),
		MalformedDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcode", Name: "malformed_packets_total", Help: "Packets dropped for failing to parse.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcode", Name: "disconnects_total", Help: "Disconnections by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.Connections, m.BandwidthInUse, m.BandwidthOutUse, m.Tick, m.RTT,
		m.ScopeSpawns, m.ScopeDespawns, m.MalformedDrops, m.Disconnects,
	)
	return m
}

func disconnectReasonLabel(r DisconnectReason) string {
	switch r {
	case DisconnectExplicit:
		return "explicit"
	case DisconnectTimeout:
		return "timeout"
	case DisconnectSuspicion:
		return "suspicion"
	case DisconnectHandshakeReject:
		return "handshake_reject"
	case DisconnectBandwidth:
		return "bandwidth"
	default:
		return "unknown"
	}
}
