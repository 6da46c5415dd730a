package netcode

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsRegistersAllSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Connections.Set(3)
	m.ScopeSpawns.Inc()
	m.Disconnects.WithLabelValues("timeout").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}

	var sawConnections bool
	for _, f := range families {
		if f.GetName() == "netcode_connections" {
			sawConnections = true
			if got := f.Metric[0].GetGauge().GetValue(); got != 3 {
				t.Fatalf("netcode_connections = %v; want 3", got)
			}
		}
	}
	if !sawConnections {
		t.Fatal("netcode_connections metric not found after registration")
	}
}

func TestDisconnectReasonLabelCoversEveryReason(t *testing.T) {
	for reason, want := range map[DisconnectReason]string{
		DisconnectExplicit:        "explicit",
		DisconnectTimeout:         "timeout",
		DisconnectSuspicion:       "suspicion",
		DisconnectHandshakeReject: "handshake_reject",
		DisconnectBandwidth:       "bandwidth",
	} {
		if got := disconnectReasonLabel(reason); got != want {
			t.Errorf("disconnectReasonLabel(%v) = %q; want %q", reason, got, want)
		}
	}
}
