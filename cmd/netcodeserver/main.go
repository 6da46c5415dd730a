// Command netcodeserver runs the netcode engine behind either a raw UDP or
// a WebTransport listener, exposing an admin HTTP surface (health +
// Prometheus metrics) alongside it. It is a reference wiring, not a game:
// the demoCatalog/demoWorld in catalog.go stand in for the real ECS and
// message schema an embedding application would supply.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	netcode "github.com/ardentnet/netcode"
	"github.com/ardentnet/netcode/internal/transport"
)

const defaultCertValidity = 90 * 24 * time.Hour

func main() {
	if RunCLI(os.Args[1:]) {
		return
	}

	var (
		listenAddr    = flag.String("listen", ":7777", "game socket listen address")
		adminAddr     = flag.String("admin", ":8080", "admin HTTP listen address (health + metrics)")
		useWebTransport = flag.Bool("webtransport", false, "serve the game socket over WebTransport instead of raw UDP")
		tickRate      = flag.Duration("tick", 50*time.Millisecond, "server tick interval, 0 disables ticking")
		heartbeat     = flag.Duration("heartbeat", 2*time.Second, "heartbeat interval for otherwise-quiet connections")
		timeout       = flag.Duration("timeout", 10*time.Second, "silence duration before a connection is dropped")
		pingInterval  = flag.Duration("ping", time.Second, "RTT probe interval")
		requireAuth   = flag.Bool("require-auth", false, "wait for accept_connection/reject_connection on handshakes that carry an auth payload")
		hostname      = flag.String("hostname", "localhost", "TLS certificate hostname (WebTransport only)")
		tickBufferDelay = flag.Uint("tick-buffer-delay", 0, "extra ticks to hold tick-buffered input before release, absorbing jitter at the cost of latency")
		maxBandwidthPerPeer = flag.Uint64("max-bandwidth-per-peer", 0, "bytes/sec over the bandwidth window before a peer is disconnected, 0 disables the check")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	secret, err := handshakeSecret()
	if err != nil {
		log.Fatal("handshake secret", zap.Error(err))
	}

	socket, err := openSocket(*listenAddr, *useWebTransport, *hostname, log)
	if err != nil {
		log.Fatal("open socket", zap.Error(err))
	}

	cfg := netcode.ServerConfig{
		Connection: netcode.ConnectionConfig{
			HeartbeatInterval:            *heartbeat,
			DisconnectionTimeoutDuration: *timeout,
			Ping:                         netcode.PingConfig{PingInterval: *pingInterval},
			BandwidthMeasureDuration:     time.Second,
		},
		Protocol: netcode.ProtocolConfig{
			TickInterval:    *tickRate,
			TickBufferDelay: uint16(*tickBufferDelay),
			Socket:          netcode.SocketConfig{ListenAddr: *listenAddr},
		},
		RequireAuth:         *requireAuth,
		MaxBandwidthPerPeer: *maxBandwidthPerPeer,
	}

	io := transport.NewIo(socket, nil, cfg.Connection.BandwidthMeasureDuration)
	catalog := newDemoCatalog()
	world := newDemoWorld()

	srv := netcode.NewServer(cfg, io, catalog, catalog, world, secret, netcode.SystemClock, log)

	reg := prometheus.NewRegistry()
	metrics := netcode.NewMetrics(reg)
	srv.UseMetrics(metrics)

	admin := newAdminServer(srv, reg, log)
	go func() {
		if err := admin.Start(*adminAddr); err != nil {
			log.Info("admin server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("netcodeserver listening",
		zap.String("addr", *listenAddr),
		zap.Bool("webtransport", *useWebTransport),
		zap.Duration("tick", *tickRate),
	)

	runLoop(ctx, srv, *tickRate, log)

	log.Info("shutting down")
	_ = admin.Shutdown(context.Background())
	_ = srv.Close()
}

// runLoop drives Receive()/SendAllUpdates() once per tick, the minimum
// cadence the single-threaded contract (spec §5) requires when tick
// buffering is in use; with no configured tick interval it falls back to a
// fixed poll rate.
func runLoop(ctx context.Context, srv *netcode.Server, tick time.Duration, log *zap.Logger) {
	interval := 20 * time.Millisecond
	if tick > 0 {
		interval = tick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range srv.Receive() {
				handleEvent(srv, ev, log)
			}
			srv.SendAllUpdates()
		}
	}
}

func handleEvent(srv *netcode.Server, ev netcode.Event, log *zap.Logger) {
	switch ev.Kind {
	case netcode.EventConnection:
		log.Info("connection accepted")
	case netcode.EventAuth:
		if !srv.RequireAuth() {
			srv.AcceptConnection(ev.User.Key)
			return
		}
		log.Info("auth pending application decision", zap.Int("payload_bytes", len(ev.AuthPayload)))
	case netcode.EventDisconnection:
		log.Info("connection closed", zap.Int("reason", int(ev.DisconnectReason)))
	case netcode.EventMessage:
		log.Debug("message received", zap.Int("payload_bytes", len(messageBytes(ev.Message))))
	case netcode.EventTick:
		// no-op: SendAllUpdates already runs once per loop iteration.
	case netcode.EventError:
		log.Warn("server error event", zap.Error(ev.Err))
	}
}

func messageBytes(m any) []byte {
	b, _ := m.([]byte)
	return b
}

func openSocket(addr string, useWebTransport bool, hostname string, log *zap.Logger) (transport.Socket, error) {
	if !useWebTransport {
		return transport.ListenUDP(addr)
	}
	tlsConfig, fingerprint, err := generateTLSConfig(defaultCertValidity, hostname)
	if err != nil {
		return nil, err
	}
	log.Info("webtransport TLS fingerprint", zap.String("sha256", fingerprint))
	return transport.ListenWebTransport(addr, tlsConfig)
}

// handshakeSecret reads NETCODE_HANDSHAKE_SECRET (hex-encoded) from the
// environment, generating an ephemeral one with a loud warning if unset —
// fine for local development, wrong for anything that must survive a
// restart with existing clients mid-handshake.
func handshakeSecret() ([]byte, error) {
	if hexSecret := os.Getenv("NETCODE_HANDSHAKE_SECRET"); hexSecret != "" {
		return hex.DecodeString(hexSecret)
	}
	fmt.Fprintln(os.Stderr, "warning: NETCODE_HANDSHAKE_SECRET not set, using an ephemeral secret (see: netcodeserver genkey)")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}
