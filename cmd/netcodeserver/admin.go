package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	netcode "github.com/ardentnet/netcode"
)

// requestIDFromUUID swaps echo's default request-id generator (a short
// random string) for a real UUIDv4, the same scheme as the CorrelationID
// each Connection carries (connection.go). Neither ID is written into a
// log line by this module.
func requestIDFromUUID() string { return uuid.NewString() }

// newAdminServer builds the operator-facing HTTP surface: health, Prometheus
// metrics, and a snapshot of live connection count. Kept entirely separate
// from the UDP/WebTransport game socket — admin traffic never touches the
// single-threaded Server driver loop except through the UsersCount
// accessor, which is safe to call concurrently with Receive()/
// SendAllUpdates() from another goroutine because it reads an atomic
// counter the driver updates alongside its connection map, not the map
// itself; nothing here mutates Server state.
func newAdminServer(srv *netcode.Server, reg *prometheus.Registry, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: requestIDFromUUID}))
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":      "ok",
			"connections": srv.UsersCount(),
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return e
}
