package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
)

// ReadyFunc reports whether the worker's dependencies are reachable.
type ReadyFunc func(ctx context.Context) bool

// MetricsServer exposes the Prometheus handler and health probes on their
// own listener, next to the scheduled merge.
type MetricsServer struct {
	app  *fiber.App
	addr string
	ln   net.Listener
}

func NewMetricsServer(addr, path string, handler http.Handler, ready ReadyFunc) *MetricsServer {
	if path == "" {
		path = "/metrics"
	}

	app := fiber.New()
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			if ready == nil {
				return true
			}
			return ready(c.Context())
		},
	}))
	app.Get(path, adaptor.HTTPHandler(handler))

	return &MetricsServer{app: app, addr: addr}
}

// App exposes the router, mainly for app.Test in tests.
func (m *MetricsServer) App() *fiber.App { return m.app }

// Start binds the listener and serves in the background.
func (m *MetricsServer) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", m.addr, err)
	}
	m.ln = ln

	go func() {
		if err := m.app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			slog.Error("metrics server stopped", "err", err)
		}
	}()
	slog.Info("metrics server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (m *MetricsServer) Addr() string {
	if m.ln == nil {
		return m.addr
	}
	return m.ln.Addr().String()
}

func (m *MetricsServer) Stop(ctx context.Context) error {
	return m.app.ShutdownWithContext(ctx)
}
