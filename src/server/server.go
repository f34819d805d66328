// Package server exposes the process status over HTTP: liveness, the gateway
// session snapshot and prometheus metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hendrywilliam/tether/src/gateway"
	"github.com/hendrywilliam/tether/src/metrics"
)

// StatusSource is satisfied by *gateway.Session.
type StatusSource interface {
	Status() gateway.Status
}

type Server struct {
	router  *fiber.App
	session StatusSource
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewServer(session StatusSource, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	server := &Server{
		session: session,
		metrics: m,
		log:     logger,
	}
	server.setupRouter()
	return server
}

func (server *Server) setupRouter() {
	router := fiber.New()
	router.Use(server.RequestLogMiddleware)
	router.Get("/healthz", func(c fiber.Ctx) error {
		status := server.session.Status()
		if status.State != gateway.StateConnected.String() {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"state": status.State})
		}
		return c.JSON(fiber.Map{"state": status.State})
	})
	router.Get("/status", func(c fiber.Ctx) error {
		return c.JSON(server.session.Status())
	})
	if registry := server.metrics.Registry(); registry != nil {
		router.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	server.router = router
}

// StartServer blocks serving addr until ctx is done.
func (server *Server) StartServer(ctx context.Context, addr string) error {
	server.log.Info("status server start", "address", addr)
	return server.router.Listen(addr, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
		OnShutdownSuccess: func() {
			server.log.Info("status server stopped.")
		},
	})
}
