package server

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

func (server *Server) RequestLogMiddleware(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	server.log.Debug("status request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start).String(),
	)
	return err
}
