package http_handler

import (
	"context"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/config"
	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/port"
)

// Server exposes a port.Store as GET/PUT/POST/DELETE /{key}.
type Server struct {
	app   *fiber.App
	cfg   config.ServerConfig
	store port.Store
}

func NewServer(cfg config.ServerConfig, store port.Store) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimit,
		UnescapePath:          true,
		CaseSensitive:         true,
		StrictRouting:         true,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(fiberlogger.New())
	}

	s := &Server{
		app:   app,
		cfg:   cfg,
		store: store,
	}
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/*", s.handleGet)
	s.app.Put("/*", s.handlePut)
	s.app.Post("/*", s.handlePut)
	s.app.Delete("/*", s.handleDelete)
}

// Serve accepts connections on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing key")
	}
	value, ok := s.store.Get(key)
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(value)
}

func (s *Server) handlePut(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing key")
	}
	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).SendString("missing value")
	}
	// fiber reuses the path buffer after the handler returns
	s.store.Put(strings.Clone(key), body)
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing key")
	}
	s.store.Delete(key)
	return c.SendStatus(fiber.StatusOK)
}
