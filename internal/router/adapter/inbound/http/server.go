package http_handler

import (
	"bytes"
	"context"
	"errors"
	"net"

	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/anthanhphan/go-distributed-cache/internal/router/config"
	"github.com/anthanhphan/go-distributed-cache/internal/router/port"
)

// Server is the gateway HTTP front end over a routing client.
type Server struct {
	app     *fiber.App
	cfg     config.ServerConfig
	service port.CacheService

	// base parents every request context and is cancelled by Stop.
	base   context.Context
	cancel context.CancelFunc
}

func NewServer(cfg config.ServerConfig, service port.CacheService) *Server {
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

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:     app,
		cfg:     cfg,
		service: service,
		base:    base,
		cancel:  cancel,
	}
	app.Use(s.requestContext)
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/nodes", s.handleNodes)
	s.app.Get("/route/*", s.handleRoute)

	s.app.Get("/cache/*", s.handleGet)
	s.app.Put("/cache/*", s.handlePut)
	s.app.Post("/cache/*", s.handlePut)
	s.app.Delete("/cache/*", s.handleDelete)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Addr)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Stop drains in-flight requests until ctx ends, then cancels the node
// calls still running.
func (s *Server) Stop(ctx context.Context) error {
	release := context.AfterFunc(ctx, s.cancel)
	defer release()
	defer s.cancel()
	return s.app.ShutdownWithContext(ctx)
}

// requestContext scopes node calls to the request. The context is bounded
// by the handler timeout and derives from the server's base context.
func (s *Server) requestContext(c *fiber.Ctx) error {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout := s.cfg.HandlerTimeout(); timeout > 0 {
		ctx, cancel = context.WithTimeout(s.base, timeout)
	} else {
		ctx, cancel = context.WithCancel(s.base)
	}
	defer cancel()

	c.SetUserContext(ctx)
	return c.Next()
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleNodes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"nodes": s.service.Nodes()})
}

func (s *Server) handleRoute(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing key")
	}
	node, ok := s.service.Locate(key)
	if !ok {
		return s.sendJSONError(c, fiber.StatusServiceUnavailable, port.ErrNoNodesAvailable.Error())
	}
	return c.JSON(fiber.Map{"key": key, "node": node})
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing key")
	}

	value, found, err := s.service.Get(c.UserContext(), key)
	if err != nil {
		return s.sendServiceError(c, "get", key, err)
	}
	if !found {
		return s.sendJSONError(c, fiber.StatusNotFound, "Key not found")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(value)
}

func (s *Server) handlePut(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing key")
	}
	body := c.Body()
	if len(body) == 0 {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing value")
	}

	if err := s.service.Put(c.UserContext(), key, bytes.Clone(body)); err != nil {
		return s.sendServiceError(c, "put", key, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing key")
	}

	if err := s.service.Delete(c.UserContext(), key); err != nil {
		return s.sendServiceError(c, "delete", key, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) sendServiceError(c *fiber.Ctx, op, key string, err error) error {
	switch {
	case errors.Is(err, port.ErrNoNodesAvailable), errors.Is(err, port.ErrClientClosed):
		return s.sendJSONError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		sdklogger.Warnw("Cache request timed out", "op", op, "key", key, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusGatewayTimeout, err.Error())
	case errors.Is(err, port.ErrTransport):
		sdklogger.Warnw("Cache request failed", "op", op, "key", key, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusBadGateway, err.Error())
	default:
		sdklogger.Errorw("Cache request failed", "op", op, "key", key, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}
}
