package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"imgvault/internal/batch"
	"imgvault/internal/config"
	"imgvault/internal/logging"
	"imgvault/internal/services"
	"imgvault/internal/vault"
)

const headerRequestID = "X-Request-ID"

// VaultInspector reports vault health for the status endpoint.
type VaultInspector interface {
	Health() error
	Stats() (vault.Stats, error)
}

// Server is the HTTP API (Echo) in front of a batch controller.
type Server struct {
	echo     *echo.Echo
	addr     string
	listener net.Listener
	logger   *slog.Logger
}

// NewServer builds the Echo server with recovery, correlation IDs, request
// logging, and bearer auth when token is non-empty.
func NewServer(addr, token string, ctrl *batch.Controller, v VaultInspector, logger *slog.Logger) *Server {
	logger = logging.NewComponentLogger(logger, "api")
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(correlationID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logging.WithContext(c.Request().Context(), logger).Info("request",
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
				logging.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	if token != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
			Skipper: func(c echo.Context) bool {
				return !strings.HasPrefix(c.Request().URL.Path, "/api/")
			},
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
			},
		}))
	}

	h := &handler{ctrl: ctrl, vault: v, logger: logger}
	h.Register(e)

	return &Server{echo: e, addr: addr, logger: logger}
}

// NewServerFromConfig builds the server from the api section.
func NewServerFromConfig(cfg *config.Config, ctrl *batch.Controller, v VaultInspector, logger *slog.Logger) *Server {
	return NewServer(cfg.API.Bind, cfg.API.Token, ctrl, v, logger)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Listen binds the configured address. Addr reports the bound address
// afterwards, which matters for port 0.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.echo.Listener = ln
	return nil
}

// Addr returns the listening address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Serve blocks until Stop. It calls Listen when needed.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("api listening",
		logging.String("addr", s.Addr()),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// correlationID propagates X-Request-ID, minting one when absent.
func correlationID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(headerRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(headerRequestID, id)
			req := c.Request()
			c.SetRequest(req.WithContext(services.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}
