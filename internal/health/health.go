// Package health serves a liveness endpoint next to the bot.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serverShutdownTimeout = 5 * time.Second

// Response is the body of GET /health.
type Response struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Handler answers health checks.
type Handler struct {
	version string
}

// NewHandler creates a health handler reporting version.
func NewHandler(version string) *Handler {
	return &Handler{version: version}
}

// Check reports that the process is alive.
func (h *Handler) Check(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, Response{Status: "ok", Version: h.version})
}

// NewEngine builds the gin engine with recovery, request logging and the
// health route.
func NewEngine(version string, logger *slog.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))

	h := NewHandler(version)
	engine.GET("/health", h.Check)
	return engine
}

// RequestLogger logs one line per request at debug level, or warn for
// server errors.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

// Server runs the health endpoint.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a server listening on port.
func NewServer(port int, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           NewEngine(version, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the port synchronously and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}

	go func() {
		s.logger.Info("Starting HTTP server", "address", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server, waiting at most a few seconds for requests
// in flight.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, serverShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
