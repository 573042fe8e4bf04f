// Package server assembles the Echo app: the update intake plus the
// operator endpoints.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/arendabot/arendabot/internal/config"
	"github.com/arendabot/arendabot/internal/dispatch"
	"github.com/arendabot/arendabot/internal/handler"
	"github.com/arendabot/arendabot/internal/logsink"
	"github.com/arendabot/arendabot/internal/response"
)

const shutdownGrace = 10 * time.Second

// Server holds the Echo app and its configuration.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
}

// New builds the Echo server and registers routes.
func New(cfg *config.Config, d *dispatch.Dispatcher, recent *logsink.Recent, status dispatch.StatusFunc) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover(), middleware.Logger())

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	update := &handler.UpdateHandler{Dispatcher: d}
	ops := &handler.OpsHandler{Recent: recent, Status: status}

	e.POST("/updates", update.HandleUpdate)
	e.GET("/healthz", func(c echo.Context) error {
		return response.OK(c, map[string]string{"status": "ok"}, "")
	})
	e.GET("/logs/recent", ops.RecentLogs)
	e.GET("/status", ops.GetStatus)

	return &Server{Echo: e, Config: cfg}
}

// Start serves HTTP until the context is cancelled, then shuts down
// gracefully. Blocks; returns nil on a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = s.Echo.Shutdown(shutdownCtx)
	}()
	err := s.Echo.Start(s.Config.Server.Address())
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server without waiting for the context watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
