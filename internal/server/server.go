// Package server builds the HTTP server and its routes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mauv0809/portfolio-tracker/internal/handlers"
	"github.com/rs/zerolog"
)

// Server owns one echo instance and the routes registered on it.
type Server struct {
	echo *echo.Echo
	log  zerolog.Logger
}

// New creates a server with middleware and routes registered.
func New(h *handlers.Handler, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo: e,
		log:  log.With().Str("component", "server").Logger(),
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:     true,
		LogURI:        true,
		LogMethod:     true,
		LogLatency:    true,
		LogRequestID:  true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: s.logRequest,
	}))
	e.Use(middleware.Recover())

	s.routes(h)
	return s
}

func (s *Server) routes(h *handlers.Handler) {
	s.echo.GET("/health", h.Health)
	s.echo.GET("/", h.Index)

	api := s.echo.Group("/get_portfolio", h.RequireStore)
	api.GET("", h.GetPortfolio)
	api.POST("", h.PostPortfolio)
	api.PUT("", h.PutPortfolio)
	api.DELETE("", h.DeletePortfolio)

	admin := s.echo.Group("/admin/ingest", h.RequireStore)
	admin.GET("/status", h.IngestStatus)
	admin.POST("/csv", h.IngestCSV)
}

func (s *Server) logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	event := s.log.Info()
	if v.Error != nil || v.Status >= http.StatusInternalServerError {
		event = s.log.Error().Err(v.Error)
	}
	event.
		Str("request_id", v.RequestID).
		Str("method", v.Method).
		Str("uri", v.URI).
		Int("status", v.Status).
		Dur("latency", v.Latency).
		Msg("request")
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("Starting server")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting up to timeout for open requests.
func (s *Server) Shutdown(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
