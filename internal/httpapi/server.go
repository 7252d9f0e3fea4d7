// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httpapi serves the generation workflow over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/internal/publish"
	"github.com/pdiddy/contentforge/internal/workflow"
	"github.com/pdiddy/contentforge/pkg/types"
)

// Service is the workflow surface the API needs. *workflow.Service
// implements it.
type Service interface {
	Generate(ctx context.Context, req workflow.Request) workflow.Result
	Publish(ctx context.Context, r *types.Report, dest publish.Destination) error
}

// PublishRequest carries a previously generated report back for publishing.
// Empty destination fields fall back to the configured defaults.
type PublishRequest struct {
	Report  *types.Report `json:"report"`
	Folder  string        `json:"folder,omitempty"`
	Channel string        `json:"channel,omitempty"`
}

// PublishResponse reports where the document and announcement went.
type PublishResponse struct {
	Success         bool          `json:"success"`
	SharePointURL   string        `json:"sharepoint_url,omitempty"`
	TeamsMessageURL string        `json:"teams_message_url,omitempty"`
	Report          *types.Report `json:"report,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// Config configures a Server.
type Config struct {
	Version        string
	RequestTimeout time.Duration
	Publish        publish.Destination
	Gatherer       prometheus.Gatherer
}

// Server routes API requests to the workflow.
type Server struct {
	echo   *echo.Echo
	svc    Service
	cfg    Config
	logger *zap.Logger
}

// New builds the router.
func New(svc Service, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s := &Server{echo: e, svc: svc, cfg: cfg, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	api := e.Group("/api/v1")
	api.POST("/content/generate", s.generate)
	api.POST("/publish", s.publish)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.echo.Start(addr) }()
	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdown)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "version": s.cfg.Version})
}

func (s *Server) generate(c echo.Context) error {
	var req workflow.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, workflow.Result{Error: "malformed request body", Message: "Invalid request."})
	}
	if err := req.Normalize(); err != nil {
		return c.JSON(http.StatusBadRequest, workflow.Result{Error: err.Error(), Message: "Invalid request."})
	}

	ctx := c.Request().Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	res := s.svc.Generate(ctx, req)
	if !res.Success {
		return c.JSON(http.StatusInternalServerError, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) publish(c echo.Context) error {
	var req PublishRequest
	if err := c.Bind(&req); err != nil || req.Report == nil {
		return c.JSON(http.StatusBadRequest, PublishResponse{Error: "request must carry a report"})
	}
	dest := publish.Destination{Folder: req.Folder, Channel: req.Channel}
	if dest.Folder == "" {
		dest.Folder = s.cfg.Publish.Folder
	}
	if dest.Channel == "" {
		dest.Channel = s.cfg.Publish.Channel
	}

	err := s.svc.Publish(c.Request().Context(), req.Report, dest)
	if err != nil {
		return c.JSON(statusFor(err), PublishResponse{Error: err.Error(), Report: req.Report})
	}
	return c.JSON(http.StatusOK, PublishResponse{
		Success:         true,
		SharePointURL:   req.Report.SharePointURL,
		TeamsMessageURL: req.Report.TeamsMessageURL,
		Report:          req.Report,
	})
}

// statusFor maps workflow errors to HTTP statuses.
func statusFor(err error) int {
	var ve *types.ValidationError
	var ce *types.CollaboratorError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNoPublisher):
		return http.StatusServiceUnavailable
	case errors.As(err, &ce):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
