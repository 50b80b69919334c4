package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/assistant"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	"github.com/MedBuddy-core-poc-v1/server/internal/search"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
	"github.com/MedBuddy-core-poc-v1/server/pkg/metrics"
)

// Assistant answers queries and clears sessions.
type Assistant interface {
	Handle(ctx context.Context, req assistant.Request) (*assistant.Response, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]search.Result, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Deps are the collaborators behind the HTTP routes. Search and Transcriber
// are optional; their routes answer 503 when unset.
type Deps struct {
	Assistant   Assistant
	Search      Searcher
	Transcriber Transcriber
}

// Server is the MedBuddy HTTP surface.
type Server struct {
	echo *echo.Echo
	cfg  model.ServerConfig
	h    *handler
}

func New(cfg model.ServerConfig, deps Deps) (*Server, error) {
	if deps.Assistant == nil {
		return nil, errors.New("assistant is nil")
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "25M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, cfg: cfg, h: &handler{deps: deps}}
	s.useMiddleware()
	s.registerRoutes()
	return s, nil
}

func (s *Server) useMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.BodyLimit(s.cfg.BodyLimit))
	s.echo.Use(requestLogger())
	s.echo.Use(observeRequests)
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")
	api.POST("/query", s.h.query)
	api.DELETE("/sessions/:id", s.h.clearSession)
	api.POST("/search", s.h.search)
	api.POST("/transcribe", s.h.transcribe)
	api.GET("/health", s.h.health)

	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// ServeHTTP lets the server be mounted or tested as a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start blocks serving on cfg.Addr until Shutdown is called.
func (s *Server) Start() error {
	logx.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ===== Middleware =====

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logx.Info()
			if v.Status >= http.StatusInternalServerError {
				event = logx.Error().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func observeRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
		return err
	}
}
