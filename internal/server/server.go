// Package server exposes the interview engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/leep66666/smart-job-assistant-backend/internal/files"
	"github.com/leep66666/smart-job-assistant-backend/internal/history"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// QuestionSource produces the ordered question list for a new session.
type QuestionSource interface {
	Generate(ctx context.Context, jobDescription string) ([]interview.Question, []string)
}

// Deps aggregates everything the HTTP layer serves.
type Deps struct {
	Questions QuestionSource
	Store     *interview.Store
	Reports   *interview.ReportBuilder
	History   *history.Store
	Layout    files.Layout
	Logger    *zap.Logger

	// MaxUploadMB caps request bodies; zero selects 10.
	MaxUploadMB int
	// MaxInputChars caps job description text; zero selects 24000.
	MaxInputChars int
}

// Server wires the echo engine around the interview components.
type Server struct {
	echo *echo.Echo
	deps Deps
}

// New builds the HTTP server with routing and middleware configured.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxUploadMB <= 0 {
		deps.MaxUploadMB = 10
	}
	if deps.MaxInputChars <= 0 {
		deps.MaxInputChars = 24000
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", deps.MaxUploadMB)))
	e.Use(requestLogger(deps.Logger))

	s := &Server{echo: e, deps: deps}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/api/interview/questions", s.handleCreateSession)
	s.echo.POST("/api/interview/answer", s.handleSubmitAnswer)
	s.echo.GET("/api/interview/session/:id", s.handleSessionStatus)
	s.echo.GET("/api/interview/report/:id", s.handleReport)
	s.echo.GET("/api/interview/history", s.handleHistory)
	s.echo.GET("/api/files/:name", s.handleDownload)
}

// Handler exposes the routing tree, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.deps.Logger.Info("http server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("elapsed", time.Since(start)),
			)
			return err
		}
	}
}
