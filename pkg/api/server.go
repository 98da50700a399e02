// Package api exposes the orchestrator over HTTP: a synchronous chat
// endpoint, an SSE streaming variant that narrates agent events as they
// happen, and plain session management endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/skydeck/missionctl/pkg/events"
	"github.com/skydeck/missionctl/pkg/orchestrator"
	"github.com/skydeck/missionctl/pkg/session"
)

// Server is the user-facing HTTP API.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	orch      *orchestrator.Orchestrator
	sessions  *session.Manager
	publisher *events.Publisher
	logger    *slog.Logger
}

// NewServer creates the API server with Echo v5, wired directly against an
// already-constructed Orchestrator. Unlike a service with independently
// optional collaborators, every dependency here is required at
// construction time since the chat endpoints have nothing to fall back to.
func NewServer(orch *orchestrator.Orchestrator, sessions *session.Manager, publisher *events.Publisher, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:      e,
		orch:      orch,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the underlying HTTP handler for tests that want to drive
// the server through httptest.NewServer without a real listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s.echo.GET("/api/health", s.healthHandler)
	s.echo.POST("/api/chat", s.chatHandler)
	s.echo.POST("/api/chat/stream", s.chatStreamHandler)
	s.echo.POST("/api/sessions", s.createSessionHandler)
	s.echo.GET("/api/sessions/:id/history", s.sessionHistoryHandler)
	s.echo.DELETE("/api/sessions/:id", s.deleteSessionHandler)
}

// Start begins serving on addr. It blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
		// No WriteTimeout: the SSE stream holds the response open for the
		// duration of a react loop, which can run well past a fixed ceiling.
		ReadTimeout: 15 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	agents := s.orch.AgentHealth(c.Request().Context())

	healthyCount := 0
	for _, up := range agents {
		if up {
			healthyCount++
		}
	}
	status := "healthy"
	switch {
	case healthyCount == 0:
		status = "unhealthy"
	case healthyCount < len(agents):
		status = "degraded"
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":    status,
		"agents":    agents,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) createSessionHandler(c *echo.Context) error {
	sess := s.sessions.Create()
	return c.JSON(http.StatusOK, map[string]string{"session_id": sess.ID})
}

func (s *Server) sessionHistoryHandler(c *echo.Context) error {
	id := c.Param("id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"history":    sess.History(),
	})
}

func (s *Server) deleteSessionHandler(c *echo.Context) error {
	id := c.Param("id")
	if err := s.sessions.Delete(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
