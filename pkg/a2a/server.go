package a2a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

// Handler processes a single Task and produces a TaskResult. Agents
// register one Handler per skill.
type Handler func(ctx context.Context, task *Task) (*TaskResult, error)

// Server exposes an agent's skills over HTTP: GET /.well-known/agent.json
// for discovery and POST /tasks for dispatch. One Server instance backs
// one agent process.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	card       Card
	handlers   map[string]Handler
	logger     *slog.Logger
}

// NewServer creates a transport server advertising the given Card. Skills
// are wired afterward with Register; ValidateWiring reports any Card skill
// that has no matching registered handler. Start itself does not check.
func NewServer(card Card, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:     e,
		card:     card,
		handlers: make(map[string]Handler),
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// Register binds a skill ID to its Handler.
func (s *Server) Register(skillID string, h Handler) {
	s.handlers[skillID] = h
}

// Handler exposes the underlying HTTP handler, letting callers wrap this
// Server in an httptest.Server without a real listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(5 * 1024 * 1024))
	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/ping", s.healthHandler)
	s.echo.GET("/.well-known/agent.json", s.cardHandler)
	s.echo.POST("/tasks", s.dispatchHandler)
}

// ValidateWiring verifies every advertised skill has a registered handler.
// Call after all Register calls and before Start so wiring gaps surface at
// startup rather than as UnknownSkill errors at request time.
func (s *Server) ValidateWiring() error {
	var errs []error
	for _, sk := range s.card.Skills {
		if _, ok := s.handlers[sk.ID]; !ok {
			errs = append(errs, fmt.Errorf("skill %q advertised but no handler registered", sk.ID))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("a2a server wiring incomplete: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) cardHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.card)
}

func (s *Server) dispatchHandler(c *echo.Context) error {
	var task Task
	if err := c.Bind(&task); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid task payload: " + err.Error()})
	}

	handler, ok := s.handlers[task.Skill]
	if !ok {
		return c.JSON(http.StatusOK, &TaskResult{
			TaskID:      task.ID,
			Success:     false,
			Error:       fmt.Sprintf("%s: no handler for skill %q", ErrKindUnknownSkill, task.Skill),
			CompletedAt: time.Now().UTC(),
		})
	}

	ctx := c.Request().Context()
	if task.Deadline != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, *task.Deadline)
		defer cancel()
	}

	start := time.Now()
	result, err := handler(ctx, &task)
	if err != nil {
		s.logger.Error("a2a handler failed", "skill", task.Skill, "task_id", task.ID, "error", err)
		kind := ErrKindTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = ErrKindTimeout
		}
		return c.JSON(http.StatusOK, &TaskResult{
			TaskID:      task.ID,
			Success:     false,
			Error:       fmt.Sprintf("%s: %s", kind, err.Error()),
			DurationMs:  time.Since(start).Milliseconds(),
			CompletedAt: time.Now().UTC(),
		})
	}
	if result == nil {
		s.logger.Error("a2a handler returned nil result without error", "skill", task.Skill, "task_id", task.ID)
		return c.JSON(http.StatusOK, &TaskResult{
			TaskID:      task.ID,
			Success:     false,
			Error:       fmt.Sprintf("%s: handler returned no result", ErrKindTransport),
			CompletedAt: time.Now().UTC(),
		})
	}
	result.DurationMs = time.Since(start).Milliseconds()
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now().UTC()
	}
	return c.JSON(http.StatusOK, result)
}

// Start begins serving on addr. It blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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
