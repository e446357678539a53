// Package api exposes the inbox, preferences and coaching operations over
// HTTP.
package api

import (
	"context"
	"embed"
	"net/http"
	"time"

	"coaching-notifier/internal/coaching"
	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/common/validation"
	"coaching-notifier/internal/inbox"
	"coaching-notifier/internal/models"
	"coaching-notifier/internal/preferences"
	"coaching-notifier/internal/schedule"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	preferencesSchema = mustSchema("preferences")
	scheduleSchema    = mustSchema("schedule")
	sessionSchema     = mustSchema("session")
	resourceSchema    = mustSchema("resource")
)

func mustSchema(name string) *validation.Schema {
	doc, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		panic(err)
	}
	return validation.MustCompile(name, string(doc))
}

type InboxService interface {
	List(ctx context.Context, userID string, f inbox.Filter) (inbox.Page, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type PreferenceService interface {
	Get(ctx context.Context, userID string) (*preferences.Preferences, error)
	Update(ctx context.Context, userID string, toggles preferences.Toggles) (*preferences.Preferences, error)
}

type CoachingService interface {
	SetSchedule(ctx context.Context, clientID string, rec schedule.Recurrence) (*models.Schedule, error)
	LogSession(ctx context.Context, in coaching.LogSessionInput) (*coaching.LogSessionResult, error)
	ShareResource(ctx context.Context, in coaching.ShareResourceInput) (*coaching.ShareResourceResult, error)
}

// Dependencies wires the server. Ready reports whether backing stores are
// reachable; nil means always ready.
type Dependencies struct {
	Inbox       InboxService
	Preferences PreferenceService
	Coaching    CoachingService
	Ready       func(ctx context.Context) error
	Logger      logger.Logger
}

type Server struct {
	echo   *echo.Echo
	deps   Dependencies
	logger logger.Logger
}

func NewServer(deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: deps.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", map[string]interface{}{
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latencyMs": v.Latency.Milliseconds(),
			})
			return nil
		},
	}))

	e.GET("/health", s.health)
	e.GET("/ready", s.ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	users := api.Group("/users/:userID")
	users.GET("/notifications", s.listNotifications)
	users.POST("/notifications/read-all", s.markAllRead)
	users.POST("/notifications/:id/read", s.markRead)
	users.GET("/preferences", s.getPreferences)
	users.PUT("/preferences", s.updatePreferences)

	api.PUT("/clients/:clientID/schedule", s.setSchedule)
	api.POST("/clients/:clientID/sessions", s.logSession)
	api.POST("/coaches/:coachID/resources", s.shareResource)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// clean shutdown.
func (s *Server) Start(addr string, readTimeout, writeTimeout time.Duration) error {
	s.echo.Server.ReadTimeout = readTimeout
	s.echo.Server.WriteTimeout = writeTimeout
	s.logger.Info("http server listening", map[string]interface{}{"address": addr})
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(c echo.Context) error {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(c.Request().Context()); err != nil {
			s.logger.Warn("readiness check failed", map[string]interface{}{"error": err.Error()})
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"time":   time.Now().Format(time.RFC3339),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}
