// Package httpserver exposes the booster's operations over HTTP. Handlers
// trust the account id in the path; there is no auth gate in front of them.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/valnssh/vaporBooster/internal/apperrors"
	"github.com/valnssh/vaporBooster/internal/config"
	"github.com/valnssh/vaporBooster/internal/domain"
	"github.com/valnssh/vaporBooster/internal/qr"
	"github.com/valnssh/vaporBooster/internal/stream"
)

type boosterService interface {
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	CreateAccount(ctx context.Context, params domain.NewAccountParams) (*domain.Account, error)
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
	Start(ctx context.Context, accountID uuid.UUID, ephemeralPassword string) error
	Stop(ctx context.Context, accountID uuid.UUID)
	UpdateConfig(ctx context.Context, accountID uuid.UUID, config domain.AccountConfig) error
	SubmitCode(accountID uuid.UUID, code string) error
	Status(accountID uuid.UUID) domain.Status
	AllStatuses() map[uuid.UUID]domain.Status
	Messages(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ChatMessage, error)
	DeleteConversation(ctx context.Context, accountID uuid.UUID, counterpartID string) error
	CompleteQRLogin(ctx context.Context, result qr.Result) (*domain.Account, error)
}

type qrService interface {
	Start(ctx context.Context) (qr.Started, error)
	Poll(ctx context.Context, id uuid.UUID) (qr.Result, error)
}

// HealthCheck is a named readiness probe.
type HealthCheck struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app          boosterService
	qrFlow       qrService
	hub          *stream.Hub
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, app boosterService, qrFlow qrService, hub *stream.Hub, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		qrFlow:       qrFlow,
		hub:          hub,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
