package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Account CRUD and session control
	s.echo.GET("/api/accounts", s.handleListAccounts)
	s.echo.POST("/api/accounts", s.handleCreateAccount)
	s.echo.GET("/api/accounts/:id", s.handleGetAccount)
	s.echo.DELETE("/api/accounts/:id", s.handleDeleteAccount)
	s.echo.POST("/api/accounts/:id/start", s.handleStartAccount)
	s.echo.POST("/api/accounts/:id/stop", s.handleStopAccount)
	s.echo.PUT("/api/accounts/:id/config", s.handleUpdateConfig)

	// Guard codes are brute-forceable, rate limit their submission
	codeLimiter := newRateLimiter(1, 5)
	s.echo.POST("/api/accounts/:id/code", s.handleSubmitCode, codeLimiter)

	// Chat history
	s.echo.GET("/api/accounts/:id/messages", s.handleListMessages)
	s.echo.DELETE("/api/accounts/:id/messages/:counterpart", s.handleDeleteConversation)

	// QR login
	qrLimiter := newRateLimiter(0.5, 3)
	s.echo.POST("/api/qr", s.handleStartQR, qrLimiter)
	s.echo.GET("/api/qr/:id", s.handlePollQR)

	// Dashboard status stream
	s.echo.GET("/ws", s.handleStatusStream)
}
