package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/valnssh/vaporBooster/internal/apperrors"
	"github.com/valnssh/vaporBooster/internal/qr"
)

func (s *Server) handleStartQR(c echo.Context) error {
	started, err := s.qrFlow.Start(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to start QR handshake", err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"id":            started.ID.String(),
		"challenge_url": started.ChallengeURL,
	})
}

// handlePollQR waits briefly for the handshake to settle. An authenticated
// outcome creates (or refreshes) the account and activates it before the
// response goes out.
func (s *Server) handlePollQR(c echo.Context) error {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return apperrors.ValidationError("invalid handshake id").WithField("id", raw)
	}

	ctx := c.Request().Context()
	result, err := s.qrFlow.Poll(ctx, id)
	if errors.Is(err, qr.ErrHandshakeNotFound) {
		return apperrors.NotFoundError("handshake not found").WithField("id", id.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to poll handshake", err)
	}

	switch result.State {
	case qr.StateAuthenticated:
		acc, err := s.app.CompleteQRLogin(ctx, result)
		if err != nil {
			return apperrors.InternalError("failed to complete QR login", err).
				WithField("account_name", result.AccountName)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"state":   string(result.State),
			"account": s.toAccountResponse(acc),
		})
	case qr.StateError:
		return c.JSON(http.StatusOK, map[string]string{
			"state": string(result.State),
			"error": result.Cause.Error(),
		})
	default:
		return c.JSON(http.StatusOK, map[string]string{"state": string(result.State)})
	}
}
