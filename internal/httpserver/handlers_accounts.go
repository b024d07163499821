package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/valnssh/vaporBooster/internal/apperrors"
	"github.com/valnssh/vaporBooster/internal/domain"
)

const defaultMessageLimit = 50

type accountResponse struct {
	ID               uuid.UUID  `json:"id"`
	AccountName      string     `json:"account_name"`
	Status           string     `json:"status"`
	BoostStartedAt   *time.Time `json:"boost_started_at,omitempty"`
	Games            []int32    `json:"games"`
	CustomTitle      string     `json:"custom_title"`
	PersonaState     int        `json:"persona_state"`
	AutoReplyMessage string     `json:"auto_reply_message"`
	HasCredential    bool       `json:"has_credential"`
	HasSharedSecret  bool       `json:"has_shared_secret"`
	CreatedAt        time.Time  `json:"created_at"`
}

// toAccountResponse maps an account to its API shape. Live status wins over
// the persisted column; credentials and shared secrets never leave the
// process.
func (s *Server) toAccountResponse(acc *domain.Account) accountResponse {
	games := acc.Games
	if games == nil {
		games = []int32{}
	}
	return accountResponse{
		ID:               acc.ID,
		AccountName:      acc.AccountName,
		Status:           string(s.app.Status(acc.ID)),
		BoostStartedAt:   acc.BoostStartedAt,
		Games:            games,
		CustomTitle:      acc.CustomTitle,
		PersonaState:     acc.PersonaState,
		AutoReplyMessage: acc.AutoReplyMessage,
		HasCredential:    acc.Credential != nil,
		HasSharedSecret:  acc.SharedSecret != "",
		CreatedAt:        acc.CreatedAt,
	}
}

func accountIDParam(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid account id").WithField("id", raw)
	}
	return id, nil
}

func (s *Server) handleListAccounts(c echo.Context) error {
	accounts, err := s.app.ListAccounts(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list accounts", err)
	}

	responses := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		responses = append(responses, s.toAccountResponse(acc))
	}
	return c.JSON(http.StatusOK, responses)
}

func (s *Server) handleGetAccount(c echo.Context) error {
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}

	acc, err := s.app.GetAccount(c.Request().Context(), id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return apperrors.NotFoundError("account not found").WithField("id", id.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to load account", err)
	}
	return c.JSON(http.StatusOK, s.toAccountResponse(acc))
}

type createAccountRequest struct {
	AccountName  string `json:"account_name"`
	Password     string `json:"password"`
	SharedSecret string `json:"shared_secret"`
}

func (s *Server) handleCreateAccount(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.AccountName == "" {
		return apperrors.ValidationError("account_name is required")
	}

	ctx := c.Request().Context()
	acc, err := s.app.CreateAccount(ctx, domain.NewAccountParams{
		AccountName:  req.AccountName,
		SharedSecret: req.SharedSecret,
	})
	if err != nil {
		return apperrors.InternalError("failed to create account", err).
			WithField("account_name", req.AccountName)
	}

	// The password is ephemeral: used for the initial login, never stored.
	if req.Password != "" {
		if err := s.app.Start(ctx, acc.ID, req.Password); err != nil {
			return c.JSON(http.StatusCreated, map[string]any{
				"account": s.toAccountResponse(acc),
				"warning": fmt.Sprintf("account created but login failed: %v", err),
			})
		}
	}
	return c.JSON(http.StatusCreated, map[string]any{"account": s.toAccountResponse(acc)})
}

func (s *Server) handleDeleteAccount(c echo.Context) error {
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}

	err = s.app.DeleteAccount(c.Request().Context(), id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return apperrors.NotFoundError("account not found").WithField("id", id.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to delete account", err)
	}
	return c.NoContent(http.StatusNoContent)
}

type startAccountRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleStartAccount(c echo.Context) error {
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}

	var req startAccountRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	err = s.app.Start(c.Request().Context(), id, req.Password)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return apperrors.NotFoundError("account not found").WithField("id", id.String())
	}
	if errors.Is(err, domain.ErrNoCredentials) {
		return apperrors.ValidationError("no stored credentials, supply a password or use qr login").
			WithField("id", id.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to start session", err).WithField("id", id.String())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(s.app.Status(id))})
}

func (s *Server) handleStopAccount(c echo.Context) error {
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}

	s.app.Stop(c.Request().Context(), id)
	return c.JSON(http.StatusOK, map[string]string{"status": string(s.app.Status(id))})
}

type updateConfigRequest struct {
	Games            []int32 `json:"games"`
	CustomTitle      string  `json:"custom_title"`
	PersonaState     int     `json:"persona_state"`
	AutoReplyMessage string  `json:"auto_reply_message"`
}

func (s *Server) handleUpdateConfig(c echo.Context) error {
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}

	var req updateConfigRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	err = s.app.UpdateConfig(c.Request().Context(), id, domain.AccountConfig{
		Games:            req.Games,
		CustomTitle:      req.CustomTitle,
		PersonaState:     req.PersonaState,
		AutoReplyMessage: req.AutoReplyMessage,
	})
	switch {
	case errors.Is(err, domain.ErrTooManyGames):
		return apperrors.ValidationError("too many games in activity set").
			WithField("limit", fmt.Sprintf("%d", domain.MaxGames))
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperrors.NotFoundError("account not found").WithField("id", id.String())
	case err != nil:
		return apperrors.InternalError("failed to update config", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type submitCodeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleSubmitCode(c echo.Context) error {
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}

	var req submitCodeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Code == "" {
		return apperrors.ValidationError("code is required")
	}

	if err := s.app.SubmitCode(id, req.Code); err != nil {
		return apperrors.NotFoundError("no active session for account").WithField("id", id.String())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type messageResponse struct {
	ID            int64     `json:"id"`
	CounterpartID string    `json:"counterpart_id"`
	SenderName    string    `json:"sender_name"`
	Content       string    `json:"content"`
	Direction     string    `json:"direction"`
	Timestamp     time.Time `json:"timestamp"`
}

func (s *Server) handleListMessages(c echo.Context) error {
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}

	messages, err := s.app.Messages(c.Request().Context(), id, defaultMessageLimit)
	if err != nil {
		return apperrors.InternalError("failed to list messages", err).WithField("id", id.String())
	}

	responses := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		responses = append(responses, messageResponse{
			ID:            msg.ID,
			CounterpartID: msg.CounterpartID,
			SenderName:    msg.SenderName,
			Content:       msg.Content,
			Direction:     string(msg.Direction),
			Timestamp:     msg.Timestamp,
		})
	}
	return c.JSON(http.StatusOK, responses)
}

func (s *Server) handleDeleteConversation(c echo.Context) error {
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}
	counterpart := c.Param("counterpart")
	if counterpart == "" {
		return apperrors.ValidationError("counterpart is required")
	}

	if err := s.app.DeleteConversation(c.Request().Context(), id, counterpart); err != nil {
		return apperrors.InternalError("failed to delete conversation", err).WithField("id", id.String())
	}
	return c.NoContent(http.StatusNoContent)
}
