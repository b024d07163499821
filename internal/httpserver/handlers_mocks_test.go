package httpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/valnssh/vaporBooster/internal/config"
	"github.com/valnssh/vaporBooster/internal/domain"
	"github.com/valnssh/vaporBooster/internal/qr"
	"github.com/valnssh/vaporBooster/internal/stream"
)

type mockBoosterService struct {
	listAccountsFn       func(ctx context.Context) ([]*domain.Account, error)
	getAccountFn         func(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	createAccountFn      func(ctx context.Context, params domain.NewAccountParams) (*domain.Account, error)
	deleteAccountFn      func(ctx context.Context, accountID uuid.UUID) error
	startFn              func(ctx context.Context, accountID uuid.UUID, ephemeralPassword string) error
	stopFn               func(ctx context.Context, accountID uuid.UUID)
	updateConfigFn       func(ctx context.Context, accountID uuid.UUID, config domain.AccountConfig) error
	submitCodeFn         func(accountID uuid.UUID, code string) error
	statusFn             func(accountID uuid.UUID) domain.Status
	messagesFn           func(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ChatMessage, error)
	deleteConversationFn func(ctx context.Context, accountID uuid.UUID, counterpartID string) error
	completeQRLoginFn    func(ctx context.Context, result qr.Result) (*domain.Account, error)
}

func (m *mockBoosterService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	if m.listAccountsFn != nil {
		return m.listAccountsFn(ctx)
	}
	return nil, nil
}

func (m *mockBoosterService) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	if m.getAccountFn != nil {
		return m.getAccountFn(ctx, accountID)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *mockBoosterService) CreateAccount(ctx context.Context, params domain.NewAccountParams) (*domain.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBoosterService) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(ctx, accountID)
	}
	return nil
}

func (m *mockBoosterService) Start(ctx context.Context, accountID uuid.UUID, ephemeralPassword string) error {
	if m.startFn != nil {
		return m.startFn(ctx, accountID, ephemeralPassword)
	}
	return nil
}

func (m *mockBoosterService) Stop(ctx context.Context, accountID uuid.UUID) {
	if m.stopFn != nil {
		m.stopFn(ctx, accountID)
	}
}

func (m *mockBoosterService) UpdateConfig(ctx context.Context, accountID uuid.UUID, config domain.AccountConfig) error {
	if m.updateConfigFn != nil {
		return m.updateConfigFn(ctx, accountID, config)
	}
	return nil
}

func (m *mockBoosterService) SubmitCode(accountID uuid.UUID, code string) error {
	if m.submitCodeFn != nil {
		return m.submitCodeFn(accountID, code)
	}
	return nil
}

func (m *mockBoosterService) Status(accountID uuid.UUID) domain.Status {
	if m.statusFn != nil {
		return m.statusFn(accountID)
	}
	return domain.StatusDisconnected
}

func (m *mockBoosterService) AllStatuses() map[uuid.UUID]domain.Status {
	return nil
}

func (m *mockBoosterService) Messages(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	if m.messagesFn != nil {
		return m.messagesFn(ctx, accountID, limit)
	}
	return nil, nil
}

func (m *mockBoosterService) DeleteConversation(ctx context.Context, accountID uuid.UUID, counterpartID string) error {
	if m.deleteConversationFn != nil {
		return m.deleteConversationFn(ctx, accountID, counterpartID)
	}
	return nil
}

func (m *mockBoosterService) CompleteQRLogin(ctx context.Context, result qr.Result) (*domain.Account, error) {
	if m.completeQRLoginFn != nil {
		return m.completeQRLoginFn(ctx, result)
	}
	return nil, errors.New("not implemented")
}

type mockQRService struct {
	startFn func(ctx context.Context) (qr.Started, error)
	pollFn  func(ctx context.Context, id uuid.UUID) (qr.Result, error)
}

func (m *mockQRService) Start(ctx context.Context) (qr.Started, error) {
	if m.startFn != nil {
		return m.startFn(ctx)
	}
	return qr.Started{}, errors.New("not implemented")
}

func (m *mockQRService) Poll(ctx context.Context, id uuid.UUID) (qr.Result, error) {
	if m.pollFn != nil {
		return m.pollFn(ctx, id)
	}
	return qr.Result{}, qr.ErrHandshakeNotFound
}

func newTestServer(t *testing.T, app boosterService, qrFlow qrService) *Server {
	t.Helper()

	hub := stream.NewHub()
	t.Cleanup(hub.Stop)

	cfg := &config.Config{AppEnv: "test", Port: "0"}
	return NewServer(cfg, app, qrFlow, hub, nil)
}
