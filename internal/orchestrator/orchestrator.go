// Package orchestrator owns the live session table and bridges session
// events into persistence. It is the only place that sees credential
// plaintext, and only transiently between unsealing and logon.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/valnssh/vaporBooster/internal/crypto"
	"github.com/valnssh/vaporBooster/internal/domain"
	"github.com/valnssh/vaporBooster/internal/logging"
	"github.com/valnssh/vaporBooster/internal/metrics"
	"github.com/valnssh/vaporBooster/internal/qr"
	"github.com/valnssh/vaporBooster/internal/steam"
)

// ErrNoActiveSession is returned for operations that need a live session
// when none exists for the account.
var ErrNoActiveSession = errors.New("no active session for account")

const persistTimeout = 5 * time.Second

// StatusUpdate is fanned out to subscribers on every session transition.
type StatusUpdate struct {
	AccountID      uuid.UUID
	AccountName    string
	Status         domain.Status
	BoostStartedAt *time.Time
}

// Listener receives status updates. Listeners must not block.
type Listener func(update StatusUpdate)

// Orchestrator maps account IDs to live sessions and applies the retry and
// credential policy around them. Sessions themselves never retry.
type Orchestrator struct {
	accounts       domain.AccountRepository
	messages       domain.MessageRepository
	vault          crypto.Vault
	dial           domain.NetDialer
	clock          clockwork.Clock
	reconnectDelay time.Duration

	group singleflight.Group

	mu        sync.Mutex
	sessions  map[uuid.UUID]*steam.Session
	statuses  map[uuid.UUID]domain.Status
	timers    map[uuid.UUID]clockwork.Timer
	listeners []Listener
}

func New(
	accounts domain.AccountRepository,
	messages domain.MessageRepository,
	vault crypto.Vault,
	dial domain.NetDialer,
	clock clockwork.Clock,
	reconnectDelay time.Duration,
) *Orchestrator {
	return &Orchestrator{
		accounts:       accounts,
		messages:       messages,
		vault:          vault,
		dial:           dial,
		clock:          clock,
		reconnectDelay: reconnectDelay,
		sessions:       make(map[uuid.UUID]*steam.Session),
		statuses:       make(map[uuid.UUID]domain.Status),
		timers:         make(map[uuid.UUID]clockwork.Timer),
	}
}

// Subscribe registers a status listener. Subscribe is meant for wiring at
// startup, before sessions exist.
func (o *Orchestrator) Subscribe(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// ListAccounts returns all persisted accounts.
func (o *Orchestrator) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return o.accounts.List(ctx)
}

// GetAccount returns one persisted account.
func (o *Orchestrator) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return o.accounts.GetByID(ctx, accountID)
}

// CreateAccount persists a new account. Passwords are never stored; callers
// that have one pass it to Start instead.
func (o *Orchestrator) CreateAccount(ctx context.Context, params domain.NewAccountParams) (*domain.Account, error) {
	return o.accounts.Create(ctx, params)
}

// DeleteAccount stops any live session and removes the account with its
// chat history.
func (o *Orchestrator) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	o.Stop(ctx, accountID)

	o.mu.Lock()
	delete(o.sessions, accountID)
	if prev, ok := o.statuses[accountID]; ok {
		metrics.SessionsByStatus.WithLabelValues(string(prev)).Dec()
		delete(o.statuses, accountID)
	}
	o.mu.Unlock()

	return o.accounts.Delete(ctx, accountID)
}

// Start activates the account's session. Concurrent calls for one account
// collapse into a single attempt. A stored refresh credential wins over an
// ephemeral password; with neither, the account lands in LOGIN_REQUIRED
// without touching the network and ErrNoCredentials is returned.
func (o *Orchestrator) Start(ctx context.Context, accountID uuid.UUID, ephemeralPassword string) error {
	_, err, _ := o.group.Do(accountID.String(), func() (any, error) {
		return nil, o.start(ctx, accountID, ephemeralPassword)
	})
	return err
}

func (o *Orchestrator) start(ctx context.Context, accountID uuid.UUID, ephemeralPassword string) error {
	o.cancelReconnect(accountID)

	switch o.Status(accountID) {
	case domain.StatusConnecting, domain.StatusOnline, domain.StatusBoosting, domain.StatusWaitingForCode:
		return nil
	}

	acc, err := o.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	session := o.ensureSession(acc.ID, acc.AccountName)
	session.SetPersona(acc.PersonaState)
	session.SetGames(acc.Games, acc.CustomTitle)
	session.SetAutoReply(acc.AutoReplyMessage)

	refreshToken := ""
	if acc.Credential != nil {
		plaintext, err := o.vault.Unseal(*acc.Credential)
		if err != nil {
			slog.Warn("Stored credential failed to unseal, treating as missing",
				"account_id", acc.ID, "error", err)
			metrics.CredentialsInvalidatedTotal.Inc()
		} else {
			refreshToken = plaintext
		}
	}

	if refreshToken == "" && ephemeralPassword == "" {
		o.transition(acc.ID, acc.AccountName, domain.StatusLoginRequired, nil)
		return domain.ErrNoCredentials
	}

	return session.Login(ctx, ephemeralPassword, refreshToken, acc.SharedSecret)
}

// Stop disconnects the account's session and cancels any pending reconnect.
// Without a live session it does nothing.
func (o *Orchestrator) Stop(ctx context.Context, accountID uuid.UUID) {
	o.cancelReconnect(accountID)

	o.mu.Lock()
	session := o.sessions[accountID]
	o.mu.Unlock()

	if session != nil {
		session.LogOff()
	}
}

// StopAll disconnects every live session, for shutdown.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	sessions := make([]*steam.Session, 0, len(o.sessions))
	for id, session := range o.sessions {
		sessions = append(sessions, session)
		if timer, ok := o.timers[id]; ok {
			timer.Stop()
			delete(o.timers, id)
		}
	}
	o.mu.Unlock()

	for _, session := range sessions {
		session.LogOff()
	}
}

// UpdateConfig validates and persists the configuration, then applies it to
// the live session unless the account is stopped or faulted.
func (o *Orchestrator) UpdateConfig(ctx context.Context, accountID uuid.UUID, config domain.AccountConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if err := o.accounts.UpdateConfig(ctx, accountID, config); err != nil {
		return err
	}

	o.mu.Lock()
	session := o.sessions[accountID]
	status := o.statuses[accountID]
	o.mu.Unlock()

	if session == nil {
		return nil
	}
	switch status {
	case domain.StatusConnecting, domain.StatusOnline, domain.StatusBoosting, domain.StatusWaitingForCode:
		session.SetAutoReply(config.AutoReplyMessage)
		session.SetPersona(config.PersonaState)
		session.SetGames(config.Games, config.CustomTitle)
	}
	return nil
}

// SubmitCode forwards a guard code to the live session.
func (o *Orchestrator) SubmitCode(accountID uuid.UUID, code string) error {
	o.mu.Lock()
	session := o.sessions[accountID]
	o.mu.Unlock()

	if session == nil {
		return ErrNoActiveSession
	}
	session.ProvideCode(code)
	return nil
}

// Status returns the live status, DISCONNECTED when the account has no
// session this process lifetime.
func (o *Orchestrator) Status(accountID uuid.UUID) domain.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if status, ok := o.statuses[accountID]; ok {
		return status
	}
	return domain.StatusDisconnected
}

// AllStatuses snapshots the live status table.
func (o *Orchestrator) AllStatuses() map[uuid.UUID]domain.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := make(map[uuid.UUID]domain.Status, len(o.statuses))
	for id, status := range o.statuses {
		snapshot[id] = status
	}
	return snapshot
}

// RestoreAll re-activates every account that was ONLINE or BOOSTING when
// the previous process stopped.
func (o *Orchestrator) RestoreAll(ctx context.Context) error {
	accounts, err := o.accounts.List(ctx)
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		if acc.Status != domain.StatusOnline && acc.Status != domain.StatusBoosting {
			continue
		}
		slog.Info("Restoring session", "account_id", acc.ID, "account_name", acc.AccountName)
		if err := o.Start(ctx, acc.ID, ""); err != nil {
			slog.Error("Failed to restore session", "account_id", acc.ID, "error", err)
		}
	}
	return nil
}

// Messages lists the account's recent chat history, oldest first.
func (o *Orchestrator) Messages(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	return o.messages.ListRecent(ctx, accountID, limit)
}

// DeleteConversation purges stored messages with one counterpart.
func (o *Orchestrator) DeleteConversation(ctx context.Context, accountID uuid.UUID, counterpartID string) error {
	return o.messages.DeleteConversation(ctx, accountID, counterpartID)
}

// CompleteQRLogin seals the handshake's refresh credential, creates the
// account when it is new, and activates it.
func (o *Orchestrator) CompleteQRLogin(ctx context.Context, result qr.Result) (*domain.Account, error) {
	sealed, err := o.vault.Seal(result.RefreshToken)
	if err != nil {
		return nil, err
	}

	acc, err := o.accounts.GetByName(ctx, result.AccountName)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		acc, err = o.accounts.Create(ctx, domain.NewAccountParams{
			AccountName: result.AccountName,
			Credential:  &sealed,
		})
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := o.accounts.UpdateCredential(ctx, acc.ID, sealed); err != nil {
			return nil, err
		}
	}

	if err := o.Start(ctx, acc.ID, ""); err != nil {
		slog.Error("Failed to start session after QR login", "account_id", acc.ID, "error", err)
	}
	return acc, nil
}

func (o *Orchestrator) ensureSession(accountID uuid.UUID, accountName string) *steam.Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	if session, ok := o.sessions[accountID]; ok {
		return session
	}

	session := steam.NewSession(accountName, o.dial, steam.Handlers{
		OnStatus: func(status domain.Status, cause error) {
			o.transition(accountID, accountName, status, cause)
		},
		OnRefreshToken: func(token string) {
			o.storeRefreshToken(accountID, token)
		},
		OnMessage: func(msg steam.Message) {
			o.storeMessage(accountID, msg)
		},
	})
	o.sessions[accountID] = session
	return session
}

// transition records a status change, persists it, fans it out and applies
// the ERROR policy. Persistence failures are logged, never propagated;
// live state stays authoritative.
func (o *Orchestrator) transition(accountID uuid.UUID, accountName string, status domain.Status, cause error) {
	var boostStartedAt *time.Time
	if status == domain.StatusBoosting {
		now := o.clock.Now()
		boostStartedAt = &now
	}

	o.mu.Lock()
	prev, seen := o.statuses[accountID]
	o.statuses[accountID] = status
	listeners := append([]Listener(nil), o.listeners...)
	o.mu.Unlock()

	if seen {
		metrics.SessionsByStatus.WithLabelValues(string(prev)).Dec()
	}
	metrics.SessionsByStatus.WithLabelValues(string(status)).Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(string(status)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.accounts.UpdateStatus(ctx, accountID, status, boostStartedAt); err != nil {
		slog.Error("Failed to persist status", "account_id", accountID, "status", status, "error", err)
		metrics.PersistenceFailuresTotal.WithLabelValues("status").Inc()
	}

	update := StatusUpdate{
		AccountID:      accountID,
		AccountName:    accountName,
		Status:         status,
		BoostStartedAt: boostStartedAt,
	}
	for _, l := range listeners {
		l(update)
	}

	if status == domain.StatusError {
		o.handleError(ctx, accountID, cause)
	}
}

func (o *Orchestrator) handleError(ctx context.Context, accountID uuid.UUID, cause error) {
	if errors.Is(cause, domain.ErrAuthFailed) {
		slog.Warn("Authentication rejected, invalidating stored credential", "account_id", accountID)
		metrics.CredentialsInvalidatedTotal.Inc()
		if err := o.accounts.ClearCredential(ctx, accountID); err != nil {
			slog.Error("Failed to clear credential", "account_id", accountID, "error", err)
			metrics.PersistenceFailuresTotal.WithLabelValues("credential").Inc()
		}
		return
	}

	slog.Info("Scheduling reconnect", "account_id", accountID, "delay", o.reconnectDelay)
	metrics.ReconnectsScheduledTotal.Inc()

	o.mu.Lock()
	if timer, ok := o.timers[accountID]; ok {
		timer.Stop()
	}
	o.timers[accountID] = o.clock.AfterFunc(o.reconnectDelay, func() {
		o.mu.Lock()
		delete(o.timers, accountID)
		o.mu.Unlock()

		retryCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.Start(retryCtx, accountID, ""); err != nil {
			slog.Error("Reconnect attempt failed", "account_id", accountID, "error", err)
		}
	})
	o.mu.Unlock()
}

func (o *Orchestrator) cancelReconnect(accountID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if timer, ok := o.timers[accountID]; ok {
		timer.Stop()
		delete(o.timers, accountID)
	}
}

func (o *Orchestrator) storeRefreshToken(accountID uuid.UUID, token string) {
	logger := logging.WithAccount(accountID.String())

	sealed, err := o.vault.Seal(token)
	if err != nil {
		logger.Error("Failed to seal refresh credential", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.accounts.UpdateCredential(ctx, accountID, sealed); err != nil {
		logger.Error("Failed to store refresh credential", "error", err)
		metrics.PersistenceFailuresTotal.WithLabelValues("credential").Inc()
	}
}

func (o *Orchestrator) storeMessage(accountID uuid.UUID, msg steam.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	err := o.messages.Append(ctx, domain.ChatMessage{
		AccountID:     accountID,
		CounterpartID: msg.CounterpartID,
		SenderName:    msg.SenderName,
		Content:       msg.Content,
		Direction:     msg.Direction,
		Timestamp:     o.clock.Now(),
	})
	if err != nil {
		logging.WithError(err).Error("Failed to store chat message", "account_id", accountID)
		metrics.PersistenceFailuresTotal.WithLabelValues("message").Inc()
		return
	}
	metrics.MessagesStoredTotal.WithLabelValues(string(msg.Direction)).Inc()
}
