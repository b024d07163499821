package steam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valnssh/vaporBooster/internal/domain"
)

// Message is a chat message observed by a session, either relayed inbound
// or sent as an auto-reply.
type Message struct {
	CounterpartID string
	SenderName    string
	Content       string
	Direction     domain.Direction
}

// Handlers receives session events. Handlers are invoked on the session's
// event goroutine (or synchronously from the mutating call for immediate
// transitions) and must not call back into the Session.
type Handlers struct {
	// OnStatus fires on every transition. cause is non-nil only for ERROR
	// and wraps domain.ErrAuthFailed or domain.ErrTransport.
	OnStatus       func(status domain.Status, cause error)
	OnRefreshToken func(token string)
	OnMessage      func(msg Message)
}

// Session manages exactly one account's connection lifecycle and translates
// network events into the local status model. It never retries on its own;
// reconnection policy lives in the orchestrator.
type Session struct {
	accountName string
	dial        domain.NetDialer
	handlers    Handlers

	mu           sync.Mutex
	client       domain.NetClient
	status       domain.Status
	loggedOn     bool
	pendingGuard bool
	games        []int32
	customTitle  string
	persona      int
	autoReply    string
	// replied tracks counterparts already auto-replied to. In-memory on
	// purpose: a restart resets it and first contact replies again.
	replied map[string]struct{}
}

func NewSession(accountName string, dial domain.NetDialer, handlers Handlers) *Session {
	return &Session{
		accountName: accountName,
		dial:        dial,
		handlers:    handlers,
		status:      domain.StatusDisconnected,
		persona:     domain.PersonaInvisible,
		replied:     make(map[string]struct{}),
	}
}

// Status returns the live in-memory status.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Login starts a logon attempt. Exactly one of password or refreshToken
// drives authentication; a refresh token wins when both are present. If
// sharedSecret is set, a guard code is derived locally and supplied
// proactively. The CONNECTING transition is emitted synchronously before
// any network I/O.
func (s *Session) Login(ctx context.Context, password, refreshToken, sharedSecret string) error {
	s.mu.Lock()
	s.setStatusLocked(domain.StatusConnecting, nil)
	client := s.client
	s.mu.Unlock()

	if client == nil {
		dialed, err := s.dial(ctx, s.accountName)
		if err != nil {
			err = fmt.Errorf("%w: dial: %v", domain.ErrTransport, err)
			s.mu.Lock()
			s.setStatusLocked(domain.StatusError, err)
			s.mu.Unlock()
			return err
		}
		client = dialed

		s.mu.Lock()
		s.client = client
		s.mu.Unlock()

		go s.consume(client.Events())
	}

	opts := domain.LogOnOptions{}
	if refreshToken != "" {
		opts.RefreshToken = refreshToken
	} else {
		opts.AccountName = s.accountName
		opts.Password = password
	}

	if sharedSecret != "" {
		code, err := GenerateGuardCode(sharedSecret, time.Now())
		if err != nil {
			slog.Warn("Failed to derive guard code, relying on interactive challenge",
				"account_name", s.accountName, "error", err)
		} else {
			opts.GuardCode = code
		}
	}

	if err := client.LogOn(opts); err != nil {
		err = fmt.Errorf("%w: logon: %v", domain.ErrTransport, err)
		s.mu.Lock()
		s.setStatusLocked(domain.StatusError, err)
		s.mu.Unlock()
		return err
	}
	return nil
}

// ProvideCode resolves a pending guard challenge. Without an outstanding
// challenge it logs a warning and does nothing.
func (s *Session) ProvideCode(code string) {
	s.mu.Lock()
	if !s.pendingGuard {
		s.mu.Unlock()
		slog.Warn("Received guard code but no challenge is outstanding", "account_name", s.accountName)
		return
	}
	s.pendingGuard = false
	client := s.client
	s.setStatusLocked(domain.StatusConnecting, nil)
	s.mu.Unlock()

	if err := client.SubmitGuardCode(code); err != nil {
		slog.Error("Failed to submit guard code", "account_name", s.accountName, "error", err)
	}
}

// SetPersona records the presence mode and applies it immediately when
// logged on.
func (s *Session) SetPersona(state int) {
	s.mu.Lock()
	s.persona = state
	client, apply := s.client, s.loggedOn
	s.mu.Unlock()

	if apply {
		if err := client.SetPersona(state); err != nil {
			slog.Warn("Failed to set persona", "account_name", s.accountName, "error", err)
		}
	}
}

// SetGames records the activity set and, when logged on, broadcasts it and
// recomputes ONLINE/BOOSTING.
func (s *Session) SetGames(appIDs []int32, customTitle string) {
	s.mu.Lock()
	s.games = append([]int32(nil), appIDs...)
	s.customTitle = customTitle
	s.mu.Unlock()

	s.applyGames()
}

// SetAutoReply updates the first-contact auto-reply text. Counterparts
// already replied to are not resent.
func (s *Session) SetAutoReply(text string) {
	s.mu.Lock()
	s.autoReply = text
	s.mu.Unlock()
}

// LogOff disconnects and always ends in DISCONNECTED regardless of prior
// state. The session stays addressable; a later Login dials fresh.
func (s *Session) LogOff() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.loggedOn = false
	s.pendingGuard = false
	s.setStatusLocked(domain.StatusDisconnected, nil)
	s.mu.Unlock()

	if client != nil {
		if err := client.LogOff(); err != nil {
			slog.Debug("LogOff send failed", "account_name", s.accountName, "error", err)
		}
		_ = client.Close()
	}
}

// setStatusLocked records the transition and emits it while holding mu, so
// emission order always matches transition order.
func (s *Session) setStatusLocked(status domain.Status, cause error) {
	s.status = status
	if s.handlers.OnStatus != nil {
		s.handlers.OnStatus(status, cause)
	}
}

// consume serializes all network events for this session; handlers run to
// completion without preemption.
func (s *Session) consume(events <-chan domain.NetEvent) {
	for ev := range events {
		switch e := ev.(type) {
		case domain.EventLoggedOn:
			s.handleLoggedOn()
		case domain.EventRefreshToken:
			slog.Info("Received new refresh credential", "account_name", s.accountName)
			if s.handlers.OnRefreshToken != nil {
				s.handlers.OnRefreshToken(e.Token)
			}
		case domain.EventGuardChallenge:
			slog.Info("Waiting for guard code", "account_name", s.accountName, "domain", e.Domain)
			s.mu.Lock()
			s.pendingGuard = true
			s.setStatusLocked(domain.StatusWaitingForCode, domain.ErrChallengeRequired)
			s.mu.Unlock()
		case domain.EventError:
			slog.Error("Session error", "account_name", s.accountName, "error", e.Err)
			s.mu.Lock()
			s.loggedOn = false
			s.pendingGuard = false
			client := s.client
			s.client = nil
			s.setStatusLocked(domain.StatusError, e.Err)
			s.mu.Unlock()
			if client != nil {
				_ = client.Close()
			}
		case domain.EventDisconnected:
			slog.Info("Disconnected", "account_name", s.accountName, "reason", e.Reason)
			s.mu.Lock()
			s.loggedOn = false
			s.pendingGuard = false
			client := s.client
			s.client = nil
			if s.status != domain.StatusError {
				s.setStatusLocked(domain.StatusDisconnected, nil)
			}
			s.mu.Unlock()
			if client != nil {
				_ = client.Close()
			}
		case domain.EventMessage:
			s.handleMessage(e)
		}
	}
}

func (s *Session) handleLoggedOn() {
	slog.Info("Logged on", "account_name", s.accountName)

	s.mu.Lock()
	s.loggedOn = true
	s.pendingGuard = false
	s.setStatusLocked(domain.StatusOnline, nil)
	client, persona := s.client, s.persona
	s.mu.Unlock()

	if client == nil {
		return
	}
	if err := client.SetPersona(persona); err != nil {
		slog.Warn("Failed to set persona", "account_name", s.accountName, "error", err)
	}
	s.applyGames()
}

func (s *Session) applyGames() {
	s.mu.Lock()
	if !s.loggedOn || s.client == nil {
		s.mu.Unlock()
		return
	}
	client := s.client
	games := append([]int32(nil), s.games...)
	title := s.customTitle
	s.mu.Unlock()

	if err := client.PlayGames(title, games); err != nil {
		slog.Warn("Failed to broadcast activity set", "account_name", s.accountName, "error", err)
		return
	}

	s.mu.Lock()
	if len(games) > 0 || title != "" {
		slog.Info("Boosting", "account_name", s.accountName, "games", len(games), "custom_title", title)
		s.setStatusLocked(domain.StatusBoosting, nil)
	} else {
		slog.Info("Stopped boosting", "account_name", s.accountName)
		s.setStatusLocked(domain.StatusOnline, nil)
	}
	s.mu.Unlock()
}

func (s *Session) handleMessage(e domain.EventMessage) {
	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(Message{
			CounterpartID: e.CounterpartID,
			SenderName:    e.SenderName,
			Content:       e.Content,
			Direction:     domain.DirectionIncoming,
		})
	}

	s.mu.Lock()
	reply := s.autoReply
	client := s.client
	_, alreadyReplied := s.replied[e.CounterpartID]
	if reply != "" && !alreadyReplied {
		s.replied[e.CounterpartID] = struct{}{}
	}
	s.mu.Unlock()

	if reply == "" || alreadyReplied || client == nil {
		return
	}

	if err := client.SendMessage(e.CounterpartID, reply); err != nil {
		slog.Warn("Failed to send auto-reply", "account_name", s.accountName,
			"counterpart_id", e.CounterpartID, "error", err)
		return
	}

	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(Message{
			CounterpartID: e.CounterpartID,
			Content:       reply,
			Direction:     domain.DirectionOutgoing,
		})
	}
}
