package steam

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/valnssh/vaporBooster/internal/domain"
	"github.com/valnssh/vaporBooster/internal/qr"
)

const gatewayWriteTimeout = 5 * time.Second

type gatewayFrame struct {
	Op            string  `json:"op,omitempty"`
	Event         string  `json:"event,omitempty"`
	AccountName   string  `json:"account_name,omitempty"`
	Password      string  `json:"password,omitempty"`
	RefreshToken  string  `json:"refresh_token,omitempty"`
	GuardCode     string  `json:"guard_code,omitempty"`
	Code          string  `json:"code,omitempty"`
	State         int     `json:"state,omitempty"`
	Title         string  `json:"title,omitempty"`
	AppIDs        []int32 `json:"app_ids,omitempty"`
	CounterpartID string  `json:"counterpart_id,omitempty"`
	SenderName    string  `json:"sender_name,omitempty"`
	Content       string  `json:"content,omitempty"`
	Kind          string  `json:"kind,omitempty"`
	Message       string  `json:"message,omitempty"`
	Domain        string  `json:"domain,omitempty"`
	Token         string  `json:"token,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	ChallengeURL  string  `json:"challenge_url,omitempty"`
}

// gatewayClient speaks JSON frames over a WebSocket to the protocol gateway,
// which owns the actual wire handshake. One connection per account.
type gatewayClient struct {
	conn   *websocket.Conn
	send   chan gatewayFrame
	events chan domain.NetEvent

	closeOnce sync.Once
	closed    chan struct{}
}

// GatewayDialer returns a dialer that opens one gateway connection per
// account session.
func GatewayDialer(baseURL string) domain.NetDialer {
	return func(ctx context.Context, accountName string) (domain.NetClient, error) {
		endpoint, err := url.JoinPath(baseURL, "v1", "session")
		if err != nil {
			return nil, fmt.Errorf("gateway url: %w", err)
		}
		endpoint += "?account=" + url.QueryEscape(accountName)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("dial gateway: %w", err)
		}

		c := &gatewayClient{
			conn:   conn,
			send:   make(chan gatewayFrame, 16),
			events: make(chan domain.NetEvent, 16),
			closed: make(chan struct{}),
		}
		go c.writeLoop()
		go c.readLoop()
		return c, nil
	}
}

func (c *gatewayClient) writeLoop() {
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(gatewayWriteTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				slog.Debug("Gateway write failed", "error", err)
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *gatewayClient) readLoop() {
	defer close(c.events)
	for {
		var frame gatewayFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.closed:
			default:
				c.events <- domain.EventError{Err: fmt.Errorf("%w: gateway read: %v", domain.ErrTransport, err)}
			}
			return
		}

		ev := translateFrame(frame)
		if ev == nil {
			slog.Debug("Ignoring unknown gateway event", "event", frame.Event)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.closed:
			return
		}
	}
}

func translateFrame(frame gatewayFrame) domain.NetEvent {
	switch frame.Event {
	case "logged_on":
		return domain.EventLoggedOn{}
	case "disconnected":
		return domain.EventDisconnected{Reason: frame.Reason}
	case "error":
		base := domain.ErrTransport
		if frame.Kind == "auth" {
			base = domain.ErrAuthFailed
		}
		return domain.EventError{Err: fmt.Errorf("%w: %s", base, frame.Message)}
	case "guard":
		return domain.EventGuardChallenge{Domain: frame.Domain}
	case "refresh_token":
		return domain.EventRefreshToken{Token: frame.Token}
	case "message":
		return domain.EventMessage{
			CounterpartID: frame.CounterpartID,
			SenderName:    frame.SenderName,
			Content:       frame.Content,
		}
	default:
		return nil
	}
}

func (c *gatewayClient) enqueue(frame gatewayFrame) error {
	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return fmt.Errorf("%w: connection closed", domain.ErrTransport)
	}
}

func (c *gatewayClient) LogOn(opts domain.LogOnOptions) error {
	return c.enqueue(gatewayFrame{
		Op:           "logon",
		AccountName:  opts.AccountName,
		Password:     opts.Password,
		RefreshToken: opts.RefreshToken,
		GuardCode:    opts.GuardCode,
	})
}

func (c *gatewayClient) SubmitGuardCode(code string) error {
	return c.enqueue(gatewayFrame{Op: "guard_code", Code: code})
}

func (c *gatewayClient) SetPersona(state int) error {
	return c.enqueue(gatewayFrame{Op: "persona", State: state})
}

func (c *gatewayClient) PlayGames(customTitle string, appIDs []int32) error {
	return c.enqueue(gatewayFrame{Op: "play", Title: customTitle, AppIDs: appIDs})
}

func (c *gatewayClient) SendMessage(counterpartID, content string) error {
	return c.enqueue(gatewayFrame{Op: "message", CounterpartID: counterpartID, Content: content})
}

func (c *gatewayClient) LogOff() error {
	return c.enqueue(gatewayFrame{Op: "logoff"})
}

func (c *gatewayClient) Events() <-chan domain.NetEvent {
	return c.events
}

func (c *gatewayClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
	return nil
}

// QRBeginner opens challenge handshakes against the gateway. The first frame
// carries the challenge URL; a second frame settles the handshake.
func QRBeginner(baseURL string) qr.BeginFunc {
	return func(ctx context.Context) (string, <-chan qr.Completion, error) {
		endpoint, err := url.JoinPath(baseURL, "v1", "qr")
		if err != nil {
			return "", nil, fmt.Errorf("gateway url: %w", err)
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			return "", nil, fmt.Errorf("dial gateway: %w", err)
		}

		var first gatewayFrame
		if err := conn.ReadJSON(&first); err != nil {
			_ = conn.Close()
			return "", nil, fmt.Errorf("read challenge: %w", err)
		}
		if first.ChallengeURL == "" {
			_ = conn.Close()
			return "", nil, fmt.Errorf("gateway sent no challenge url")
		}

		done := make(chan qr.Completion, 1)
		go func() {
			defer conn.Close()
			defer close(done)

			var frame gatewayFrame
			if err := conn.ReadJSON(&frame); err != nil {
				done <- qr.Completion{Err: fmt.Errorf("handshake read: %w", err)}
				return
			}
			switch frame.Event {
			case "authenticated":
				done <- qr.Completion{AccountName: frame.AccountName, RefreshToken: frame.RefreshToken}
			default:
				msg := frame.Message
				if msg == "" {
					msg = "handshake rejected"
				}
				done <- qr.Completion{Err: fmt.Errorf("%s", msg)}
			}
		}()

		return first.ChallengeURL, done, nil
	}
}

var _ domain.NetClient = (*gatewayClient)(nil)
