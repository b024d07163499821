package domain

import "context"

// LogOnOptions selects the authentication material for a logon attempt.
// Exactly one of Password or RefreshToken drives authentication; GuardCode
// is supplied proactively when it could be derived locally.
type LogOnOptions struct {
	AccountName  string
	Password     string
	RefreshToken string
	GuardCode    string
}

// NetClient is the narrow surface of the external network client library.
// Implementations perform the wire-level handshake and deliver everything
// that happens on the connection through Events. The session layer is the
// sole caller.
type NetClient interface {
	LogOn(opts LogOnOptions) error
	SubmitGuardCode(code string) error
	SetPersona(state int) error
	// PlayGames broadcasts the currently-active set. A non-empty custom
	// title occupies the first slot.
	PlayGames(customTitle string, appIDs []int32) error
	SendMessage(counterpartID, content string) error
	LogOff() error
	Events() <-chan NetEvent
	Close() error
}

// NetDialer opens a fresh client connection for one account.
type NetDialer func(ctx context.Context, accountName string) (NetClient, error)

// NetEvent is a marker for events delivered by a NetClient.
type NetEvent interface{ netEvent() }

// EventLoggedOn fires once the network has accepted the logon.
type EventLoggedOn struct{}

// EventDisconnected fires when the connection drops without a prior error.
type EventDisconnected struct {
	Reason string
}

// EventError fires on an unrecoverable session failure. Err wraps
// ErrAuthFailed for credential rejections and ErrTransport otherwise.
type EventError struct {
	Err error
}

// EventGuardChallenge fires when the network demands a one-time code.
type EventGuardChallenge struct {
	Domain string
}

// EventRefreshToken fires whenever the network issues a new renewable
// credential.
type EventRefreshToken struct {
	Token string
}

// EventMessage fires for every inbound direct message.
type EventMessage struct {
	CounterpartID string
	SenderName    string
	Content       string
}

func (EventLoggedOn) netEvent()       {}
func (EventDisconnected) netEvent()   {}
func (EventError) netEvent()          {}
func (EventGuardChallenge) netEvent() {}
func (EventRefreshToken) netEvent()   {}
func (EventMessage) netEvent()        {}
