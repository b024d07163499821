package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// ChatMessage is one direct message relayed through an account's session.
// Rows are append-only; the only permitted write after insert is deletion
// of a whole (account, counterpart) conversation.
type ChatMessage struct {
	ID            int64
	AccountID     uuid.UUID
	CounterpartID string
	SenderName    string
	Content       string
	Direction     Direction
	Timestamp     time.Time
}

type MessageRepository interface {
	Append(ctx context.Context, msg ChatMessage) error
	// ListRecent returns up to limit messages for the account,
	// oldest first.
	ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]ChatMessage, error)
	DeleteConversation(ctx context.Context, accountID uuid.UUID, counterpartID string) error
}
