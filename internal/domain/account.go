package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an account's session. The same
// enumeration is used for the live in-memory state and the persisted
// column; the persisted value may lag by one status-change write.
type Status string

const (
	StatusIdle           Status = "IDLE"
	StatusDisconnected   Status = "DISCONNECTED"
	StatusConnecting     Status = "CONNECTING"
	StatusOnline         Status = "ONLINE"
	StatusBoosting       Status = "BOOSTING"
	StatusError          Status = "ERROR"
	StatusLoginRequired  Status = "LOGIN_REQUIRED"
	StatusWaitingForCode Status = "WAITING_FOR_CODE"
)

// PersonaInvisible is the default presence mode for new accounts.
const PersonaInvisible = 7

// MaxGames is the cap on the activity set; a custom title occupies one
// slot, lowering the cap for numeric app IDs to MaxGames-1.
const MaxGames = 32

// SealedCredential is an encrypted refresh-credential bundle as stored at
// rest. All fields are hex-encoded.
type SealedCredential struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
	AuthTag    string `json:"auth_tag"`
}

// Account is one boosting identity. The refresh credential is only ever
// stored sealed; the plaintext exists transiently inside the orchestrator.
type Account struct {
	ID          uuid.UUID
	AccountName string
	Credential  *SealedCredential
	// SharedSecret derives time-based guard codes locally. Empty means
	// interactive code entry is required when challenged.
	SharedSecret     string
	Games            []int32
	CustomTitle      string
	PersonaState     int
	AutoReplyMessage string
	Status           Status
	BoostStartedAt   *time.Time
	OwnerID          *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AccountConfig is the mutable slice of an account's configuration, applied
// both durably and to the live session.
type AccountConfig struct {
	Games            []int32
	CustomTitle      string
	PersonaState     int
	AutoReplyMessage string
}

// Validate rejects activity sets exceeding the slot budget before they are
// persisted. A custom title occupies the first slot.
func (c AccountConfig) Validate() error {
	limit := MaxGames
	if c.CustomTitle != "" {
		limit--
	}
	if len(c.Games) > limit {
		return ErrTooManyGames
	}
	return nil
}

// NewAccountParams carries the fields supplied when an account is created.
type NewAccountParams struct {
	AccountName  string
	SharedSecret string
	Credential   *SealedCredential
	OwnerID      *uuid.UUID
}

type AccountRepository interface {
	List(ctx context.Context) ([]*Account, error)
	GetByID(ctx context.Context, accountID uuid.UUID) (*Account, error)
	GetByName(ctx context.Context, accountName string) (*Account, error)
	Create(ctx context.Context, params NewAccountParams) (*Account, error)
	Delete(ctx context.Context, accountID uuid.UUID) error

	// UpdateStatus writes the persisted status and the boost-uptime marker
	// in one statement so the two never diverge.
	UpdateStatus(ctx context.Context, accountID uuid.UUID, status Status, boostStartedAt *time.Time) error
	UpdateCredential(ctx context.Context, accountID uuid.UUID, credential SealedCredential) error
	ClearCredential(ctx context.Context, accountID uuid.UUID) error
	UpdateConfig(ctx context.Context, accountID uuid.UUID, config AccountConfig) error
}
