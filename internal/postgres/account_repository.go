package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valnssh/vaporBooster/internal/domain"
)

const accountColumns = `id, account_name, credential_iv, credential_ciphertext, credential_auth_tag,
	shared_secret, games, custom_title, persona_state, auto_reply_message,
	status, boost_started_at, owner_id, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	var iv, ciphertext, authTag *string
	var status string

	err := row.Scan(
		&acc.ID, &acc.AccountName, &iv, &ciphertext, &authTag,
		&acc.SharedSecret, &acc.Games, &acc.CustomTitle, &acc.PersonaState, &acc.AutoReplyMessage,
		&status, &acc.BoostStartedAt, &acc.OwnerID, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.Status = domain.Status(status)
	if iv != nil && ciphertext != nil && authTag != nil {
		acc.Credential = &domain.SealedCredential{IV: *iv, Ciphertext: *ciphertext, AuthTag: *authTag}
	}
	return &acc, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return acc, nil
}

func (r *AccountRepo) GetByName(ctx context.Context, accountName string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_name = $1`, accountName)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by name: %w", err)
	}
	return acc, nil
}

func (r *AccountRepo) Create(ctx context.Context, params domain.NewAccountParams) (*domain.Account, error) {
	var iv, ciphertext, authTag *string
	if params.Credential != nil {
		iv, ciphertext, authTag = &params.Credential.IV, &params.Credential.Ciphertext, &params.Credential.AuthTag
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (account_name, shared_secret, credential_iv, credential_ciphertext, credential_auth_tag, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+accountColumns,
		params.AccountName, params.SharedSecret, iv, ciphertext, authTag, params.OwnerID,
	)
	acc, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepo) Delete(ctx context.Context, accountID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepo) UpdateStatus(ctx context.Context, accountID uuid.UUID, status domain.Status, boostStartedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET status = $2, boost_started_at = $3, updated_at = now()
		WHERE id = $1`,
		accountID, string(status), boostStartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepo) UpdateCredential(ctx context.Context, accountID uuid.UUID, credential domain.SealedCredential) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET credential_iv = $2, credential_ciphertext = $3, credential_auth_tag = $4, updated_at = now()
		WHERE id = $1`,
		accountID, credential.IV, credential.Ciphertext, credential.AuthTag,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepo) ClearCredential(ctx context.Context, accountID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET credential_iv = NULL, credential_ciphertext = NULL, credential_auth_tag = NULL, updated_at = now()
		WHERE id = $1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepo) UpdateConfig(ctx context.Context, accountID uuid.UUID, config domain.AccountConfig) error {
	games := config.Games
	if games == nil {
		games = []int32{}
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET games = $2, custom_title = $3, persona_state = $4, auto_reply_message = $5, updated_at = now()
		WHERE id = $1`,
		accountID, games, config.CustomTitle, config.PersonaState, config.AutoReplyMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

var _ domain.AccountRepository = (*AccountRepo)(nil)
