package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valnssh/vaporBooster/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Append(ctx context.Context, msg domain.ChatMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (account_id, counterpart_id, sender_name, content, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.AccountID, msg.CounterpartID, msg.SenderName, msg.Content, string(msg.Direction), msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// ListRecent returns the newest messages for the account, re-sorted oldest
// first for display.
func (r *MessageRepo) ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, counterpart_id, sender_name, content, direction, created_at
		FROM (
			SELECT id, account_id, counterpart_id, sender_name, content, direction, created_at
			FROM chat_messages
			WHERE account_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var direction string
		if err := rows.Scan(&msg.ID, &msg.AccountID, &msg.CounterpartID, &msg.SenderName, &msg.Content, &direction, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.Direction = domain.Direction(direction)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepo) DeleteConversation(ctx context.Context, accountID uuid.UUID, counterpartID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM chat_messages
		WHERE account_id = $1 AND counterpart_id = $2`,
		accountID, counterpartID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

var _ domain.MessageRepository = (*MessageRepo)(nil)
