// Package events publishes status transitions to Redis Pub/Sub for external
// consumers. Publishing is best-effort; the booster never depends on it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const statusChannel = "vapor:status"

// StatusEvent is the wire payload published on status transitions.
type StatusEvent struct {
	AccountID      uuid.UUID  `json:"account_id"`
	AccountName    string     `json:"account_name,omitempty"`
	Status         string     `json:"status"`
	BoostStartedAt *time.Time `json:"boost_started_at,omitempty"`
}

// Publisher publishes status events behind a circuit breaker so a degraded
// Redis cannot slow down session handling. A nil Publisher is a no-op.
type Publisher struct {
	rdb     *goredis.Client
	breaker *gobreaker.CircuitBreaker
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(ctx context.Context, redisURL string) (*Publisher, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-status-publisher",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*10 >= counts.Requests*6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name,
				"from", from.String(), "to", to.String())
		},
	})

	return &Publisher{rdb: rdb, breaker: breaker}, nil
}

// PublishStatus publishes one transition. Failures are logged, not returned;
// callers never block on Redis health.
func (p *Publisher) PublishStatus(ctx context.Context, event StatusEvent) {
	if p == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal status event", "error", err)
		return
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.rdb.Publish(ctx, statusChannel, data).Err()
	})
	if err != nil {
		slog.Warn("Failed to publish status event", "account_id", event.AccountID, "error", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
