package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records event dedup keys a consumer has already handled,
// making at-least-once delivery idempotent at the dispatcher boundary.
type ProcessedStore struct {
	db rowQuerier
}

func NewProcessedStore(db rowQuerier) *ProcessedStore {
	if db == nil {
		panic("events: db required")
	}
	return &ProcessedStore{db: db}
}

// AlreadyProcessed checks if the consumer has seen this dedup key.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, consumer, dedupKey string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE consumer = $1 AND dedup_key = $2`
	var exists int
	if err := s.db.QueryRow(ctx, query, consumer, dedupKey).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed records a dedup key, returning false if it was already there.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, consumer, dedupKey string) (bool, error) {
	query := `
		INSERT INTO processed_events (consumer, dedup_key)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, consumer, dedupKey)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
