// outbox_repository.go implements OutboxRepository, the read/ack side of the
// search outbox drained by the background sync job.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// OutboxEntry is one pending search-index upsert
type OutboxEntry struct {
	ModID      string    `db:"mod_id"`
	EnqueuedAt time.Time `db:"enqueued_at"`
	Attempts   int       `db:"attempts"`
	LastError  *string   `db:"last_error"`
}

// OutboxRepository handles database operations for the search outbox
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ListPending returns up to limit outbox rows, oldest first
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT mod_id, enqueued_at, attempts, last_error
		FROM search_outbox
		ORDER BY enqueued_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox rows: %w", err)
	}
	return entries, nil
}

// CountPending returns the number of rows awaiting indexing
func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM search_outbox`); err != nil {
		return 0, fmt.Errorf("failed to count outbox rows: %w", err)
	}
	return count, nil
}

// Ack removes a successfully indexed row
func (r *OutboxRepository) Ack(ctx context.Context, modID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM search_outbox WHERE mod_id = $1`, modID); err != nil {
		return fmt.Errorf("failed to ack outbox row: %w", err)
	}
	return nil
}

// RecordFailure increments the attempt counter and stores the error so the row
// is retried on the next sweep and operators can see why it keeps failing.
func (r *OutboxRepository) RecordFailure(ctx context.Context, modID, reason string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE search_outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE mod_id = $1
	`, modID, reason); err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return nil
}
