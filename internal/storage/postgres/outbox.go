package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/gearmart/internal/outbox"
)

const (
	enqueueEventSQL = `INSERT INTO outbox_events (id, name, recipient, template, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listPendingEventsSQL = `SELECT id, name, recipient, template, payload, created_at, dispatched_at
		FROM outbox_events WHERE dispatched_at IS NULL
		ORDER BY created_at, id LIMIT $1`

	markDispatchedSQL = `UPDATE outbox_events SET dispatched_at = now() WHERE id = $1`
)

var _ outbox.Queue = (*OutboxRepository)(nil)

// OutboxRepository implements outbox.Queue backed by PostgreSQL.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository returns an OutboxRepository that uses the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Enqueue stores a pending event.
func (r *OutboxRepository) Enqueue(ctx context.Context, e outbox.Event) error {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, enqueueEventSQL,
		e.ID, e.Name, e.Recipient, e.Template, payloadJSON, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueueing event %q: %w", e.ID, err)
	}
	return nil
}

// ListPending returns up to limit undispatched events, oldest first.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]outbox.Event, error) {
	rows, err := r.pool.Query(ctx, listPendingEventsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending events: %w", err)
	}
	return pgx.CollectRows(rows, scanEvent)
}

// MarkDispatched stamps the event as delivered.
func (r *OutboxRepository) MarkDispatched(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, markDispatchedSQL, id)
	if err != nil {
		return fmt.Errorf("marking event %q dispatched: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %q not found", id)
	}
	return nil
}

func scanEvent(row pgx.CollectableRow) (outbox.Event, error) {
	var (
		e           outbox.Event
		payloadJSON []byte
	)
	err := row.Scan(&e.ID, &e.Name, &e.Recipient, &e.Template, &payloadJSON, &e.CreatedAt, &e.DispatchedAt)
	if err != nil {
		return e, err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return e, fmt.Errorf("unmarshaling payload of event %q: %w", e.ID, err)
		}
	}
	return e, nil
}
