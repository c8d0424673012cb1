package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/outbox"
)

type outboxRepository struct {
	db Querier
}

func NewOutboxRepository(db Querier) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Append(ctx context.Context, q Querier, ev *outbox.OutboxEvent) error {
	execDB := q
	if execDB == nil {
		execDB = r.db
	}
	_, err := execDB.Exec(ctx, `
        INSERT INTO outbox_events (id, event_type, payload, status, retry_count, error, occurred_at, processed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `,
		ev.ID,
		ev.EventType,
		ev.Payload,
		ev.Status,
		ev.RetryCount,
		ev.Error,
		ev.OccurredAt,
		ev.ProcessedAt,
	)
	return err
}

// GetPending selects undelivered records: pending ones plus DISPATCHING
// claims older than staleBefore. Without the reclaim clause a dispatcher
// dying between MarkDispatching and completion would strand the record with
// processed_at NULL but a status no poll ever matches.
func (r *outboxRepository) GetPending(ctx context.Context, limit int, staleBefore time.Time) ([]outbox.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, event_type, payload, status, retry_count, error, occurred_at, dispatched_at, processed_at
        FROM outbox_events
        WHERE processed_at IS NULL
          AND (status = $1 OR (status = $2 AND dispatched_at < $3))
        ORDER BY occurred_at ASC
        LIMIT $4
    `, outbox.StatusPending, outbox.StatusDispatching, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.OutboxEvent
	for rows.Next() {
		var ev outbox.OutboxEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.EventType,
			&ev.Payload,
			&ev.Status,
			&ev.RetryCount,
			&ev.Error,
			&ev.OccurredAt,
			&ev.DispatchedAt,
			&ev.ProcessedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepository) MarkDispatching(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, dispatched_at = $2
        WHERE id = $3 AND processed_at IS NULL
    `, outbox.StatusDispatching, time.Now().UTC(), id)
	return err
}

// MarkProcessed is idempotent by record id: a duplicate dispatch attempt
// after a crash mid-batch re-sets the same terminal state.
func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, processed_at = COALESCE(processed_at, $2)
        WHERE id = $3
    `, outbox.StatusProcessed, time.Now().UTC(), id)
	return err
}

func (r *outboxRepository) RecordFailure(ctx context.Context, id uuid.UUID, errorMsg string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, retry_count = retry_count + 1, error = $2
        WHERE id = $3 AND processed_at IS NULL
    `, outbox.StatusPending, errorMsg, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, error = $2
        WHERE id = $3 AND processed_at IS NULL
    `, outbox.StatusFailed, errorMsg, id)
	return err
}
