package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/message"
	"relaychat/internal/domain/outbox"
	"relaychat/internal/domain/receipt"
)

// Repositories accept an optional transactional Querier as their first
// argument; nil falls back to the repository's own pool.

type MessageRepository interface {
	// Create inserts the message and fills in the store-assigned
	// SequenceNumber.
	Create(ctx context.Context, q Querier, m *message.Message) error
	GetByID(ctx context.Context, q Querier, id uuid.UUID) (message.Message, error)
	// Update writes content/lifecycle fields guarded by the version token.
	// Returns ErrStorageConflict when the row moved under the caller.
	Update(ctx context.Context, q Querier, m *message.Message) error

	// ListHistory returns a page of scope messages ordered by creation time
	// descending, with the total count for the scope.
	ListHistory(ctx context.Context, q Querier, scope message.Recipient, viewerID uuid.UUID, page, pageSize int) ([]message.Message, int64, error)
	// ListAfterSequence returns up to limit scope messages with
	// sequence_number > afterSeq, ordered ascending.
	ListAfterSequence(ctx context.Context, q Querier, scope message.Recipient, viewerID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error)
	// ListUnread returns scope messages not authored by readerID, created at
	// or before until, that have no receipt from readerID yet.
	ListUnread(ctx context.Context, q Querier, scope message.Recipient, readerID uuid.UUID, until time.Time) ([]message.Message, error)
	CountUnread(ctx context.Context, q Querier, scope message.Recipient, readerID uuid.UUID) (int64, error)
	GetByClientMessageID(ctx context.Context, q Querier, senderID uuid.UUID, clientMsgID string) (message.Message, error)
}

type ReadReceiptRepository interface {
	// Insert creates the receipt unless one already exists for the
	// (message, reader) pair. Returns true when a row was created.
	Insert(ctx context.Context, q Querier, r *receipt.ReadReceipt) (bool, error)
	Exists(ctx context.Context, q Querier, messageID, readerID uuid.UUID) (bool, error)
	// CountByMessageIDs returns the distinct-reader count per message id.
	CountByMessageIDs(ctx context.Context, q Querier, messageIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type OutboxRepository interface {
	Append(ctx context.Context, q Querier, ev *outbox.OutboxEvent) error
	// GetPending returns records awaiting dispatch: PENDING ones plus
	// DISPATCHING claims whose dispatched_at predates staleBefore, so a
	// dispatcher that died between claim and completion cannot orphan a
	// record.
	GetPending(ctx context.Context, limit int, staleBefore time.Time) ([]outbox.OutboxEvent, error)
	// MarkDispatching claims the record and stamps dispatched_at, starting
	// the reclaim lease.
	MarkDispatching(ctx context.Context, id uuid.UUID) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	// RecordFailure returns the record to PENDING with retry_count+1 and the
	// failure detail recorded.
	RecordFailure(ctx context.Context, id uuid.UUID, errorMsg string) error
	// MarkFailed parks the record terminally once retries are exhausted.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error
}
