package repository

import (
	"context"

	"github.com/google/uuid"

	"relaychat/internal/domain/receipt"
)

type readReceiptRepository struct {
	db Querier
}

func NewReadReceiptRepository(db Querier) ReadReceiptRepository {
	return &readReceiptRepository{db: db}
}

func (r *readReceiptRepository) querier(q Querier) Querier {
	if q != nil {
		return q
	}
	return r.db
}

// Insert is race-safe: concurrent acknowledgements of the same pair resolve
// through the unique constraint rather than a check-then-insert window.
func (r *readReceiptRepository) Insert(ctx context.Context, q Querier, rec *receipt.ReadReceipt) (bool, error) {
	tag, err := r.querier(q).Exec(ctx, `
        INSERT INTO read_receipts (id, message_id, reader_id, read_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (message_id, reader_id) DO NOTHING
    `,
		rec.ID,
		rec.MessageID,
		rec.ReaderID,
		rec.ReadAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *readReceiptRepository) Exists(ctx context.Context, q Querier, messageID, readerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.querier(q).QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM read_receipts WHERE message_id = $1 AND reader_id = $2
        )
    `, messageID, readerID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *readReceiptRepository) CountByMessageIDs(ctx context.Context, q Querier, messageIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(messageIDs))
	if len(messageIDs) == 0 {
		return counts, nil
	}
	rows, err := r.querier(q).Query(ctx, `
        SELECT message_id, COUNT(*)
        FROM read_receipts
        WHERE message_id = ANY($1)
        GROUP BY message_id
    `, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
