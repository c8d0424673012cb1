package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"relaychat/internal/domain/message"
	relay_errors "relaychat/pkg/errors"
)

const messageColumns = `id, sequence_number, recipient_id, recipient_type, sender_id, type, content,
	is_recalled, recalled_at, last_modified_at, reply_to_message_id, client_message_id, created_at, version`

type messageRepository struct {
	db Querier
}

func NewMessageRepository(db Querier) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) querier(q Querier) Querier {
	if q != nil {
		return q
	}
	return r.db
}

func (r *messageRepository) Create(ctx context.Context, q Querier, m *message.Message) error {
	err := r.querier(q).QueryRow(ctx, `
        INSERT INTO messages (id, recipient_id, recipient_type, sender_id, type, content,
            is_recalled, recalled_at, last_modified_at, reply_to_message_id, client_message_id, created_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING sequence_number
    `,
		m.ID,
		m.Recipient.ID,
		m.Recipient.Type,
		m.SenderID,
		m.Type,
		m.Content,
		m.IsRecalled,
		m.RecalledAt,
		m.LastModifiedAt,
		m.ReplyToMessageID,
		m.ClientMessageID,
		m.CreatedAt,
		m.Version,
	).Scan(&m.SequenceNumber)
	if err != nil {
		if isUniqueViolation(err) {
			return relay_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (message.Message, error) {
	row := r.querier(q).QueryRow(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE id = $1
    `, id)
	return scanMessage(row)
}

func (r *messageRepository) Update(ctx context.Context, q Querier, m *message.Message) error {
	tag, err := r.querier(q).Exec(ctx, `
        UPDATE messages
        SET content = $2, type = $3, is_recalled = $4, recalled_at = $5,
            last_modified_at = $6, version = version + 1
        WHERE id = $1 AND version = $7
    `,
		m.ID,
		m.Content,
		m.Type,
		m.IsRecalled,
		m.RecalledAt,
		m.LastModifiedAt,
		m.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrStorageConflict
	}
	m.Version++
	return nil
}

// scopeClause returns the WHERE fragment selecting all messages of a
// conversation scope. For a group scope that is every message addressed to
// the group; for a peer scope it is both directions of the 1:1 conversation
// between the viewer and the peer.
func scopeClause(scope message.Recipient, viewerID uuid.UUID) (string, []any) {
	if scope.IsGroup() {
		return `recipient_type = 'group' AND recipient_id = $1`, []any{scope.ID}
	}
	return `recipient_type = 'user' AND (
        (recipient_id = $1 AND sender_id = $2) OR (recipient_id = $2 AND sender_id = $1)
    )`, []any{scope.ID, viewerID}
}

func (r *messageRepository) ListHistory(ctx context.Context, q Querier, scope message.Recipient, viewerID uuid.UUID, page, pageSize int) ([]message.Message, int64, error) {
	clause, args := scopeClause(scope, viewerID)
	db := r.querier(q)

	var total int64
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	n := len(args)
	rows, err := db.Query(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE `+clause+`
        ORDER BY created_at DESC
        OFFSET `+placeholder(n+1)+` LIMIT `+placeholder(n+2),
		append(args, offset, pageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *messageRepository) ListAfterSequence(ctx context.Context, q Querier, scope message.Recipient, viewerID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error) {
	clause, args := scopeClause(scope, viewerID)
	n := len(args)
	rows, err := r.querier(q).Query(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE `+clause+` AND sequence_number > `+placeholder(n+1)+`
        ORDER BY sequence_number ASC
        LIMIT `+placeholder(n+2),
		append(args, afterSeq, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepository) ListUnread(ctx context.Context, q Querier, scope message.Recipient, readerID uuid.UUID, until time.Time) ([]message.Message, error) {
	clause, args := unreadClause(scope, readerID)
	n := len(args)
	rows, err := r.querier(q).Query(ctx, `
        SELECT `+messageColumns+`
        FROM messages m
        WHERE `+clause+`
          AND m.created_at <= `+placeholder(n+1)+`
          AND NOT EXISTS (
            SELECT 1 FROM read_receipts r
            WHERE r.message_id = m.id AND r.reader_id = `+placeholder(n+2)+`
          )
        ORDER BY m.sequence_number ASC
    `, append(args, until, readerID)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepository) CountUnread(ctx context.Context, q Querier, scope message.Recipient, readerID uuid.UUID) (int64, error) {
	clause, args := unreadClause(scope, readerID)
	n := len(args)
	var count int64
	err := r.querier(q).QueryRow(ctx, `
        SELECT COUNT(*)
        FROM messages m
        WHERE `+clause+`
          AND NOT EXISTS (
            SELECT 1 FROM read_receipts r
            WHERE r.message_id = m.id AND r.reader_id = `+placeholder(n+1)+`
          )
    `, append(args, readerID)...).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// unreadClause selects messages addressed to the scope that the reader did
// not author. For a peer scope those are the peer's messages to the reader.
func unreadClause(scope message.Recipient, readerID uuid.UUID) (string, []any) {
	if scope.IsGroup() {
		return `m.recipient_type = 'group' AND m.recipient_id = $1 AND m.sender_id <> $2`,
			[]any{scope.ID, readerID}
	}
	return `m.recipient_type = 'user' AND m.recipient_id = $1 AND m.sender_id = $2`,
		[]any{readerID, scope.ID}
}

func (r *messageRepository) GetByClientMessageID(ctx context.Context, q Querier, senderID uuid.UUID, clientMsgID string) (message.Message, error) {
	row := r.querier(q).QueryRow(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE sender_id = $1 AND client_message_id = $2
    `, senderID, clientMsgID)
	return scanMessage(row)
}

func scanMessage(row pgx.Row) (message.Message, error) {
	var m message.Message
	err := row.Scan(
		&m.ID,
		&m.SequenceNumber,
		&m.Recipient.ID,
		&m.Recipient.Type,
		&m.SenderID,
		&m.Type,
		&m.Content,
		&m.IsRecalled,
		&m.RecalledAt,
		&m.LastModifiedAt,
		&m.ReplyToMessageID,
		&m.ClientMessageID,
		&m.CreatedAt,
		&m.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Message{}, relay_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func scanMessages(rows pgx.Rows) ([]message.Message, error) {
	var messages []message.Message
	for rows.Next() {
		var m message.Message
		if err := rows.Scan(
			&m.ID,
			&m.SequenceNumber,
			&m.Recipient.ID,
			&m.Recipient.Type,
			&m.SenderID,
			&m.Type,
			&m.Content,
			&m.IsRecalled,
			&m.RecalledAt,
			&m.LastModifiedAt,
			&m.ReplyToMessageID,
			&m.ClientMessageID,
			&m.CreatedAt,
			&m.Version,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func placeholder(n int) string {
	return buildPlaceholders(n, 1)
}
