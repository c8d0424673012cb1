package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaychat/internal/access"
	"relaychat/internal/config"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/outbox"
	"relaychat/internal/domain/receipt"
	"relaychat/internal/events"
	"relaychat/internal/repository"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

// storageRetryLimit bounds transparent retries of optimistic single-row
// updates before ErrStorageConflict surfaces to the caller.
const storageRetryLimit = 3

// MessageService orchestrates the send / edit / recall / mark-as-read use
// cases. Domain events are appended to the outbox store in the same
// transaction as the state change; nothing is published directly.
type MessageService struct {
	tx       repository.TxRunner
	messages repository.MessageRepository
	receipts repository.ReadReceiptRepository
	outbox   repository.OutboxRepository
	access   access.Checker
	cfg      config.MessagingConfig
	log      *logger.Logger
	clock    func() time.Time
}

func NewMessageService(
	tx repository.TxRunner,
	messages repository.MessageRepository,
	receipts repository.ReadReceiptRepository,
	outboxRepo repository.OutboxRepository,
	accessChecker access.Checker,
	cfg config.MessagingConfig,
	log *logger.Logger,
) *MessageService {
	if log == nil {
		log = logger.Nop()
	}
	return &MessageService{
		tx:       tx,
		messages: messages,
		receipts: receipts,
		outbox:   outboxRepo,
		access:   accessChecker,
		cfg:      cfg,
		log:      log,
		clock:    time.Now,
	}
}

type SendMessageInput struct {
	SenderID         uuid.UUID
	Recipient        message.Recipient
	Content          string
	Type             string
	ClientMessageID  string
	ReplyToMessageID uuid.NullUUID
}

type SendMessageResult struct {
	MessageID      uuid.UUID
	SequenceNumber int64
}

func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (SendMessageResult, error) {
	if err := s.validateContent(in.Content); err != nil {
		return SendMessageResult{}, err
	}
	if err := in.Recipient.Validate(); err != nil {
		return SendMessageResult{}, err
	}

	if in.Recipient.IsGroup() {
		if err := s.access.RequireGroupMember(ctx, in.SenderID, in.Recipient.ID); err != nil {
			return SendMessageResult{}, err
		}
	} else {
		if err := s.access.CanMessageUser(ctx, in.SenderID, in.Recipient.ID); err != nil {
			return SendMessageResult{}, err
		}
	}

	m, err := message.New(in.SenderID, in.Recipient, in.Type, in.Content)
	if err != nil {
		return SendMessageResult{}, err
	}
	if in.ClientMessageID != "" {
		m.ClientMessageID.String = in.ClientMessageID
		m.ClientMessageID.Valid = true
	}
	m.ReplyToMessageID = in.ReplyToMessageID

	err = s.tx.WithinTx(ctx, func(q repository.Querier) error {
		if in.ReplyToMessageID.Valid {
			if _, err := s.messages.GetByID(ctx, q, in.ReplyToMessageID.UUID); err != nil {
				if errors.Is(err, relay_errors.ErrNotFound) {
					return relay_errors.ErrInvalidInput
				}
				return err
			}
		}
		if err := s.messages.Create(ctx, q, m); err != nil {
			return err
		}
		if err := m.RecordSent(); err != nil {
			return err
		}
		return s.flushEvents(ctx, q, m)
	})
	if err != nil {
		return SendMessageResult{}, err
	}

	s.log.InfoCtx(ctx, "message sent",
		zap.String("message_id", m.ID.String()),
		zap.Int64("sequence_number", m.SequenceNumber))
	return SendMessageResult{MessageID: m.ID, SequenceNumber: m.SequenceNumber}, nil
}

// Edit replaces content under the sender-only edit window. The lifecycle
// check and the write both run against the same loaded snapshot; a
// concurrent writer is detected by the version token and retried.
func (s *MessageService) Edit(ctx context.Context, messageID, actorID uuid.UUID, content string) error {
	if err := s.validateContent(content); err != nil {
		return err
	}

	for attempt := 0; attempt < storageRetryLimit; attempt++ {
		m, err := s.messages.GetByID(ctx, nil, messageID)
		if err != nil {
			return err
		}
		if err := m.Edit(actorID, content, s.clock(), s.cfg.EditWindow); err != nil {
			return err
		}
		err = s.tx.WithinTx(ctx, func(q repository.Querier) error {
			if err := s.messages.Update(ctx, q, &m); err != nil {
				return err
			}
			return s.flushEvents(ctx, q, &m)
		})
		if errors.Is(err, relay_errors.ErrStorageConflict) {
			continue
		}
		return err
	}
	return relay_errors.ErrStorageConflict
}

// Recall tombstones a message within the recall window. Recalling a message
// that is already recalled reports success without a second event.
func (s *MessageService) Recall(ctx context.Context, messageID, actorID uuid.UUID) error {
	for attempt := 0; attempt < storageRetryLimit; attempt++ {
		m, err := s.messages.GetByID(ctx, nil, messageID)
		if err != nil {
			return err
		}
		if err := m.Recall(actorID, s.clock(), s.cfg.RecallWindow); err != nil {
			if errors.Is(err, relay_errors.ErrAlreadyRecalled) {
				return nil
			}
			return err
		}
		err = s.tx.WithinTx(ctx, func(q repository.Querier) error {
			if err := s.messages.Update(ctx, q, &m); err != nil {
				return err
			}
			return s.flushEvents(ctx, q, &m)
		})
		if errors.Is(err, relay_errors.ErrStorageConflict) {
			continue
		}
		return err
	}
	return relay_errors.ErrStorageConflict
}

type MarkAsReadInput struct {
	ReaderID      uuid.UUID
	PeerID        uuid.NullUUID
	GroupID       uuid.NullUUID
	UpToMessageID uuid.NullUUID
	UpToTime      *time.Time
}

type MarkAsReadResult struct {
	NewReceipts int
}

// MarkAsRead acknowledges every unread message in the scope up to the
// cursor. The operation is idempotent: acknowledging already-read messages
// creates nothing and still succeeds.
func (s *MessageService) MarkAsRead(ctx context.Context, in MarkAsReadInput) (MarkAsReadResult, error) {
	scope, err := resolveScope(in.PeerID, in.GroupID)
	if err != nil {
		return MarkAsReadResult{}, err
	}
	if in.UpToMessageID.Valid && in.UpToTime != nil {
		return MarkAsReadResult{}, relay_errors.ErrInvalidInput
	}
	if scope.IsGroup() {
		if err := s.access.RequireGroupMember(ctx, in.ReaderID, scope.ID); err != nil {
			return MarkAsReadResult{}, err
		}
	}

	until := s.clock()
	if in.UpToMessageID.Valid {
		cursor, err := s.messages.GetByID(ctx, nil, in.UpToMessageID.UUID)
		if err != nil {
			return MarkAsReadResult{}, err
		}
		until = cursor.CreatedAt
	} else if in.UpToTime != nil {
		until = *in.UpToTime
	}

	now := s.clock()
	var created int
	err = s.tx.WithinTx(ctx, func(q repository.Querier) error {
		candidates, err := s.messages.ListUnread(ctx, q, scope, in.ReaderID, until)
		if err != nil {
			return err
		}
		for i := range candidates {
			c := &candidates[i]
			if c.SenderID == uuid.Nil {
				// Should not occur; skip rather than fail the batch.
				s.log.WarnCtx(ctx, "unread message without sender skipped",
					zap.String("message_id", c.ID.String()))
				continue
			}
			ok, err := s.receipts.Insert(ctx, q, receipt.New(c.ID, in.ReaderID, now))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			ev, err := outbox.New(events.EventTypeMessageRead, events.MessageReadEvent{
				MessageID: c.ID,
				SenderID:  c.SenderID,
				ReaderID:  in.ReaderID,
				ReadAt:    now,
			})
			if err != nil {
				return err
			}
			if err := s.outbox.Append(ctx, q, &ev); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return MarkAsReadResult{}, err
	}
	return MarkAsReadResult{NewReceipts: created}, nil
}

func (s *MessageService) GetByClientMessageID(ctx context.Context, senderID uuid.UUID, clientMsgID string) (message.Message, error) {
	if clientMsgID == "" {
		return message.Message{}, relay_errors.ErrInvalidInput
	}
	return s.messages.GetByClientMessageID(ctx, nil, senderID, clientMsgID)
}

func (s *MessageService) validateContent(content string) error {
	if content == "" {
		return relay_errors.ErrInvalidInput
	}
	if s.cfg.MaxContentBytes > 0 && len(content) > s.cfg.MaxContentBytes {
		return relay_errors.ErrInvalidInput
	}
	return nil
}

func (s *MessageService) flushEvents(ctx context.Context, q repository.Querier, m *message.Message) error {
	for _, ev := range m.PendingEvents() {
		ev := ev
		if err := s.outbox.Append(ctx, q, &ev); err != nil {
			return err
		}
	}
	m.ClearEvents()
	return nil
}

func resolveScope(peerID, groupID uuid.NullUUID) (message.Recipient, error) {
	if peerID.Valid == groupID.Valid {
		return message.Recipient{}, relay_errors.ErrInvalidInput
	}
	if peerID.Valid {
		return message.UserRecipient(peerID.UUID), nil
	}
	return message.GroupRecipient(groupID.UUID), nil
}
