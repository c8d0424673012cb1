package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/access"
	"relaychat/internal/config"
	"relaychat/internal/domain/message"
	"relaychat/internal/repository"
	relay_errors "relaychat/pkg/errors"
)

// MessageView is the read-side shape of a message. Recalled messages never
// expose their original content.
type MessageView struct {
	ID               uuid.UUID  `json:"id"`
	SequenceNumber   int64      `json:"sequence_number"`
	SenderID         uuid.UUID  `json:"sender_id"`
	RecipientID      uuid.UUID  `json:"recipient_id"`
	RecipientType    string     `json:"recipient_type"`
	Type             string     `json:"type"`
	Content          string     `json:"content"`
	IsRecalled       bool       `json:"is_recalled"`
	RecalledAt       *time.Time `json:"recalled_at,omitempty"`
	LastModifiedAt   *time.Time `json:"last_modified_at,omitempty"`
	ReplyToMessageID *uuid.UUID `json:"reply_to_message_id,omitempty"`
	ClientMessageID  string     `json:"client_message_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ReadCount        int64      `json:"read_count,omitempty"`
}

func newMessageView(m message.Message, readCount int64) MessageView {
	v := MessageView{
		ID:             m.ID,
		SequenceNumber: m.SequenceNumber,
		SenderID:       m.SenderID,
		RecipientID:    m.Recipient.ID,
		RecipientType:  string(m.Recipient.Type),
		Type:           m.Type,
		Content:        m.Content,
		IsRecalled:     m.IsRecalled,
		CreatedAt:      m.CreatedAt,
		ReadCount:      readCount,
	}
	if m.IsRecalled {
		v.Content = ""
	}
	if m.RecalledAt.Valid {
		t := m.RecalledAt.Time
		v.RecalledAt = &t
	}
	if m.LastModifiedAt.Valid {
		t := m.LastModifiedAt.Time
		v.LastModifiedAt = &t
	}
	if m.ReplyToMessageID.Valid {
		id := m.ReplyToMessageID.UUID
		v.ReplyToMessageID = &id
	}
	if m.ClientMessageID.Valid {
		v.ClientMessageID = m.ClientMessageID.String
	}
	return v
}

// HistoryService serves the catch-up and paging read paths directly from the
// stores, consistent with committed state regardless of dispatch progress.
type HistoryService struct {
	messages repository.MessageRepository
	receipts repository.ReadReceiptRepository
	access   access.Checker
	cfg      config.MessagingConfig
}

func NewHistoryService(
	messages repository.MessageRepository,
	receipts repository.ReadReceiptRepository,
	accessChecker access.Checker,
	cfg config.MessagingConfig,
) *HistoryService {
	return &HistoryService{
		messages: messages,
		receipts: receipts,
		access:   accessChecker,
		cfg:      cfg,
	}
}

// History returns one page of scope messages ordered by creation time
// descending, with the total count.
func (s *HistoryService) History(ctx context.Context, viewerID uuid.UUID, scope message.Recipient, page, pageSize int) ([]MessageView, int64, error) {
	if err := scope.Validate(); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		return nil, 0, relay_errors.ErrInvalidInput
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > s.cfg.HistoryPageMax {
		pageSize = s.cfg.HistoryPageMax
	}
	if err := s.authorize(ctx, viewerID, scope); err != nil {
		return nil, 0, err
	}

	messages, total, err := s.messages.ListHistory(ctx, nil, scope, viewerID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.buildViews(ctx, scope, messages)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// CatchUp returns up to limit scope messages with sequence number strictly
// greater than afterSeq, ascending. A client that stores the highest
// sequence it has seen can resynchronize with no gap and no duplicate.
func (s *HistoryService) CatchUp(ctx context.Context, viewerID uuid.UUID, scope message.Recipient, afterSeq int64, limit int) ([]MessageView, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if afterSeq < 0 {
		return nil, relay_errors.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > s.cfg.CatchUpLimitMax {
		limit = s.cfg.CatchUpLimitMax
	}
	if err := s.authorize(ctx, viewerID, scope); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListAfterSequence(ctx, nil, scope, viewerID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	return s.buildViews(ctx, scope, messages)
}

// UnreadCount reports how many scope messages the reader has not yet
// acknowledged.
func (s *HistoryService) UnreadCount(ctx context.Context, readerID uuid.UUID, scope message.Recipient) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	if err := s.authorize(ctx, readerID, scope); err != nil {
		return 0, err
	}
	return s.messages.CountUnread(ctx, nil, scope, readerID)
}

func (s *HistoryService) authorize(ctx context.Context, viewerID uuid.UUID, scope message.Recipient) error {
	if scope.IsGroup() {
		return s.access.RequireGroupMember(ctx, viewerID, scope.ID)
	}
	// Peer scope queries are structurally limited to the viewer's own 1:1
	// conversation; no extra membership check exists for it.
	return nil
}

func (s *HistoryService) buildViews(ctx context.Context, scope message.Recipient, messages []message.Message) ([]MessageView, error) {
	views := make([]MessageView, 0, len(messages))
	if !scope.IsGroup() {
		for _, m := range messages {
			views = append(views, newMessageView(m, 0))
		}
		return views, nil
	}

	ids := make([]uuid.UUID, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	counts, err := s.receipts.CountByMessageIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		views = append(views, newMessageView(m, counts[m.ID]))
	}
	return views, nil
}
