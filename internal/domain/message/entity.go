package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/outbox"
	"relaychat/internal/events"
	relay_errors "relaychat/pkg/errors"
)

// Message types
const (
	TypeText          = "TEXT"
	TypeImage         = "IMAGE"
	TypeFile          = "FILE"
	TypeEncryptedText = "ENCRYPTED_TEXT"
	TypeSystem        = "SYSTEM"
)

func ValidType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeEncryptedText, TypeSystem:
		return true
	}
	return false
}

// Message represents the messages table. SequenceNumber is assigned by the
// store at creation from a global sequence and is never reused. Version is
// the optimistic-concurrency token, incremented on every write.
type Message struct {
	ID               uuid.UUID
	SequenceNumber   int64
	Recipient        Recipient
	SenderID         uuid.UUID
	Type             string
	Content          string
	IsRecalled       bool
	RecalledAt       sql.NullTime
	LastModifiedAt   sql.NullTime
	ReplyToMessageID uuid.NullUUID
	ClientMessageID  sql.NullString
	CreatedAt        time.Time
	Version          int64

	pending []outbox.OutboxEvent
}

// New builds an unsent message. The sequence number is filled in by the
// repository on insert.
func New(sender uuid.UUID, recipient Recipient, msgType, content string) (*Message, error) {
	if sender == uuid.Nil {
		return nil, relay_errors.ErrInvalidInput
	}
	if err := recipient.Validate(); err != nil {
		return nil, err
	}
	if !ValidType(msgType) {
		return nil, relay_errors.ErrInvalidInput
	}
	return &Message{
		ID:        uuid.New(),
		Recipient: recipient,
		SenderID:  sender,
		Type:      msgType,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Version:   1,
	}, nil
}

// RecordSent appends the MessageSent event. Called after the repository has
// assigned the sequence number, inside the same transaction.
func (m *Message) RecordSent() error {
	payload := events.MessageSentEvent{
		MessageID:      m.ID,
		SequenceNumber: m.SequenceNumber,
		SenderID:       m.SenderID,
		RecipientID:    m.Recipient.ID,
		RecipientType:  string(m.Recipient.Type),
		MessageType:    m.Type,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
	if m.ClientMessageID.Valid {
		payload.ClientMessageID = m.ClientMessageID.String
	}
	if m.ReplyToMessageID.Valid {
		payload.ReplyToID = m.ReplyToMessageID.UUID.String()
	}
	return m.record(events.EventTypeMessageSent, payload)
}

// Edit mutates content under the sender-only, time-windowed rule. The window
// check is inclusive: an edit at exactly createdAt+window is still allowed.
func (m *Message) Edit(actor uuid.UUID, content string, now time.Time, window time.Duration) error {
	if actor != m.SenderID {
		return relay_errors.ErrForbidden
	}
	if m.IsRecalled {
		return relay_errors.ErrMessageRecalled
	}
	if m.Type == TypeSystem {
		return relay_errors.ErrSystemMessageImmutable
	}
	if now.After(m.CreatedAt.Add(window)) {
		return relay_errors.ErrEditWindowExpired
	}
	m.Content = content
	m.LastModifiedAt = sql.NullTime{Time: now, Valid: true}
	return m.record(events.EventTypeMessageEdited, events.MessageEditedEvent{
		MessageID:     m.ID,
		SenderID:      m.SenderID,
		RecipientID:   m.Recipient.ID,
		RecipientType: string(m.Recipient.Type),
		Content:       content,
		EditedAt:      now,
	})
}

// Recall tombstones the message. Recalling an already-recalled message
// returns ErrAlreadyRecalled, which callers treat as idempotent success.
func (m *Message) Recall(actor uuid.UUID, now time.Time, window time.Duration) error {
	if actor != m.SenderID {
		return relay_errors.ErrForbidden
	}
	if m.Type == TypeSystem {
		return relay_errors.ErrSystemMessageImmutable
	}
	if m.IsRecalled {
		return relay_errors.ErrAlreadyRecalled
	}
	if now.After(m.CreatedAt.Add(window)) {
		return relay_errors.ErrRecallWindowExpired
	}
	m.IsRecalled = true
	m.RecalledAt = sql.NullTime{Time: now, Valid: true}
	return m.record(events.EventTypeMessageRecalled, events.MessageRecalledEvent{
		MessageID:     m.ID,
		SenderID:      m.SenderID,
		RecipientID:   m.Recipient.ID,
		RecipientType: string(m.Recipient.Type),
		ActorID:       actor,
		RecalledAt:    now,
	})
}

func (m *Message) record(eventType string, payload any) error {
	ev, err := outbox.New(eventType, payload)
	if err != nil {
		return err
	}
	m.pending = append(m.pending, ev)
	return nil
}

// PendingEvents returns events recorded since the last drain. The
// persistence layer flushes them into the outbox store at commit time.
func (m *Message) PendingEvents() []outbox.OutboxEvent {
	return m.pending
}

func (m *Message) ClearEvents() {
	m.pending = nil
}

func (Message) TableName() string {
	return "messages"
}
