package events

import (
	"time"

	"github.com/google/uuid"
)

// MessageSentEvent is raised once per successful send, in the same
// transaction as the message row.
type MessageSentEvent struct {
	MessageID       uuid.UUID `json:"message_id"`
	SequenceNumber  int64     `json:"sequence_number"`
	SenderID        uuid.UUID `json:"sender_id"`
	RecipientID     uuid.UUID `json:"recipient_id"`
	RecipientType   string    `json:"recipient_type"`
	MessageType     string    `json:"message_type"`
	Content         string    `json:"content"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	ReplyToID       string    `json:"reply_to_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type MessageEditedEvent struct {
	MessageID     uuid.UUID `json:"message_id"`
	SenderID      uuid.UUID `json:"sender_id"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	RecipientType string    `json:"recipient_type"`
	Content       string    `json:"content"`
	EditedAt      time.Time `json:"edited_at"`
}

// MessageRecalledEvent carries sender, recipient and actor ids so downstream
// consumers can tombstone already-delivered copies.
type MessageRecalledEvent struct {
	MessageID     uuid.UUID `json:"message_id"`
	SenderID      uuid.UUID `json:"sender_id"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	RecipientType string    `json:"recipient_type"`
	ActorID       uuid.UUID `json:"actor_id"`
	RecalledAt    time.Time `json:"recalled_at"`
}

// MessageReadEvent carries the sender id so the sender's client can update
// per-message delivery UI.
type MessageReadEvent struct {
	MessageID uuid.UUID `json:"message_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	ReaderID  uuid.UUID `json:"reader_id"`
	ReadAt    time.Time `json:"read_at"`
}
