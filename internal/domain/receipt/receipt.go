package receipt

import (
	"time"

	"github.com/google/uuid"
)

// ReadReceipt records that one reader has seen one message. At most one
// receipt exists per (message, reader) pair; it is never updated or deleted.
type ReadReceipt struct {
	ID        uuid.UUID
	MessageID uuid.UUID
	ReaderID  uuid.UUID
	ReadAt    time.Time
}

func New(messageID, readerID uuid.UUID, readAt time.Time) *ReadReceipt {
	return &ReadReceipt{
		ID:        uuid.New(),
		MessageID: messageID,
		ReaderID:  readerID,
		ReadAt:    readAt,
	}
}

func (ReadReceipt) TableName() string {
	return "read_receipts"
}
