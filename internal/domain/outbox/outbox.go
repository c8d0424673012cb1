package outbox

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusDispatching Status = "DISPATCHING"
	StatusProcessed   Status = "PROCESSED"
	StatusFailed      Status = "FAILED"
)

// OutboxEvent stores one integration event awaiting delivery. It is inserted
// in the same transaction as the domain-state change that raised it and is
// mutated only by the dispatcher afterwards.
type OutboxEvent struct {
	ID           uuid.UUID
	EventType    string
	Payload      []byte
	OccurredAt   time.Time
	DispatchedAt *time.Time
	ProcessedAt  *time.Time
	Error        sql.NullString
	RetryCount   int
	Status       Status
}

// New builds a pending event with a serialized payload.
func New(eventType string, payload any) (OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Payload:    data,
		OccurredAt: time.Now().UTC(),
		Status:     StatusPending,
	}, nil
}

// Pending reports whether the event is still eligible for dispatch.
func (e OutboxEvent) Pending() bool {
	return e.ProcessedAt == nil && e.Status == StatusPending
}
