package message

import (
	"github.com/google/uuid"

	relay_errors "relaychat/pkg/errors"
)

// RecipientType discriminates the two addressing kinds.
type RecipientType string

const (
	RecipientUser  RecipientType = "user"
	RecipientGroup RecipientType = "group"
)

// Recipient is a tagged union {User(id), Group(id)}. Exactly one kind is
// populated by construction; there are no independent nullable columns.
type Recipient struct {
	Type RecipientType
	ID   uuid.UUID
}

func UserRecipient(id uuid.UUID) Recipient {
	return Recipient{Type: RecipientUser, ID: id}
}

func GroupRecipient(id uuid.UUID) Recipient {
	return Recipient{Type: RecipientGroup, ID: id}
}

func (r Recipient) Validate() error {
	if r.ID == uuid.Nil {
		return relay_errors.ErrInvalidInput
	}
	if r.Type != RecipientUser && r.Type != RecipientGroup {
		return relay_errors.ErrInvalidInput
	}
	return nil
}

func (r Recipient) IsGroup() bool {
	return r.Type == RecipientGroup
}
