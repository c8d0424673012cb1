package access

import (
	"context"

	"github.com/google/uuid"

	"relaychat/internal/repository"
	relay_errors "relaychat/pkg/errors"
)

// Checker answers the authorization questions the message core needs from
// the externally-managed social graph. Friend and group membership
// management live outside this subsystem; only these reads cross the
// boundary.
type Checker interface {
	// CanMessageUser reports whether sender may address recipient directly.
	CanMessageUser(ctx context.Context, senderID, recipientID uuid.UUID) error
	// RequireGroupMember fails with ErrForbidden unless userID is a current
	// member of the group.
	RequireGroupMember(ctx context.Context, userID, groupID uuid.UUID) error
}

// Control reads the relationship tables maintained by the social-graph
// service through repository-style contracts.
type Control struct {
	db repository.Querier
}

func NewControl(db repository.Querier) *Control {
	return &Control{db: db}
}

func (a *Control) CanMessageUser(ctx context.Context, senderID, recipientID uuid.UUID) error {
	if a.db == nil {
		return relay_errors.ErrForbidden
	}
	var ok bool
	err := a.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM friendships
            WHERE ((user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))
              AND status = 'ACCEPTED'
        )
    `, senderID, recipientID).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return relay_errors.ErrForbidden
	}
	return nil
}

func (a *Control) RequireGroupMember(ctx context.Context, userID, groupID uuid.UUID) error {
	if a.db == nil {
		return relay_errors.ErrForbidden
	}
	var ok bool
	err := a.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2
        )
    `, groupID, userID).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return relay_errors.ErrForbidden
	}
	return nil
}
