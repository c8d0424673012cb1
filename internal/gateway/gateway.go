package gateway

import (
	"context"

	"github.com/google/uuid"
)

// NotificationGateway pushes a named client-side event to one user or to all
// members of a group. Delivery is at-least-once; consumers must tolerate
// duplicate pushes.
type NotificationGateway interface {
	SendToUser(ctx context.Context, userID uuid.UUID, method string, payload []byte) error
	SendToGroup(ctx context.Context, groupID uuid.UUID, method string, payload []byte) error
}
