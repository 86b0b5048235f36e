package notifications

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	// MarkRead reports false when the notification does not belong to userID.
	MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Directory resolves recipients from the users table.
type Directory interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
	// IDsByRoles returns every user id when roles is empty.
	IDsByRoles(ctx context.Context, roles []string) ([]uuid.UUID, error)
}
