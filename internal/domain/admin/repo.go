package admin

import (
	"context"

	"github.com/google/uuid"
)

type AdminRepository interface {
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	GetByUsername(ctx context.Context, username string) (*Admin, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}

type LogRepository interface {
	Create(ctx context.Context, l *Log) error
	List(ctx context.Context, adminID *uuid.UUID, limit, offset int) ([]*Log, int, error)
}
