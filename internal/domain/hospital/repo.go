package hospital

import (
	"context"

	"github.com/google/uuid"
)

type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type HospitalRepository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Hospital, error)
	Update(ctx context.Context, h *Hospital) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Hospital, int, error)
	Summary(ctx context.Context, id uuid.UUID) (*Summary, error)
}

type FloorRepository interface {
	Create(ctx context.Context, f *Floor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Floor, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Floor, error)
}

type WardRepository interface {
	GetOrCreateCategory(ctx context.Context, name string) (*Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	Create(ctx context.Context, w *Ward) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ward, error)
	// GetForUpdate reads the ward and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Ward, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Ward, error)
	BedCounts(ctx context.Context, wardID uuid.UUID) (*BedCounts, error)
}

type BedRepository interface {
	Create(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	ListByWard(ctx context.Context, wardID uuid.UUID, status string) ([]*Bed, error)
	Update(ctx context.Context, b *Bed) error
}
