package bloodbank

import (
	"context"

	"github.com/google/uuid"
)

type BankRepository interface {
	Create(ctx context.Context, b *BloodBank) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodBank, error)
	// Search filters by location (ILIKE) and blood_type (available types).
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*BloodBank, int, error)
	UpdateStock(ctx context.Context, id uuid.UUID, levels map[string]int, available []string) error
}

type InventoryRepository interface {
	// Upsert adds units to the (bank, type, lot) row, creating it when absent.
	Upsert(ctx context.Context, inv *Inventory) error
	ListByBank(ctx context.Context, bankID uuid.UUID) ([]*Inventory, error)
	// ListForUpdate locks a bank's lots of one type, soonest expiry first.
	ListForUpdate(ctx context.Context, bankID uuid.UUID, bloodType string) ([]*Inventory, error)
	SetUnits(ctx context.Context, id uuid.UUID, units int) error
}

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Update(ctx context.Context, r *Request) error
	// Search filters by user_id and status.
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Request, int, error)
}
