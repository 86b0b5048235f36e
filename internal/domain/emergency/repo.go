package emergency

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Emergency) error
	GetByID(ctx context.Context, id uuid.UUID) (*Emergency, error)
	Update(ctx context.Context, e *Emergency) error
	// Search filters by type and status (forward_status).
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Emergency, int, error)
	HospitalExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type AmbulanceRepository interface {
	Create(ctx context.Context, a *Ambulance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ambulance, error)
	UpdateStatus(ctx context.Context, a *Ambulance) error
	// Available lists vacant ambulances, filtered by hospital_id and type.
	Available(ctx context.Context, params map[string]string) ([]*Ambulance, error)
}
