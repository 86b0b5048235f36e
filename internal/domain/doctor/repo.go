package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error)
	LinkHospital(ctx context.Context, doctorID, hospitalID uuid.UUID) error
	Hospitals(ctx context.Context, doctorID uuid.UUID) ([]HospitalRef, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Schedule, error)
}
