package appointment

import (
	"context"

	"github.com/google/uuid"
)

type OPDRepository interface {
	HospitalExists(ctx context.Context, hospitalID uuid.UUID) (bool, error)
	Create(ctx context.Context, o *OPD) error
	GetByID(ctx context.Context, id uuid.UUID) (*OPD, error)
}

type SlotRepository interface {
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// GetForUpdate locks the slot row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	SetOccupancy(ctx context.Context, id uuid.UUID, occupancy int) error
	Available(ctx context.Context, q SlotQuery) ([]*AvailableSlot, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error
	DeleteBySlotAndUser(ctx context.Context, slotID, userID uuid.UUID) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	HasActiveForSlot(ctx context.Context, patientID, slotID uuid.UUID) (bool, error)
	// Search filters by patient_id, hospital_id, doctor_id, status, type and
	// date (YYYY-MM-DD). upcoming=true keeps future pending or confirmed
	// appointments, soonest first.
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
}
