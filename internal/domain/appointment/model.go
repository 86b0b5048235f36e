package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

const TypeOPD = "opd"

var statuses = []string{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow}

func validStatus(s string) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// OPD is an outpatient department session run by a hospital.
type OPD struct {
	ID          uuid.UUID `db:"id" json:"id"`
	HospitalID  uuid.UUID `db:"hospital_id" json:"hospital_id"`
	Department  string    `db:"department" json:"department"`
	Shift       *string   `db:"shift" json:"shift,omitempty"`
	FromTime    *string   `db:"from_time" json:"from_time,omitempty"`
	ToTime      *string   `db:"to_time" json:"to_time,omitempty"`
	FromDay     *string   `db:"from_day" json:"from_day,omitempty"`
	ToDay       *string   `db:"to_day" json:"to_day,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Slot struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	OPDID      uuid.UUID  `db:"opd_id" json:"opd_id"`
	SlotCode   string     `db:"slot_code" json:"slot_code"`
	DoctorID   *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	SlotStart  time.Time  `db:"slot_start" json:"slot_start"`
	SlotEnd    time.Time  `db:"slot_end" json:"slot_end"`
	Capacity   int        `db:"capacity" json:"capacity"`
	Occupancy  int        `db:"occupancy" json:"occupancy"`
	HospitalID uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	Department string     `db:"department" json:"department"`
}

// AvailableSlot is a bookable slot with its remaining capacity.
type AvailableSlot struct {
	Slot
	AvailableCapacity int     `json:"available_capacity"`
	DoctorName        *string `json:"doctor_name,omitempty"`
}

type Reservation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SlotID    uuid.UUID `db:"slot_id" json:"slot_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Appointment struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Type          string     `db:"type" json:"type"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	HospitalID    uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	DoctorID      *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	SlotID        *uuid.UUID `db:"slot_id" json:"slot_id,omitempty"`
	BookedBy      uuid.UUID  `db:"booked_by" json:"booked_by"`
	Status        string     `db:"status" json:"status"`
	ScheduledTime time.Time  `db:"scheduled_time" json:"scheduled_time"`
	Reason        *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	HospitalName  string     `db:"hospital_name" json:"hospital_name,omitempty"`
}

type CreateOPDRequest struct {
	HospitalID  string  `json:"hospital_id"`
	Department  string  `json:"department"`
	Shift       *string `json:"shift"`
	FromTime    *string `json:"from_time"`
	ToTime      *string `json:"to_time"`
	FromDay     *string `json:"from_day"`
	ToDay       *string `json:"to_day"`
	Description *string `json:"description"`
}

type CreateSlotRequest struct {
	DoctorID  string    `json:"doctor_id"`
	SlotStart time.Time `json:"slot_start"`
	SlotEnd   time.Time `json:"slot_end"`
	Capacity  *int      `json:"capacity"`
}

type BookRequest struct {
	HospitalID string  `json:"hospital_id"`
	SlotID     string  `json:"slot_id"`
	PatientID  string  `json:"patient_id"`
	Reason     *string `json:"reason"`
}

type UpdateRequest struct {
	Status *string `json:"status"`
	Reason *string `json:"reason"`
}

// SlotQuery filters available slots.
type SlotQuery struct {
	HospitalID uuid.UUID
	DoctorID   *uuid.UUID
	Department string
	Date       *time.Time
	After      time.Time
	Limit      int
}
