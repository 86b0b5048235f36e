package doctor

import (
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	UserID         *uuid.UUID    `db:"user_id" json:"user_id,omitempty"`
	Name           string        `db:"name" json:"name"`
	Specialisation *string       `db:"specialisation" json:"specialisation,omitempty"`
	Availability   bool          `db:"availability" json:"availability"`
	Mail           string        `db:"mail" json:"mail"`
	Phone          *string       `db:"phone" json:"phone,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
	Hospitals      []HospitalRef `json:"hospitals,omitempty"`
}

// HospitalRef is the short form of a hospital a doctor practises at.
type HospitalRef struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
}

// Schedule is a weekly availability window, optionally pinned to one date.
type Schedule struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	DoctorID     uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	HospitalID   uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	DayOfWeek    int        `db:"day_of_week" json:"day_of_week"`
	StartTime    string     `db:"start_time" json:"start_time"`
	EndTime      string     `db:"end_time" json:"end_time"`
	SpecificDate *time.Time `db:"specific_date" json:"specific_date,omitempty"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type RegisterRequest struct {
	Name           string   `json:"name"`
	Mail           string   `json:"mail"`
	Specialisation *string  `json:"specialisation"`
	Phone          *string  `json:"phone"`
	Availability   *bool    `json:"availability"`
	UserID         string   `json:"user_id"`
	HospitalIDs    []string `json:"hospital_ids"`
}

type UpdateRequest struct {
	Name           *string `json:"name"`
	Mail           *string `json:"mail"`
	Specialisation *string `json:"specialisation"`
	Phone          *string `json:"phone"`
	Availability   *bool   `json:"availability"`
}

type LinkHospitalRequest struct {
	HospitalID string `json:"hospital_id"`
}

type ScheduleRequest struct {
	DoctorID     string  `json:"doctor_id"`
	HospitalID   string  `json:"hospital_id"`
	DayOfWeek    *int    `json:"day_of_week"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	SpecificDate string  `json:"specific_date"`
	Notes        *string `json:"notes"`
}
