package hospital

import (
	"time"

	"github.com/google/uuid"
)

// OPD statuses.
const (
	OPDOpen    = "Open"
	OPDClosed  = "Closed"
	OPDLimited = "Limited"
)

// Bed statuses.
const (
	BedVacant      = "vacant"
	BedOccupied    = "occupied"
	BedReserved    = "reserved"
	BedMaintenance = "maintenance"
)

var bedStatuses = []string{BedVacant, BedOccupied, BedReserved, BedMaintenance}

func validBedStatus(s string) bool {
	for _, v := range bedStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func validOPDStatus(s string) bool {
	return s == OPDOpen || s == OPDClosed || s == OPDLimited
}

// Account is the login a hospital's staff share.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Name         string    `db:"name" json:"name"`
	Type         string    `db:"type" json:"type"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Location     string    `db:"location" json:"location"`
	IsMultiLevel bool      `db:"is_multi_level" json:"is_multi_level"`
	RegID        string    `db:"reg_id" json:"reg_id"`
	Availability bool      `db:"availability" json:"availability"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Hospital struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AccountID       uuid.UUID  `db:"account_id" json:"account_id"`
	Name            string     `db:"name" json:"name"`
	Location        string     `db:"location" json:"location"`
	ContactNum      *string    `db:"contact_num" json:"contact_num,omitempty"`
	Email           *string    `db:"email" json:"email,omitempty"`
	HospitalType    string     `db:"hospital_type" json:"hospital_type"`
	BedAvailability int        `db:"bed_availability" json:"bed_availability"`
	OxygenUnits     int        `db:"oxygen_units" json:"oxygen_units"`
	OPDStatus       string     `db:"opd_status" json:"opd_status"`
	LastUpdatedBy   *uuid.UUID `db:"last_updated_by" json:"last_updated_by,omitempty"`
	IsMultiLevel    bool       `db:"is_multi_level" json:"is_multi_level"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Summary counts the physical layout of a hospital.
type Summary struct {
	Floors       int `json:"floor_count"`
	Wards        int `json:"ward_count"`
	Beds         int `json:"bed_count"`
	VacantBeds   int `json:"vacant_beds"`
	OccupiedBeds int `json:"occupied_beds"`
}

type HospitalDetail struct {
	*Hospital
	Summary
}

type Floor struct {
	ID          uuid.UUID `db:"id" json:"id"`
	HospitalID  uuid.UUID `db:"hospital_id" json:"hospital_id"`
	FloorNumber string    `db:"floor_number" json:"floor_number"`
	FloorName   *string   `db:"floor_name" json:"floor_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Category struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
}

type Ward struct {
	ID           uuid.UUID `db:"id" json:"id"`
	FloorID      uuid.UUID `db:"floor_id" json:"floor_id"`
	CategoryID   uuid.UUID `db:"category_id" json:"category_id"`
	WardNumber   string    `db:"ward_number" json:"ward_number"`
	Capacity     int       `db:"capacity" json:"capacity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	HospitalID   uuid.UUID `db:"hospital_id" json:"hospital_id"`
	CategoryName string    `db:"category_name" json:"category_name"`
}

// BedCounts is the occupancy of one ward.
type BedCounts struct {
	Total     int `json:"total_beds"`
	Occupied  int `json:"occupied_beds"`
	Available int `json:"available_beds"`
}

type WardDetail struct {
	*Ward
	BedCounts
}

type Bed struct {
	ID         uuid.UUID `db:"id" json:"id"`
	WardID     uuid.UUID `db:"ward_id" json:"ward_id"`
	BedNumber  string    `db:"bed_number" json:"bed_number"`
	Status     string    `db:"status" json:"status"`
	BedType    string    `db:"bed_type" json:"bed_type"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
	HospitalID uuid.UUID `db:"hospital_id" json:"hospital_id"`
}

type RegisterRequest struct {
	Name         string  `json:"name"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Location     string  `json:"location"`
	Type         string  `json:"type"`
	IsMultiLevel bool    `json:"is_multi_level"`
	ContactNum   *string `json:"contact_num"`
}

// Registration is returned by RegisterHospital.
type Registration struct {
	Account  *Account  `json:"account"`
	Hospital *Hospital `json:"hospital"`
	RegID    string    `json:"reg_id"`
}

type UpdateRequest struct {
	Name            *string `json:"name"`
	Location        *string `json:"location"`
	ContactNum      *string `json:"contact_num"`
	Email           *string `json:"email"`
	HospitalType    *string `json:"hospital_type"`
	BedAvailability *int    `json:"bed_availability"`
	OxygenUnits     *int    `json:"oxygen_units"`
	OPDStatus       *string `json:"opd_status"`
}

type CreateFloorRequest struct {
	FloorNumber string  `json:"floor_number"`
	FloorName   *string `json:"floor_name"`
}

type CreateWardRequest struct {
	FloorID      string `json:"floor_id"`
	WardNumber   string `json:"ward_number"`
	Capacity     int    `json:"capacity"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
}

type CreateBedRequest struct {
	BedNumber string `json:"bed_number"`
	BedType   string `json:"bed_type"`
	Status    string `json:"status"`
}

type UpdateBedRequest struct {
	Status  string  `json:"status"`
	BedType *string `json:"bed_type"`
}
