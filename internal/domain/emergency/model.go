package emergency

import (
	"time"

	"github.com/google/uuid"
)

// Forward statuses track an emergency through dispatch.
const (
	ForwardPending   = "Pending"
	ForwardForwarded = "Forwarded"
	ForwardResolved  = "Resolved"
	ForwardCancelled = "Cancelled"
)

var forwardStatuses = []string{ForwardPending, ForwardForwarded, ForwardResolved, ForwardCancelled}

// Ambulance types and statuses.
const (
	AmbulancePublic  = "public"
	AmbulancePrivate = "private"

	AmbulanceVacant      = "vacant"
	AmbulanceOccupied    = "occupied"
	AmbulanceUnavailable = "unavailable"
)

var ambulanceStatuses = []string{AmbulanceVacant, AmbulanceOccupied, AmbulanceUnavailable}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

type Emergency struct {
	ID             uuid.UUID  `json:"id"`
	EmergencyType  string     `json:"emergency_type"`
	HospitalID     *uuid.UUID `json:"hospital_id,omitempty"`
	Location       string     `json:"location"`
	ContactNumber  string     `json:"contact_number"`
	Details        *string    `json:"details,omitempty"`
	UserIP         *string    `json:"user_ip,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	ForwardedToOrg *string    `json:"forwarded_to_org,omitempty"`
	ForwardStatus  string     `json:"forward_status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Ambulance struct {
	ID          uuid.UUID  `json:"id"`
	HospitalID  *uuid.UUID `json:"hospital_id,omitempty"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	DriverName  *string    `json:"driver_name,omitempty"`
	DriverPhone *string    `json:"driver_phone,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CallRequest struct {
	EmergencyType string  `json:"emergency_type"`
	Location      string  `json:"location"`
	ContactNumber string  `json:"contact_number"`
	Details       *string `json:"details"`
	HospitalID    string  `json:"hospital_id"`
}

// Caller identifies who raised an emergency. UserID is nil for anonymous calls.
type Caller struct {
	IP     string
	UserID *uuid.UUID
}

type UpdateRequest struct {
	ForwardStatus  *string `json:"forward_status"`
	ForwardedToOrg *string `json:"forwarded_to_org"`
	HospitalID     *string `json:"hospital_id"`
}

type RegisterAmbulanceRequest struct {
	HospitalID  string   `json:"hospital_id"`
	Type        string   `json:"type"`
	DriverName  *string  `json:"driver_name"`
	DriverPhone *string  `json:"driver_phone"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type AmbulanceStatusRequest struct {
	Status    string   `json:"status"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
