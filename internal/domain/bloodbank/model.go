package bloodbank

import (
	"time"

	"github.com/google/uuid"
)

// BloodTypes lists the accepted ABO/Rh groups.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func validBloodType(t string) bool {
	for _, v := range BloodTypes {
		if v == t {
			return true
		}
	}
	return false
}

// LowStockThreshold is the unit count under which a stock alert is raised.
const LowStockThreshold = 5

// Request statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusFulfilled = "fulfilled"
)

type BloodBank struct {
	ID                  uuid.UUID      `json:"id"`
	Name                string         `json:"name"`
	Location            string         `json:"location"`
	ContactNo           *string        `json:"contact_no,omitempty"`
	Email               string         `json:"email"`
	BloodTypesAvailable []string       `json:"blood_types_available"`
	StockLevels         map[string]int `json:"stock_levels"`
	Category            *string        `json:"category,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Inventory is one lot of a blood type held by a bank.
type Inventory struct {
	ID          uuid.UUID  `json:"id"`
	BloodBankID uuid.UUID  `json:"bloodbank_id"`
	BloodType   string     `json:"blood_type"`
	Units       int        `json:"units"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	LotNumber   string     `json:"lot_number"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the lot is past its expiry date on day now.
func (i *Inventory) Expired(now time.Time) bool {
	if i.ExpiryDate == nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return i.ExpiryDate.Before(today)
}

type Request struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	RequesterName  *string    `json:"requester_name,omitempty"`
	RequesterPhone *string    `json:"requester_phone,omitempty"`
	RequesterEmail *string    `json:"requester_email,omitempty"`
	BloodGroup     string     `json:"blood_group"`
	QuantityUnits  int        `json:"quantity_units"`
	Location       string     `json:"location"`
	Reference      string     `json:"reference"`
	BloodBankID    *uuid.UUID `json:"bloodbank_id,omitempty"`
	InventoryID    *uuid.UUID `json:"inventory_id,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StockReport lists a bank's lots with usable units per type.
type StockReport struct {
	BloodBankID uuid.UUID      `json:"bloodbank_id"`
	Inventory   []*Inventory   `json:"inventory"`
	Totals      map[string]int `json:"totals"`
}

type RegisterRequest struct {
	Name      string  `json:"name"`
	Location  string  `json:"location"`
	ContactNo *string `json:"contact_no"`
	Email     string  `json:"email"`
	Category  *string `json:"category"`
}

type AddStockRequest struct {
	BloodType  string `json:"blood_type"`
	Units      int    `json:"units"`
	ExpiryDate string `json:"expiry_date"`
	LotNumber  string `json:"lot_number"`
}

type CreateRequest struct {
	BloodGroup     string  `json:"blood_group"`
	QuantityUnits  int     `json:"quantity_units"`
	Location       string  `json:"location"`
	Reference      string  `json:"reference"`
	RequesterName  *string `json:"requester_name"`
	RequesterPhone *string `json:"requester_phone"`
	RequesterEmail *string `json:"requester_email"`
	BloodBankID    string  `json:"bloodbank_id"`
}

type UpdateStatusRequest struct {
	Status      string `json:"status"`
	BloodBankID string `json:"bloodbank_id"`
}
