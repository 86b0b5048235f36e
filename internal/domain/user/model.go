package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Fullname     string    `db:"fullname" json:"fullname"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	PhoneNum     *string   `db:"phone_num" json:"phone_num,omitempty"`
	Location     *string   `db:"location" json:"location,omitempty"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Stats summarises the user base for the admin console.
type Stats struct {
	Total      int            `json:"total"`
	ByRole     map[string]int `json:"by_role"`
	Last7Days  int            `json:"created_last_7_days"`
	Last30Days int            `json:"created_last_30_days"`
}

type UpdateProfileRequest struct {
	Fullname *string `json:"fullname"`
	Email    *string `json:"email"`
	PhoneNum *string `json:"phone_num"`
	Location *string `json:"location"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}
