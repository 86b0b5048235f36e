package admin

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Admin is a console operator stored apart from end users.
type Admin struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Log is one admin-sensitive action. AdminID is the acting principal.
type Log struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	AdminID   uuid.UUID       `db:"admin_id" json:"admin_id"`
	UserID    *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Action    json.RawMessage `db:"action" json:"action"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

type DashboardStats struct {
	TotalUsers        int `json:"total_users"`
	TotalHospitals    int `json:"total_hospitals"`
	TotalAdmins       int `json:"total_admins"`
	TotalAppointments int `json:"total_appointments"`
	TotalEmergencies  int `json:"total_emergencies"`
}

type CreateAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
