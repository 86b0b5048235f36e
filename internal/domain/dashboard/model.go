package dashboard

import (
	"github.com/hms/hms/internal/domain/admin"
	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/doctor"
	"github.com/hms/hms/internal/domain/emergency"
	"github.com/hms/hms/internal/domain/hospital"
	"github.com/hms/hms/internal/domain/user"
)

const (
	adminRecentLimit  = 5
	doctorRecentLimit = 10
	userRecentLimit   = 5
	upcomingLimit     = 5
)

// Dashboard is the caller's role-specific overview. Exactly one section is set.
type Dashboard struct {
	Role     string             `json:"role"`
	Admin    *AdminDashboard    `json:"admin,omitempty"`
	Hospital *HospitalDashboard `json:"hospital,omitempty"`
	Doctor   *DoctorDashboard   `json:"doctor,omitempty"`
	User     *UserDashboard     `json:"user,omitempty"`
}

type AdminDashboard struct {
	Stats              *admin.DashboardStats      `json:"stats"`
	RecentUsers        []*user.User               `json:"recent_users"`
	RecentAppointments []*appointment.Appointment `json:"recent_appointments"`
	RecentEmergencies  []*emergency.Emergency     `json:"recent_emergencies"`
}

type AppointmentCounts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Today   int `json:"today"`
}

type HospitalDashboard struct {
	Hospital     *hospital.Hospital `json:"hospital"`
	Appointments AppointmentCounts  `json:"appointments"`
	Layout       *hospital.Summary  `json:"layout"`
}

type DoctorDashboard struct {
	Doctor            *doctor.Doctor             `json:"doctor"`
	TotalAppointments int                        `json:"total_appointments"`
	Upcoming          []*appointment.Appointment `json:"upcoming_appointments"`
	Recent            []*appointment.Appointment `json:"recent_appointments"`
}

type UserDashboard struct {
	Profile           *user.User                 `json:"profile"`
	TotalAppointments int                        `json:"total_appointments"`
	Upcoming          []*appointment.Appointment `json:"upcoming_appointments"`
	Recent            []*appointment.Appointment `json:"recent_appointments"`
}
