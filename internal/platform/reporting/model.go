package reporting

import (
	"time"

	"github.com/google/uuid"
)

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AppointmentStats struct {
	Total          int64   `json:"total"`
	Pending        int64   `json:"pending"`
	Confirmed      int64   `json:"confirmed"`
	Completed      int64   `json:"completed"`
	Cancelled      int64   `json:"cancelled"`
	NoShow         int64   `json:"no_show"`
	CompletionRate float64 `json:"completion_rate"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type EmergencyStats struct {
	Total          int64       `json:"total"`
	Pending        int64       `json:"pending"`
	Resolved       int64       `json:"resolved"`
	ResolutionRate float64     `json:"resolution_rate"`
	Types          []TypeCount `json:"types_breakdown"`
}

type HospitalStats struct {
	HospitalID      string           `json:"hospital_id"`
	Name            string           `json:"name"`
	Location        string           `json:"location"`
	Type            string           `json:"type"`
	OPDStatus       string           `json:"opd_status"`
	BedAvailability int64            `json:"bed_availability"`
	TotalFloors     int64            `json:"total_floors"`
	TotalWards      int64            `json:"total_wards"`
	TotalBeds       int64            `json:"total_beds"`
	OccupiedBeds    int64            `json:"occupied_beds"`
	VacantBeds      int64            `json:"vacant_beds"`
	BedOccupancy    float64          `json:"bed_occupancy"`
	Appointments    AppointmentStats `json:"appointments"`
	Emergencies     EmergencyStats   `json:"emergency_cases"`
}

type MonthlyTrend struct {
	Month        string `json:"month"`
	Appointments int64  `json:"appointments"`
	Emergencies  int64  `json:"emergencies"`
}

type BloodRequestStats struct {
	Total           int64            `json:"total"`
	Pending         int64            `json:"pending"`
	Fulfilled       int64            `json:"fulfilled"`
	Units           int64            `json:"units"`
	FulfillmentRate float64          `json:"fulfillment_rate"`
	ByBloodGroup    map[string]int64 `json:"by_blood_group"`
}

// SystemWide is only filled for reports that span every hospital.
type SystemWide struct {
	UserRoles         map[string]int64  `json:"user_roles"`
	HospitalTypes     map[string]int64  `json:"hospital_types"`
	HospitalLocations map[string]int64  `json:"hospital_locations"`
	BloodRequests     BloodRequestStats `json:"blood_requests"`
}

type HospitalStatistics struct {
	GeneratedAt   time.Time       `json:"generated_at"`
	DateRange     DateRange       `json:"date_range"`
	Hospitals     []HospitalStats `json:"hospitals"`
	MonthlyTrends []MonthlyTrend  `json:"monthly_trends"`
	SystemWide    *SystemWide     `json:"system_wide,omitempty"`
}

type Activity struct {
	AppointmentsMade  int64 `json:"appointments_made"`
	EmergenciesLogged int64 `json:"emergencies_logged"`
	BloodRequests     int64 `json:"blood_requests"`
}

type UserActivity struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	Fullname  string   `json:"fullname"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	CreatedAt string   `json:"created_at"`
	Activity  Activity `json:"activity"`
}

type ActivitySummary struct {
	TotalUsers       int64 `json:"total_users"`
	ActiveUsers      int64 `json:"active_users"`
	NewRegistrations int64 `json:"new_registrations"`
}

type UserActivityReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	DateRange   DateRange       `json:"date_range"`
	Role        string          `json:"role,omitempty"`
	Summary     ActivitySummary `json:"summary"`
	Users       []UserActivity  `json:"users"`
}

type AnalyticsSummary struct {
	Days                  int              `json:"days"`
	DateRange             DateRange        `json:"date_range"`
	Activity              ActivitySummary  `json:"activity"`
	TotalReportsGenerated int64            `json:"total_reports_generated"`
	MostRequestedType     string           `json:"most_requested_report_type"`
	ReportsByType         map[string]int64 `json:"reports_by_type"`
	ExportsByFormat       map[string]int64 `json:"exports_by_format"`
}

// ExportRequest selects the report to regenerate for download.
type ExportRequest struct {
	ReportType string     `json:"report_type"`
	HospitalID *uuid.UUID `json:"hospital_id"`
	StartDate  string     `json:"start_date"`
	EndDate    string     `json:"end_date"`
	Role       string     `json:"role"`
}
