// Package reporting evaluates named SQL measures and composes them into the
// hospital statistics, user activity and analytics reports.
package reporting

import (
	"time"

	"github.com/google/uuid"
)

// Measure parameter names. Each maps to one positional argument, in the
// order a measure lists them.
const (
	ParamStart      = "start"
	ParamEnd        = "end"
	ParamHospitalID = "hospital_id"
	ParamRole       = "role"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"-"`
	Parameters  []string `json:"parameters"`
	// HospitalScoped measures accept hospital_id, so hospital admins may run them.
	HospitalScoped bool `json:"hospital_scoped"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string            `json:"measure_id"`
	MeasureName string            `json:"measure_name"`
	GeneratedAt time.Time         `json:"generated_at"`
	Results     []Row             `json:"results"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// Params are the values a measure may bind.
type Params struct {
	Start      time.Time
	End        time.Time
	HospitalID *uuid.UUID
	Role       string
}

// args returns the positional arguments for names.
func (p Params) args(names []string) []interface{} {
	out := make([]interface{}, 0, len(names))
	for _, n := range names {
		switch n {
		case ParamStart:
			out = append(out, p.Start)
		case ParamEnd:
			out = append(out, p.End)
		case ParamHospitalID:
			out = append(out, p.HospitalID)
		case ParamRole:
			out = append(out, p.Role)
		}
	}
	return out
}

// describe renders the bound values for the report envelope.
func (p Params) describe(names []string) map[string]string {
	out := map[string]string{}
	for _, n := range names {
		switch n {
		case ParamStart:
			out[n] = p.Start.UTC().Format(time.RFC3339)
		case ParamEnd:
			out[n] = p.End.UTC().Format(time.RFC3339)
		case ParamHospitalID:
			if p.HospitalID != nil {
				out[n] = p.HospitalID.String()
			}
		case ParamRole:
			if p.Role != "" {
				out[n] = p.Role
			}
		}
	}
	return out
}

var (
	rangeScoped = []string{ParamStart, ParamEnd, ParamHospitalID}
	rangeOnly   = []string{ParamStart, ParamEnd}
)

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "hospital-overview",
		Name:        "Hospital Overview",
		Description: "Floors, wards and bed occupancy per hospital",
		SQL: `SELECT h.id::text AS hospital_id, h.name, h.location, h.hospital_type, h.opd_status,
       h.bed_availability,
       COUNT(DISTINCT f.id) AS total_floors,
       COUNT(DISTINCT w.id) AS total_wards,
       COUNT(b.id) AS total_beds,
       COUNT(b.id) FILTER (WHERE b.status = 'occupied') AS occupied_beds,
       COUNT(b.id) FILTER (WHERE b.status = 'vacant') AS vacant_beds
FROM hospitals h
LEFT JOIN floors f ON f.hospital_id = h.id
LEFT JOIN wards w ON w.floor_id = f.id
LEFT JOIN beds b ON b.ward_id = w.id
WHERE ($1::uuid IS NULL OR h.id = $1::uuid)
GROUP BY h.id, h.name, h.location, h.hospital_type, h.opd_status, h.bed_availability
ORDER BY h.name`,
		Parameters:     []string{ParamHospitalID},
		HospitalScoped: true,
	},
	{
		ID:          "appointment-status",
		Name:        "Appointments by Status",
		Description: "Appointments booked in the range, grouped by hospital and status",
		SQL: `SELECT a.hospital_id::text AS hospital_id, h.name AS hospital_name, a.status, COUNT(*) AS total
FROM appointments a
JOIN hospitals h ON h.id = a.hospital_id
WHERE a.created_at >= $1 AND a.created_at <= $2 AND ($3::uuid IS NULL OR a.hospital_id = $3::uuid)
GROUP BY a.hospital_id, h.name, a.status
ORDER BY h.name, a.status`,
		Parameters:     rangeScoped,
		HospitalScoped: true,
	},
	{
		ID:          "appointment-daily",
		Name:        "Daily Appointment Volume",
		Description: "Appointments booked per day in the range",
		SQL: `SELECT to_char(created_at, 'YYYY-MM-DD') AS day, COUNT(*) AS total
FROM appointments
WHERE created_at >= $1 AND created_at <= $2 AND ($3::uuid IS NULL OR hospital_id = $3::uuid)
GROUP BY 1
ORDER BY 1`,
		Parameters:     rangeScoped,
		HospitalScoped: true,
	},
	{
		ID:          "emergency-types",
		Name:        "Emergencies by Type",
		Description: "Emergencies routed to a hospital in the range, by type, with resolved counts",
		SQL: `SELECT hospital_id::text AS hospital_id, emergency_type, COUNT(*) AS total,
       COUNT(*) FILTER (WHERE forward_status = 'Pending') AS pending,
       COUNT(*) FILTER (WHERE forward_status = 'Resolved') AS resolved
FROM emergencies
WHERE hospital_id IS NOT NULL AND created_at >= $1 AND created_at <= $2
  AND ($3::uuid IS NULL OR hospital_id = $3::uuid)
GROUP BY hospital_id, emergency_type
ORDER BY total DESC, emergency_type`,
		Parameters:     rangeScoped,
		HospitalScoped: true,
	},
	{
		ID:          "monthly-trends",
		Name:        "Monthly Trends",
		Description: "Appointments and emergencies per month in the range",
		SQL: `WITH a AS (
    SELECT to_char(created_at, 'YYYY-MM') AS month, COUNT(*) AS appointments
    FROM appointments
    WHERE created_at >= $1 AND created_at <= $2 AND ($3::uuid IS NULL OR hospital_id = $3::uuid)
    GROUP BY 1
), e AS (
    SELECT to_char(created_at, 'YYYY-MM') AS month, COUNT(*) AS emergencies
    FROM emergencies
    WHERE created_at >= $1 AND created_at <= $2 AND ($3::uuid IS NULL OR hospital_id = $3::uuid)
    GROUP BY 1
)
SELECT COALESCE(a.month, e.month) AS month,
       COALESCE(a.appointments, 0) AS appointments,
       COALESCE(e.emergencies, 0) AS emergencies
FROM a FULL OUTER JOIN e ON a.month = e.month
ORDER BY 1`,
		Parameters:     rangeScoped,
		HospitalScoped: true,
	},
	{
		ID:          "blood-request-status",
		Name:        "Blood Requests by Group",
		Description: "Blood requests in the range by blood group and status, with units asked for",
		SQL: `SELECT blood_group, status, COUNT(*) AS total, COALESCE(SUM(quantity_units), 0) AS units
FROM blood_requests
WHERE created_at >= $1 AND created_at <= $2
GROUP BY blood_group, status
ORDER BY blood_group, status`,
		Parameters: rangeOnly,
	},
	{
		ID:          "user-role-distribution",
		Name:        "User Role Distribution",
		Description: "Registered users per role",
		SQL:         `SELECT role, COUNT(*) AS total FROM users GROUP BY role ORDER BY total DESC, role`,
		Parameters:  []string{},
	},
	{
		ID:          "hospital-type-distribution",
		Name:        "Hospital Type Distribution",
		Description: "Hospitals per type",
		SQL:         `SELECT hospital_type, COUNT(*) AS total FROM hospitals GROUP BY hospital_type ORDER BY total DESC, hospital_type`,
		Parameters:  []string{},
	},
	{
		ID:          "hospital-locations",
		Name:        "Hospital Locations",
		Description: "Hospitals per location",
		SQL:         `SELECT location, COUNT(*) AS total FROM hospitals GROUP BY location ORDER BY total DESC, location`,
		Parameters:  []string{},
	},
	{
		ID:          "user-activity",
		Name:        "User Activity",
		Description: "The most active users in the range, optionally filtered by role",
		SQL: `SELECT * FROM (
    SELECT u.id::text AS user_id, u.username, u.fullname, u.email, u.role, u.created_at,
           (SELECT COUNT(*) FROM appointments a
             WHERE a.patient_id = u.id AND a.created_at >= $1 AND a.created_at <= $2) AS appointments_made,
           (SELECT COUNT(*) FROM emergencies e
             WHERE e.user_id = u.id AND e.created_at >= $1 AND e.created_at <= $2) AS emergencies_logged,
           (SELECT COUNT(*) FROM blood_requests r
             WHERE r.user_id = u.id AND r.created_at >= $1 AND r.created_at <= $2) AS blood_requests
    FROM users u
    WHERE ($3::text = '' OR u.role = $3::text)
) t
ORDER BY t.appointments_made + t.emergencies_logged + t.blood_requests DESC, t.username
LIMIT 100`,
		Parameters: []string{ParamStart, ParamEnd, ParamRole},
	},
	{
		ID:          "activity-summary",
		Name:        "Activity Summary",
		Description: "User totals, new registrations and active users in the range",
		SQL: `SELECT COUNT(*) AS total_users,
       COUNT(*) FILTER (WHERE u.created_at >= $1 AND u.created_at <= $2) AS new_registrations,
       COUNT(*) FILTER (WHERE
           EXISTS (SELECT 1 FROM appointments a
                    WHERE a.patient_id = u.id AND a.created_at >= $1 AND a.created_at <= $2)
        OR EXISTS (SELECT 1 FROM emergencies e
                    WHERE e.user_id = u.id AND e.created_at >= $1 AND e.created_at <= $2)
        OR EXISTS (SELECT 1 FROM blood_requests r
                    WHERE r.user_id = u.id AND r.created_at >= $1 AND r.created_at <= $2)
       ) AS active_users
FROM users u
WHERE ($3::text = '' OR u.role = $3::text)`,
		Parameters: []string{ParamStart, ParamEnd, ParamRole},
	},
}

// FindMeasure returns the measure with the given ID, or nil.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
