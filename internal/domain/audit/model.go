package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventUserAction   = "user_action"
	EventLoginAttempt = "login_attempt"
	EventDataAccess   = "data_access"
	EventSystemEvent  = "system_event"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Risk levels.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

var (
	eventTypes = []string{EventUserAction, EventLoginAttempt, EventDataAccess, EventSystemEvent}
	riskLevels = []string{RiskLow, RiskMedium, RiskHigh, RiskCritical}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// highRiskResources hold clinical or personally sensitive records.
var highRiskResources = map[string]bool{
	"prescription":   true,
	"visit":          true,
	"emergency":      true,
	"blood_requests": true,
}

// RiskLevel grades an action on a resource type.
func RiskLevel(resourceType, action string) string {
	mutating := action == "delete" || action == "update"
	switch {
	case highRiskResources[resourceType] && mutating:
		return RiskHigh
	case highRiskResources[resourceType]:
		return RiskMedium
	case mutating:
		return RiskMedium
	}
	return RiskLow
}

type Log struct {
	ID           uuid.UUID              `json:"id"`
	EventType    string                 `json:"event_type"`
	UserID       *uuid.UUID             `json:"user_id,omitempty"`
	UserType     string                 `json:"user_type,omitempty"`
	UserRole     string                 `json:"user_role,omitempty"`
	Username     string                 `json:"username,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Method       string                 `json:"method,omitempty"`
	Path         string                 `json:"path,omitempty"`
	Status       string                 `json:"status"`
	RiskLevel    string                 `json:"risk_level"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	Details      map[string]interface{} `json:"details"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Filter narrows audit log queries. Start and End are required.
type Filter struct {
	Start        time.Time
	End          time.Time
	UserID       *uuid.UUID
	EventType    string
	Status       string
	RiskLevels   []string
	OffHoursOnly bool
	Limit        int
	Offset       int
}

// LoginAttempt describes one authentication attempt.
type LoginAttempt struct {
	Username  string
	UserID    *uuid.UUID
	UserType  string
	UserRole  string
	IPAddress string
	UserAgent string
	Success   bool
	Reason    string
}

// Count is a grouped tally.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type UserActivity struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Count    int       `json:"count"`
}

type DailyCount struct {
	UserID uuid.UUID
	Day    time.Time
	Count  int
}

type SecuritySummary struct {
	PeriodDays           int            `json:"period_days"`
	TotalEvents          int            `json:"total_events"`
	SuccessfulLogins     int            `json:"successful_logins"`
	FailedLogins         int            `json:"failed_logins"`
	RiskDistribution     map[string]int `json:"risk_distribution"`
	TopActiveUsers       []UserActivity `json:"top_active_users"`
	SuspiciousActivities []*Log         `json:"suspicious_activities"`
}

type ComplianceReport struct {
	PeriodStart           time.Time      `json:"period_start"`
	PeriodEnd             time.Time      `json:"period_end"`
	TotalDataAccessEvents int            `json:"total_data_access_events"`
	HighRiskAccesses      int            `json:"high_risk_accesses"`
	UserAccessSummary     []UserActivity `json:"user_access_summary"`
	FailedLogins          int            `json:"failed_logins"`
	ComplianceStatus      string         `json:"compliance_status"`
	Recommendations       []string       `json:"recommendations"`
}

type FailedLoginReport struct {
	PeriodHours     int      `json:"period_hours"`
	TotalAttempts   int      `json:"total_attempts"`
	UniqueIPs       int      `json:"unique_ips"`
	UniqueUsernames int      `json:"unique_usernames"`
	TopFailingIPs   []Count  `json:"top_failing_ips"`
	TopUsernames    []Count  `json:"top_failing_usernames"`
	LockedKeys      []string `json:"locked_keys"`
}

type FrequencyAnomaly struct {
	UserID       uuid.UUID `json:"user_id"`
	Day          string    `json:"day"`
	Accesses     int       `json:"accesses"`
	DailyAverage float64   `json:"daily_average"`
}

type AccessPatterns struct {
	AnalysisPeriodDays int                `json:"analysis_period_days"`
	OffHoursAccesses   int                `json:"off_hours_accesses"`
	OffHoursSamples    []*Log             `json:"off_hours_samples"`
	FrequencyAnomalies []FrequencyAnomaly `json:"frequency_anomalies"`
}

type LogActionRequest struct {
	Action       string                 `json:"action"`
	Details      map[string]interface{} `json:"details"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
}

type SystemEventRequest struct {
	EventType   string                 `json:"event_type"`
	Description string                 `json:"description"`
	Severity    string                 `json:"severity"`
	Component   string                 `json:"component"`
	Details     map[string]interface{} `json:"details"`
}

type ExportRequest struct {
	Format    string `json:"format"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	UserID    string `json:"user_id"`
	EventType string `json:"event_type"`
	RiskLevel string `json:"risk_level"`
	Status    string `json:"status"`
}
