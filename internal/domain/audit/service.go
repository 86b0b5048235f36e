package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/pkg/apperr"
	"github.com/hms/hms/pkg/export"
)

const (
	defaultSearchDays = 30
	// complianceHighRiskLimit and complianceFailedLoginLimit flip a report to attention_required.
	complianceHighRiskLimit    = 10
	complianceFailedLoginLimit = 50
	// anomalyFactor is how far above a user's daily average the latest day must be.
	anomalyFactor = 3.0
)

const (
	ComplianceOK        = "compliant"
	ComplianceAttention = "attention_required"
)

type Service struct {
	repo        Repository
	cache       cache.Store
	maxFailures int
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService builds the audit service. maxFailures is the failed-login count
// at which a username+ip pair counts as locked.
func NewService(repo Repository, store cache.Store, maxFailures int, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: store, maxFailures: maxFailures, logger: logger, now: time.Now}
}

var _ middleware.AuditRecorder = (*Service)(nil)

// RecordAccess stores one API call captured by the audit middleware.
func (s *Service) RecordAccess(ctx context.Context, e middleware.AuditEntry) error {
	l := &Log{
		EventType:    EventUserAction,
		UserType:     e.UserType,
		UserRole:     e.UserRole,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Method:       e.Method,
		Path:         e.Path,
		Status:       StatusSuccess,
		RiskLevel:    RiskLevel(e.ResourceType, e.Action),
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		SessionID:    e.SessionID,
		Details: map[string]interface{}{
			"status_code": e.StatusCode,
			"request_id":  e.RequestID,
		},
	}
	if e.Action == "read" {
		l.EventType = EventDataAccess
	}
	if e.StatusCode >= http.StatusBadRequest {
		l.Status = StatusFailure
	}
	if id, err := uuid.Parse(e.UserID); err == nil {
		l.UserID = &id
	}
	return s.repo.Create(ctx, l)
}

// RecordLogin stores a login_attempt. Failures are high risk.
func (s *Service) RecordLogin(ctx context.Context, a LoginAttempt) error {
	l := &Log{
		EventType: EventLoginAttempt,
		UserID:    a.UserID,
		UserType:  a.UserType,
		UserRole:  a.UserRole,
		Username:  a.Username,
		Action:    "login",
		Status:    StatusSuccess,
		RiskLevel: RiskMedium,
		IPAddress: a.IPAddress,
		UserAgent: a.UserAgent,
		Details:   map[string]interface{}{},
	}
	if !a.Success {
		l.Status = StatusFailure
		l.RiskLevel = RiskHigh
		l.Details["reason"] = a.Reason
	}
	return s.repo.Create(ctx, l)
}

func (s *Service) window(days int) (time.Time, time.Time) {
	end := s.now().UTC()
	return end.AddDate(0, 0, -days), end
}

// Search validates f and fills the default 30 day window.
func (s *Service) Search(ctx context.Context, f Filter) ([]*Log, int, error) {
	if err := s.normalize(&f); err != nil {
		return nil, 0, err
	}
	return s.repo.Search(ctx, f)
}

func (s *Service) normalize(f *Filter) error {
	if f.End.IsZero() {
		f.End = s.now().UTC()
	}
	if f.Start.IsZero() {
		f.Start = f.End.AddDate(0, 0, -defaultSearchDays)
	}
	if f.Start.After(f.End) {
		return apperr.Validation("start_date must be before end_date")
	}
	if f.EventType != "" && !oneOf(f.EventType, eventTypes) {
		return apperr.Validation("invalid event_type")
	}
	if f.Status != "" && f.Status != StatusSuccess && f.Status != StatusFailure {
		return apperr.Validation("invalid status")
	}
	for _, r := range f.RiskLevels {
		if !oneOf(r, riskLevels) {
			return apperr.Validation("invalid risk_level")
		}
	}
	return nil
}

func (s *Service) SecuritySummary(ctx context.Context, days int) (*SecuritySummary, error) {
	if days <= 0 {
		days = 7
	}
	start, end := s.window(days)
	base := Filter{Start: start, End: end}

	total, err := s.repo.Count(ctx, base)
	if err != nil {
		return nil, err
	}
	logins := base
	logins.EventType = EventLoginAttempt
	byStatus, err := s.repo.CountBy(ctx, logins, "status", 0)
	if err != nil {
		return nil, err
	}
	risks, err := s.repo.CountBy(ctx, base, "risk_level", 0)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopUsers(ctx, base, 10)
	if err != nil {
		return nil, err
	}
	suspicious := base
	suspicious.RiskLevels = []string{RiskHigh, RiskCritical}
	suspicious.Limit = 10
	recent, _, err := s.repo.Search(ctx, suspicious)
	if err != nil {
		return nil, err
	}

	summary := &SecuritySummary{
		PeriodDays:           days,
		TotalEvents:          total,
		RiskDistribution:     map[string]int{},
		TopActiveUsers:       nonNil(top),
		SuspiciousActivities: nonNil(recent),
	}
	for _, c := range byStatus {
		switch c.Key {
		case StatusSuccess:
			summary.SuccessfulLogins = c.Count
		case StatusFailure:
			summary.FailedLogins = c.Count
		}
	}
	for _, c := range risks {
		summary.RiskDistribution[c.Key] = c.Count
	}
	return summary, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// UserTrail returns a user's events of the last days, newest first.
func (s *Service) UserTrail(ctx context.Context, userID uuid.UUID, days, limit, offset int) ([]*Log, int, error) {
	if days <= 0 {
		days = defaultSearchDays
	}
	start, end := s.window(days)
	return s.repo.Search(ctx, Filter{Start: start, End: end, UserID: &userID, Limit: limit, Offset: offset})
}

// LogAction records an action reported by a client.
func (s *Service) LogAction(ctx context.Context, p *auth.Principal, req LogActionRequest, ip, userAgent string) (*Log, error) {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return nil, apperr.Required("action")
	}
	l := &Log{
		EventType:    EventUserAction,
		UserType:     p.Type,
		UserRole:     p.Role,
		Action:       action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Status:       StatusSuccess,
		RiskLevel:    RiskLevel(req.ResourceType, action),
		IPAddress:    ip,
		UserAgent:    userAgent,
		SessionID:    p.JTI,
		Details:      req.Details,
	}
	id := p.ID
	l.UserID = &id
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

var severityRisk = map[string]string{
	"info":     RiskLow,
	"low":      RiskLow,
	"warning":  RiskMedium,
	"medium":   RiskMedium,
	"error":    RiskHigh,
	"high":     RiskHigh,
	"critical": RiskCritical,
}

// SystemEvent records an operational event raised by an admin.
func (s *Service) SystemEvent(ctx context.Context, p *auth.Principal, req SystemEventRequest) (*Log, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.EventType) == "" {
		fields["event_type"] = "event_type is required"
	}
	if strings.TrimSpace(req.Description) == "" {
		fields["description"] = "description is required"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("missing required fields", fields)
	}
	severity := strings.ToLower(req.Severity)
	if severity == "" {
		severity = "info"
	}
	risk, ok := severityRisk[severity]
	if !ok {
		return nil, apperr.Validation("invalid severity")
	}

	details := map[string]interface{}{}
	for k, v := range req.Details {
		details[k] = v
	}
	details["description"] = req.Description
	details["severity"] = severity
	if req.Component != "" {
		details["component"] = req.Component
	}

	id := p.ID
	l := &Log{
		EventType: EventSystemEvent,
		UserID:    &id,
		UserType:  p.Type,
		UserRole:  p.Role,
		Action:    req.EventType,
		Status:    StatusSuccess,
		RiskLevel: risk,
		Details:   details,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// ComplianceReport summarises data access between start and end.
func (s *Service) ComplianceReport(ctx context.Context, start, end time.Time) (*ComplianceReport, error) {
	if end.IsZero() {
		end = s.now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -defaultSearchDays)
	}
	if start.After(end) {
		return nil, apperr.Validation("start_date must be before end_date")
	}

	access := Filter{Start: start, End: end, EventType: EventDataAccess}
	totalAccess, err := s.repo.Count(ctx, access)
	if err != nil {
		return nil, err
	}
	highRisk := Filter{Start: start, End: end, RiskLevels: []string{RiskHigh, RiskCritical}}
	highRiskCount, err := s.repo.Count(ctx, highRisk)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.TopUsers(ctx, access, 50)
	if err != nil {
		return nil, err
	}
	failed := Filter{Start: start, End: end, EventType: EventLoginAttempt, Status: StatusFailure}
	failedCount, err := s.repo.Count(ctx, failed)
	if err != nil {
		return nil, err
	}

	report := &ComplianceReport{
		PeriodStart:           start,
		PeriodEnd:             end,
		TotalDataAccessEvents: totalAccess,
		HighRiskAccesses:      highRiskCount,
		UserAccessSummary:     nonNil(users),
		FailedLogins:          failedCount,
		ComplianceStatus:      ComplianceOK,
		Recommendations:       []string{},
	}
	if highRiskCount > complianceHighRiskLimit {
		report.ComplianceStatus = ComplianceAttention
		report.Recommendations = append(report.Recommendations, "Review high-risk data access events")
	}
	if failedCount > complianceFailedLoginLimit {
		report.ComplianceStatus = ComplianceAttention
		report.Recommendations = append(report.Recommendations, "Investigate repeated failed login attempts")
	}
	if report.ComplianceStatus == ComplianceOK {
		report.Recommendations = append(report.Recommendations, "Continue regular access reviews")
	}
	return report, nil
}

// FailedLogins reports failed login attempts of the last hours plus the
// username+ip pairs currently locked out.
func (s *Service) FailedLogins(ctx context.Context, hours int) (*FailedLoginReport, error) {
	if hours <= 0 {
		hours = 24
	}
	end := s.now().UTC()
	f := Filter{Start: end.Add(-time.Duration(hours) * time.Hour), End: end, EventType: EventLoginAttempt, Status: StatusFailure}

	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	ips, err := s.repo.Distinct(ctx, f, "ip_address")
	if err != nil {
		return nil, err
	}
	names, err := s.repo.Distinct(ctx, f, "username")
	if err != nil {
		return nil, err
	}
	topIPs, err := s.repo.CountBy(ctx, f, "ip_address", 10)
	if err != nil {
		return nil, err
	}
	topNames, err := s.repo.CountBy(ctx, f, "username", 10)
	if err != nil {
		return nil, err
	}

	return &FailedLoginReport{
		PeriodHours:     hours,
		TotalAttempts:   total,
		UniqueIPs:       ips,
		UniqueUsernames: names,
		TopFailingIPs:   nonNil(topIPs),
		TopUsernames:    nonNil(topNames),
		LockedKeys:      s.lockedKeys(ctx),
	}, nil
}

func (s *Service) lockedKeys(ctx context.Context) []string {
	locked := []string{}
	if s.cache == nil {
		return locked
	}
	keys, err := s.cache.Keys(ctx, auth.LoginFailurePattern)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list login failure counters")
		return locked
	}
	for _, k := range keys {
		var n int
		found, err := s.cache.Get(ctx, k, &n)
		if err != nil || !found {
			continue
		}
		if n >= s.maxFailures {
			locked = append(locked, k)
		}
	}
	sort.Strings(locked)
	return locked
}

// DataAccessPatterns flags off-hours access and per-user daily spikes.
func (s *Service) DataAccessPatterns(ctx context.Context, days int) (*AccessPatterns, error) {
	if days <= 0 {
		days = 7
	}
	start, end := s.window(days)

	off := Filter{Start: start, End: end, OffHoursOnly: true}
	offCount, err := s.repo.Count(ctx, off)
	if err != nil {
		return nil, err
	}
	off.Limit = 20
	samples, _, err := s.repo.Search(ctx, off)
	if err != nil {
		return nil, err
	}
	daily, err := s.repo.DailyUserCounts(ctx, Filter{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	return &AccessPatterns{
		AnalysisPeriodDays: days,
		OffHoursAccesses:   offCount,
		OffHoursSamples:    nonNil(samples),
		FrequencyAnomalies: frequencyAnomalies(daily),
	}, nil
}

// frequencyAnomalies expects rows ordered by user then day and flags users
// whose latest day exceeds anomalyFactor times their average over all days.
func frequencyAnomalies(rows []DailyCount) []FrequencyAnomaly {
	out := []FrequencyAnomaly{}
	flush := func(group []DailyCount) {
		if len(group) < 2 {
			return
		}
		sum := 0
		for _, d := range group {
			sum += d.Count
		}
		avg := float64(sum) / float64(len(group))
		last := group[len(group)-1]
		if float64(last.Count) > anomalyFactor*avg {
			out = append(out, FrequencyAnomaly{
				UserID:       last.UserID,
				Day:          last.Day.Format("2006-01-02"),
				Accesses:     last.Count,
				DailyAverage: avg,
			})
		}
	}

	var group []DailyCount
	for _, r := range rows {
		if len(group) > 0 && group[0].UserID != r.UserID {
			flush(group)
			group = nil
		}
		group = append(group, r)
	}
	flush(group)
	return out
}

// ExportFilter converts an export request into a Filter.
func ExportFilter(req ExportRequest) (Filter, error) {
	var f Filter
	var err error
	if req.StartDate != "" {
		if f.Start, err = ParseDate(req.StartDate); err != nil {
			return f, apperr.Validation("invalid start_date")
		}
	}
	if req.EndDate != "" {
		if f.End, err = ParseDate(req.EndDate); err != nil {
			return f, apperr.Validation("invalid end_date")
		}
	}
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			return f, apperr.Validation("invalid user_id")
		}
		f.UserID = &id
	}
	f.EventType = req.EventType
	f.Status = req.Status
	if req.RiskLevel != "" {
		f.RiskLevels = []string{req.RiskLevel}
	}
	return f, nil
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func ParseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

var csvHeader = []string{
	"id", "created_at", "event_type", "user_id", "user_type", "user_role", "username", "action",
	"resource_type", "resource_id", "method", "path", "status", "risk_level", "ip_address", "user_agent",
}

// Export renders every matching log as json or csv. It returns the payload
// and its content type.
func (s *Service) Export(ctx context.Context, format string, f Filter) ([]byte, string, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		return nil, "", apperr.Validation("format must be json or csv")
	}
	if err := s.normalize(&f); err != nil {
		return nil, "", err
	}
	f.Limit, f.Offset = 0, 0
	logs, _, err := s.repo.Search(ctx, f)
	if err != nil {
		return nil, "", err
	}

	if format == "json" {
		body, err := json.Marshal(nonNil(logs))
		if err != nil {
			return nil, "", fmt.Errorf("encode audit export: %w", err)
		}
		return body, export.ContentTypeJSON, nil
	}

	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		userID := ""
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		rows = append(rows, []string{
			l.ID.String(), l.CreatedAt.UTC().Format(time.RFC3339), l.EventType, userID, l.UserType, l.UserRole,
			l.Username, l.Action, l.ResourceType, l.ResourceID, l.Method, l.Path, l.Status, l.RiskLevel,
			l.IPAddress, l.UserAgent,
		})
	}
	body, err := export.CSV(csvHeader, rows)
	if err != nil {
		return nil, "", fmt.Errorf("encode audit export: %w", err)
	}
	return body, export.ContentTypeCSV, nil
}
