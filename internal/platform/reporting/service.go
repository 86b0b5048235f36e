package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/pkg/apperr"
	"github.com/hms/hms/pkg/export"
)

const (
	ReportHospitalStatistics = "hospital_statistics"
	ReportUserActivity       = "user_activity"
	ReportMeasure            = "measure"

	defaultRangeDays   = 30
	defaultSummaryDays = 7
	maxSummaryDays     = 90

	counterPrefix = "reports:"
	// counterTTL outlives the longest summary window.
	counterTTL = (maxSummaryDays + 1) * 24 * time.Hour
)

var knownRoles = map[string]bool{
	auth.RoleUser: true, auth.RoleDoctor: true, auth.RoleHospitalAdmin: true,
	auth.RoleAdmin: true, auth.RoleDonor: true, auth.RoleAmbulanceDriver: true,
}

type Service struct {
	eval   Evaluator
	cache  cache.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(eval Evaluator, store cache.Store, logger zerolog.Logger) *Service {
	return &Service{eval: eval, cache: store, logger: logger, now: time.Now}
}

// Measures lists the measures actor may evaluate.
func (s *Service) Measures(actor *auth.Principal) []MeasureDefinition {
	if actor.IsAdmin() {
		return PredefinedMeasures
	}
	out := []MeasureDefinition{}
	for _, m := range PredefinedMeasures {
		if m.HospitalScoped {
			out = append(out, m)
		}
	}
	return out
}

// EvaluateMeasure runs one measure. Hospital admins are held to their own
// hospital and to hospital-scoped measures.
func (s *Service) EvaluateMeasure(ctx context.Context, actor *auth.Principal, id string, p Params) (*MeasureReport, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, apperr.NotFound("measure")
	}
	if !actor.IsAdmin() && !m.HospitalScoped {
		return nil, apperr.Forbidden("measure requires the admin role")
	}
	hospitalID, err := scope(actor, p.HospitalID)
	if err != nil {
		return nil, err
	}
	p.HospitalID = hospitalID
	if p.Start, p.End, err = s.resolveRange(p.Start, p.End, defaultRangeDays); err != nil {
		return nil, err
	}
	if p.Role != "" && !knownRoles[p.Role] {
		return nil, invalidRole()
	}

	rows, err := s.run(ctx, m, p)
	if err != nil {
		return nil, err
	}
	s.track(ctx, "generated", ReportMeasure)
	return &MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: s.now().UTC(),
		Results:     rows,
		Parameters:  p.describe(m.Parameters),
	}, nil
}

// HospitalStatistics builds the per-hospital report. Admins may pick any
// hospital or none; hospital admins always get their own.
func (s *Service) HospitalStatistics(ctx context.Context, actor *auth.Principal, hospitalID *uuid.UUID, start, end time.Time) (*HospitalStatistics, error) {
	id, err := scope(actor, hospitalID)
	if err != nil {
		return nil, err
	}
	p := Params{HospitalID: id}
	if p.Start, p.End, err = s.resolveRange(start, end, defaultRangeDays); err != nil {
		return nil, err
	}

	overview, err := s.runID(ctx, "hospital-overview", p)
	if err != nil {
		return nil, err
	}
	if id != nil && len(overview) == 0 {
		return nil, apperr.NotFound("hospital")
	}
	statuses, err := s.runID(ctx, "appointment-status", p)
	if err != nil {
		return nil, err
	}
	emergencies, err := s.runID(ctx, "emergency-types", p)
	if err != nil {
		return nil, err
	}
	trends, err := s.runID(ctx, "monthly-trends", p)
	if err != nil {
		return nil, err
	}

	report := &HospitalStatistics{
		GeneratedAt:   s.now().UTC(),
		DateRange:     DateRange{Start: p.Start, End: p.End},
		Hospitals:     make([]HospitalStats, 0, len(overview)),
		MonthlyTrends: make([]MonthlyTrend, 0, len(trends)),
	}
	for _, row := range overview {
		hid := row.String("hospital_id")
		hs := HospitalStats{
			HospitalID:      hid,
			Name:            row.String("name"),
			Location:        row.String("location"),
			Type:            row.String("hospital_type"),
			OPDStatus:       row.String("opd_status"),
			BedAvailability: row.Int("bed_availability"),
			TotalFloors:     row.Int("total_floors"),
			TotalWards:      row.Int("total_wards"),
			TotalBeds:       row.Int("total_beds"),
			OccupiedBeds:    row.Int("occupied_beds"),
			VacantBeds:      row.Int("vacant_beds"),
			Appointments:    appointmentStats(hid, statuses),
			Emergencies:     emergencyStats(hid, emergencies),
		}
		hs.BedOccupancy = rate(hs.OccupiedBeds, hs.TotalBeds)
		report.Hospitals = append(report.Hospitals, hs)
	}
	for _, row := range trends {
		report.MonthlyTrends = append(report.MonthlyTrends, MonthlyTrend{
			Month:        row.String("month"),
			Appointments: row.Int("appointments"),
			Emergencies:  row.Int("emergencies"),
		})
	}

	if id == nil {
		if report.SystemWide, err = s.systemWide(ctx, p); err != nil {
			return nil, err
		}
	}
	s.track(ctx, "generated", ReportHospitalStatistics)
	return report, nil
}

func appointmentStats(hospitalID string, rows []Row) AppointmentStats {
	st := AppointmentStats{}
	for _, r := range rows {
		if r.String("hospital_id") != hospitalID {
			continue
		}
		n := r.Int("total")
		st.Total += n
		switch r.String("status") {
		case "pending":
			st.Pending = n
		case "confirmed":
			st.Confirmed = n
		case "completed":
			st.Completed = n
		case "cancelled":
			st.Cancelled = n
		case "no_show":
			st.NoShow = n
		}
	}
	st.CompletionRate = rate(st.Completed, st.Total)
	return st
}

func emergencyStats(hospitalID string, rows []Row) EmergencyStats {
	st := EmergencyStats{Types: []TypeCount{}}
	for _, r := range rows {
		if r.String("hospital_id") != hospitalID {
			continue
		}
		st.Total += r.Int("total")
		st.Pending += r.Int("pending")
		st.Resolved += r.Int("resolved")
		st.Types = append(st.Types, TypeCount{Type: r.String("emergency_type"), Count: r.Int("total")})
	}
	st.ResolutionRate = rate(st.Resolved, st.Total)
	return st
}

func (s *Service) systemWide(ctx context.Context, p Params) (*SystemWide, error) {
	sw := &SystemWide{}
	var err error
	if sw.UserRoles, err = s.distribution(ctx, "user-role-distribution", p, "role"); err != nil {
		return nil, err
	}
	if sw.HospitalTypes, err = s.distribution(ctx, "hospital-type-distribution", p, "hospital_type"); err != nil {
		return nil, err
	}
	if sw.HospitalLocations, err = s.distribution(ctx, "hospital-locations", p, "location"); err != nil {
		return nil, err
	}

	rows, err := s.runID(ctx, "blood-request-status", p)
	if err != nil {
		return nil, err
	}
	groups := map[string]int64{}
	for _, r := range rows {
		n := r.Int("total")
		sw.BloodRequests.Total += n
		sw.BloodRequests.Units += r.Int("units")
		groups[r.String("blood_group")] += n
		switch r.String("status") {
		case "pending":
			sw.BloodRequests.Pending += n
		case "fulfilled":
			sw.BloodRequests.Fulfilled += n
		}
	}
	sw.BloodRequests.FulfillmentRate = rate(sw.BloodRequests.Fulfilled, sw.BloodRequests.Total)
	sw.BloodRequests.ByBloodGroup = groups
	return sw, nil
}

func (s *Service) distribution(ctx context.Context, id string, p Params, key string) (map[string]int64, error) {
	rows, err := s.runID(ctx, id, p)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.String(key)] = r.Int("total")
	}
	return out, nil
}

// UserActivity reports registrations and activity per user, optionally for
// one role. At most 100 users are listed, most active first.
func (s *Service) UserActivity(ctx context.Context, role string, start, end time.Time) (*UserActivityReport, error) {
	if role != "" && !knownRoles[role] {
		return nil, invalidRole()
	}
	p := Params{Role: role}
	var err error
	if p.Start, p.End, err = s.resolveRange(start, end, defaultRangeDays); err != nil {
		return nil, err
	}

	summary, err := s.activitySummary(ctx, p)
	if err != nil {
		return nil, err
	}
	rows, err := s.runID(ctx, "user-activity", p)
	if err != nil {
		return nil, err
	}

	report := &UserActivityReport{
		GeneratedAt: s.now().UTC(),
		DateRange:   DateRange{Start: p.Start, End: p.End},
		Role:        role,
		Summary:     summary,
		Users:       make([]UserActivity, 0, len(rows)),
	}
	for _, r := range rows {
		report.Users = append(report.Users, UserActivity{
			UserID:    r.String("user_id"),
			Username:  r.String("username"),
			Fullname:  r.String("fullname"),
			Email:     r.String("email"),
			Role:      r.String("role"),
			CreatedAt: r.String("created_at"),
			Activity: Activity{
				AppointmentsMade:  r.Int("appointments_made"),
				EmergenciesLogged: r.Int("emergencies_logged"),
				BloodRequests:     r.Int("blood_requests"),
			},
		})
	}
	s.track(ctx, "generated", ReportUserActivity)
	return report, nil
}

func (s *Service) activitySummary(ctx context.Context, p Params) (ActivitySummary, error) {
	rows, err := s.runID(ctx, "activity-summary", p)
	if err != nil || len(rows) == 0 {
		return ActivitySummary{}, err
	}
	return ActivitySummary{
		TotalUsers:       rows[0].Int("total_users"),
		ActiveUsers:      rows[0].Int("active_users"),
		NewRegistrations: rows[0].Int("new_registrations"),
	}, nil
}

// Summary reports user activity and report usage over the last days.
func (s *Service) Summary(ctx context.Context, days int) (*AnalyticsSummary, error) {
	if days == 0 {
		days = defaultSummaryDays
	}
	if days < 1 || days > maxSummaryDays {
		return nil, apperr.ValidationFields("invalid days",
			map[string]string{"days": fmt.Sprintf("must be between 1 and %d", maxSummaryDays)})
	}
	end := s.now().UTC()
	p := Params{Start: end.Add(-time.Duration(days) * 24 * time.Hour), End: end}

	activity, err := s.activitySummary(ctx, p)
	if err != nil {
		return nil, err
	}
	generated, err := s.counters(ctx, "generated", p.Start)
	if err != nil {
		return nil, err
	}
	exported, err := s.counters(ctx, "exported", p.Start)
	if err != nil {
		return nil, err
	}

	out := &AnalyticsSummary{
		Days:            days,
		DateRange:       DateRange{Start: p.Start, End: p.End},
		Activity:        activity,
		ReportsByType:   generated,
		ExportsByFormat: exported,
	}
	var best int64
	for _, t := range sortedKeys(generated) {
		n := generated[t]
		out.TotalReportsGenerated += n
		if n > best {
			best, out.MostRequestedType = n, t
		}
	}
	return out, nil
}

// counters sums reports:<kind>:<day>:<name> counters from since's day on.
func (s *Service) counters(ctx context.Context, kind string, since time.Time) (map[string]int64, error) {
	keys, err := s.cache.Keys(ctx, counterPrefix+kind+":*")
	if err != nil {
		return nil, fmt.Errorf("list report counters: %w", err)
	}
	from := since.UTC().Format("20060102")
	out := map[string]int64{}
	for _, k := range keys {
		parts := strings.SplitN(strings.TrimPrefix(k, counterPrefix+kind+":"), ":", 2)
		if len(parts) != 2 || parts[0] < from {
			continue
		}
		var n int64
		ok, err := s.cache.Get(ctx, k, &n)
		if err != nil {
			return nil, fmt.Errorf("read report counter: %w", err)
		}
		if ok {
			out[parts[1]] += n
		}
	}
	return out, nil
}

// track counts a generated report or export for the analytics summary. A
// cache failure never fails the report itself.
func (s *Service) track(ctx context.Context, kind, name string) {
	key := counterPrefix + kind + ":" + s.now().UTC().Format("20060102") + ":" + name
	if _, err := s.cache.Incr(ctx, key, counterTTL); err != nil {
		s.logger.Warn().Err(err).Str("counter", key).Msg("failed to count report")
	}
}

// ExportCSV regenerates a report and renders it as CSV.
func (s *Service) ExportCSV(ctx context.Context, actor *auth.Principal, req ExportRequest) ([]byte, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch req.ReportType {
	case ReportHospitalStatistics:
		report, err := s.HospitalStatistics(ctx, actor, req.HospitalID, start, end)
		if err != nil {
			return nil, err
		}
		rows = hospitalRows(report)
	case ReportUserActivity:
		if !actor.IsAdmin() {
			return nil, apperr.Forbidden("user activity reports require the admin role")
		}
		report, err := s.UserActivity(ctx, req.Role, start, end)
		if err != nil {
			return nil, err
		}
		rows = userRows(report)
	case "":
		return nil, apperr.Required("report_type")
	default:
		return nil, apperr.ValidationFields("invalid report type", map[string]string{
			"report_type": "must be one of: " + ReportHospitalStatistics + ", " + ReportUserActivity,
		})
	}

	body, err := export.CSV(nil, rows)
	if err != nil {
		return nil, err
	}
	s.track(ctx, "exported", "csv")
	return body, nil
}

func reportPreamble(generatedAt time.Time, title string, header ...string) [][]string {
	return [][]string{
		{"Hospital Management System Report"},
		{"Generated At:", generatedAt.Format(time.RFC3339)},
		{""},
		{title},
		header,
	}
}

func hospitalRows(r *HospitalStatistics) [][]string {
	rows := reportPreamble(r.GeneratedAt, "Hospital Statistics",
		"Hospital Name", "Location", "Type", "Total Beds", "Bed Occupancy %",
		"Total Appointments", "Completion Rate %", "Total Emergencies", "Resolution Rate %")
	for _, h := range r.Hospitals {
		rows = append(rows, []string{
			h.Name, h.Location, h.Type, itoa(h.TotalBeds), ftoa(h.BedOccupancy),
			itoa(h.Appointments.Total), ftoa(h.Appointments.CompletionRate),
			itoa(h.Emergencies.Total), ftoa(h.Emergencies.ResolutionRate),
		})
	}
	return rows
}

func userRows(r *UserActivityReport) [][]string {
	rows := reportPreamble(r.GeneratedAt, "User Activity Report",
		"Username", "Full Name", "Email", "Role", "Registration Date",
		"Appointments Made", "Emergencies Logged", "Blood Requests")
	for _, u := range r.Users {
		rows = append(rows, []string{
			u.Username, u.Fullname, u.Email, u.Role, u.CreatedAt,
			itoa(u.Activity.AppointmentsMade), itoa(u.Activity.EmergenciesLogged), itoa(u.Activity.BloodRequests),
		})
	}
	return rows
}

func (s *Service) run(ctx context.Context, m *MeasureDefinition, p Params) ([]Row, error) {
	rows, err := s.eval.Evaluate(ctx, m.SQL, p.args(m.Parameters)...)
	if err != nil {
		return nil, fmt.Errorf("evaluate measure %s: %w", m.ID, err)
	}
	return rows, nil
}

func (s *Service) runID(ctx context.Context, id string, p Params) ([]Row, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, fmt.Errorf("measure %s is not defined", id)
	}
	return s.run(ctx, m, p)
}

// scope narrows a hospital filter to what actor may see.
func scope(actor *auth.Principal, requested *uuid.UUID) (*uuid.UUID, error) {
	if actor.IsAdmin() {
		return requested, nil
	}
	if actor == nil || actor.Role != auth.RoleHospitalAdmin || actor.HospitalID == nil {
		return nil, apperr.Forbidden("insufficient permissions")
	}
	if requested != nil && *requested != *actor.HospitalID {
		return nil, apperr.Forbidden("access denied to other hospital data")
	}
	own := *actor.HospitalID
	return &own, nil
}

func (s *Service) resolveRange(start, end time.Time, days int) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = s.now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-time.Duration(days) * 24 * time.Hour)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, apperr.ValidationFields("invalid date range",
			map[string]string{"start_date": "must not be after end_date"})
	}
	return start, end, nil
}

// ParseDate accepts RFC 3339 or YYYY-MM-DD. Empty input is the zero time.
func ParseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func parseDate(field, v string) (time.Time, error) {
	t, err := ParseDate(v)
	if err != nil {
		return time.Time{}, apperr.ValidationFields("invalid "+field,
			map[string]string{field: "must be RFC 3339 or YYYY-MM-DD"})
	}
	return t, nil
}

func invalidRole() error {
	return apperr.ValidationFields("invalid role filter", map[string]string{"role": "unknown role"})
}

// rate is part/total as a percentage rounded to two places.
func rate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*10000/float64(total)) / 100
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
