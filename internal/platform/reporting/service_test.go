package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/pkg/apperr"
)

type evalCall struct {
	measure string
	args    []interface{}
}

// fakeEvaluator answers each measure with canned rows.
type fakeEvaluator struct {
	rows  map[string][]Row
	err   error
	calls []evalCall
}

func (f *fakeEvaluator) Evaluate(_ context.Context, sql string, args ...interface{}) ([]Row, error) {
	id := ""
	for _, m := range PredefinedMeasures {
		if m.SQL == sql {
			id = m.ID
		}
	}
	f.calls = append(f.calls, evalCall{measure: id, args: args})
	if f.err != nil {
		return nil, f.err
	}
	if rows, ok := f.rows[id]; ok {
		return rows, nil
	}
	return []Row{}, nil
}

func (f *fakeEvaluator) call(id string) (evalCall, bool) {
	for _, c := range f.calls {
		if c.measure == id {
			return c, true
		}
	}
	return evalCall{}, false
}

var (
	fixedNow    = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	hospitalA   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	hospitalB   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	adminActor  = &auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin, Type: auth.TypeAdmin}
	hospitalAdm = &auth.Principal{ID: uuid.New(), Role: auth.RoleHospitalAdmin, Type: auth.TypeHospital, HospitalID: &hospitalA}
	plainUser   = &auth.Principal{ID: uuid.New(), Role: auth.RoleUser, Type: auth.TypeUser}
)

func newTestService(t *testing.T, rows map[string][]Row) (*Service, *fakeEvaluator, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore("test:")
	t.Cleanup(func() { _ = store.Close() })
	eval := &fakeEvaluator{rows: rows}
	svc := NewService(eval, store, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, eval, store
}

func sampleRows() map[string][]Row {
	return map[string][]Row{
		"hospital-overview": {
			{"hospital_id": hospitalA.String(), "name": "City Care", "location": "Pune", "hospital_type": "General",
				"opd_status": "Open", "bed_availability": int32(4), "total_floors": int64(2), "total_wards": int64(3),
				"total_beds": int64(8), "occupied_beds": int64(6), "vacant_beds": int64(2)},
			{"hospital_id": hospitalB.String(), "name": "North Wing", "location": "Nashik", "hospital_type": "Clinic",
				"opd_status": "Closed", "bed_availability": int32(0), "total_floors": int64(0), "total_wards": int64(0),
				"total_beds": int64(0), "occupied_beds": int64(0), "vacant_beds": int64(0)},
		},
		"appointment-status": {
			{"hospital_id": hospitalA.String(), "status": "completed", "total": int64(3)},
			{"hospital_id": hospitalA.String(), "status": "pending", "total": int64(1)},
			{"hospital_id": hospitalB.String(), "status": "cancelled", "total": int64(2)},
		},
		"emergency-types": {
			{"hospital_id": hospitalA.String(), "emergency_type": "cardiac", "total": int64(2), "pending": int64(1), "resolved": int64(1)},
			{"hospital_id": hospitalA.String(), "emergency_type": "trauma", "total": int64(1), "pending": int64(0), "resolved": int64(1)},
		},
		"monthly-trends": {
			{"month": "2026-02", "appointments": int64(4), "emergencies": int64(0)},
			{"month": "2026-03", "appointments": int64(2), "emergencies": int64(3)},
		},
		"user-role-distribution":     {{"role": "user", "total": int64(5)}, {"role": "doctor", "total": int64(2)}},
		"hospital-type-distribution": {{"hospital_type": "General", "total": int64(1)}},
		"hospital-locations":         {{"location": "Pune", "total": int64(1)}},
		"blood-request-status": {
			{"blood_group": "O+", "status": "fulfilled", "total": int64(3), "units": int64(6)},
			{"blood_group": "O+", "status": "pending", "total": int64(1), "units": int64(2)},
		},
		"activity-summary": {{"total_users": int64(7), "active_users": int64(3), "new_registrations": int64(2)}},
		"user-activity": {
			{"user_id": uuid.NewString(), "username": "asha", "fullname": "Asha Rao", "email": "asha@example.com",
				"role": "user", "created_at": fixedNow.Add(-48 * time.Hour),
				"appointments_made": int64(2), "emergencies_logged": int64(1), "blood_requests": int64(0)},
		},
	}
}

func TestFindMeasure(t *testing.T) {
	m := FindMeasure("hospital-overview")
	require.NotNil(t, m)
	assert.True(t, m.HospitalScoped)
	assert.Nil(t, FindMeasure("nonexistent"))
}

func TestPredefinedMeasures_ParametersMatchPlaceholders(t *testing.T) {
	for _, m := range PredefinedMeasures {
		for i := range m.Parameters {
			assert.Contains(t, m.SQL, "$"+string(rune('1'+i)), m.ID)
		}
		assert.NotContains(t, m.SQL, "$"+string(rune('1'+len(m.Parameters))), m.ID)
	}
}

func TestParams_Args(t *testing.T) {
	start := fixedNow.Add(-time.Hour)
	p := Params{Start: start, End: fixedNow, HospitalID: &hospitalA, Role: "doctor"}

	args := p.args([]string{ParamStart, ParamEnd, ParamHospitalID})
	require.Len(t, args, 3)
	assert.Equal(t, start, args[0])
	assert.Equal(t, fixedNow, args[1])
	assert.Equal(t, &hospitalA, args[2])

	assert.Equal(t, []interface{}{"doctor"}, p.args([]string{ParamRole}))
	assert.Equal(t, map[string]string{"hospital_id": hospitalA.String(), "role": "doctor"},
		p.describe([]string{ParamHospitalID, ParamRole}))
}

func TestRow_Accessors(t *testing.T) {
	r := Row{"a": int64(3), "b": int32(4), "c": "x", "d": fixedNow, "e": nil}
	assert.Equal(t, int64(3), r.Int("a"))
	assert.Equal(t, int64(4), r.Int("b"))
	assert.Equal(t, int64(0), r.Int("c"))
	assert.Equal(t, "x", r.String("c"))
	assert.Equal(t, "2026-03-15T12:00:00Z", r.String("d"))
	assert.Equal(t, "", r.String("e"))
	assert.Equal(t, "", r.String("missing"))
}

func TestMeasures_HospitalAdminSeesScopedOnly(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	assert.Len(t, svc.Measures(adminActor), len(PredefinedMeasures))
	for _, m := range svc.Measures(hospitalAdm) {
		assert.True(t, m.HospitalScoped, m.ID)
	}
	assert.NotEmpty(t, svc.Measures(hospitalAdm))
}

func TestEvaluateMeasure(t *testing.T) {
	svc, eval, _ := newTestService(t, sampleRows())

	report, err := svc.EvaluateMeasure(context.Background(), adminActor, "user-role-distribution", Params{})
	require.NoError(t, err)
	assert.Equal(t, "User Role Distribution", report.MeasureName)
	assert.Len(t, report.Results, 2)
	assert.Equal(t, fixedNow, report.GeneratedAt)

	_, err = svc.EvaluateMeasure(context.Background(), adminActor, "nope", Params{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	eval.err = errors.New("connection reset")
	_, err = svc.EvaluateMeasure(context.Background(), adminActor, "user-role-distribution", Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user-role-distribution")
}

func TestEvaluateMeasure_DefaultRange(t *testing.T) {
	svc, eval, _ := newTestService(t, nil)

	report, err := svc.EvaluateMeasure(context.Background(), adminActor, "appointment-daily", Params{})
	require.NoError(t, err)
	call, ok := eval.call("appointment-daily")
	require.True(t, ok)
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), call.args[0])
	assert.Equal(t, fixedNow, call.args[1])
	assert.Nil(t, call.args[2])
	assert.Equal(t, "2026-02-13T12:00:00Z", report.Parameters["start"])
}

func TestEvaluateMeasure_HospitalAdminScope(t *testing.T) {
	svc, eval, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.EvaluateMeasure(ctx, hospitalAdm, "appointment-status", Params{})
	require.NoError(t, err)
	call, _ := eval.call("appointment-status")
	assert.Equal(t, &hospitalA, call.args[2])

	_, err = svc.EvaluateMeasure(ctx, hospitalAdm, "appointment-status", Params{HospitalID: &hospitalB})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.EvaluateMeasure(ctx, hospitalAdm, "user-activity", Params{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.EvaluateMeasure(ctx, plainUser, "appointment-status", Params{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestEvaluateMeasure_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.EvaluateMeasure(ctx, adminActor, "appointment-daily", Params{Start: fixedNow, End: fixedNow.Add(-time.Hour)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.EvaluateMeasure(ctx, adminActor, "user-activity", Params{Role: "wizard"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestHospitalStatistics_AllHospitals(t *testing.T) {
	svc, _, _ := newTestService(t, sampleRows())

	report, err := svc.HospitalStatistics(context.Background(), adminActor, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, report.Hospitals, 2)

	a := report.Hospitals[0]
	assert.Equal(t, "City Care", a.Name)
	assert.Equal(t, int64(4), a.BedAvailability)
	assert.Equal(t, 75.0, a.BedOccupancy)
	assert.Equal(t, int64(4), a.Appointments.Total)
	assert.Equal(t, int64(3), a.Appointments.Completed)
	assert.Equal(t, 75.0, a.Appointments.CompletionRate)
	assert.Equal(t, int64(3), a.Emergencies.Total)
	assert.Equal(t, 66.67, a.Emergencies.ResolutionRate)
	assert.Len(t, a.Emergencies.Types, 2)

	b := report.Hospitals[1]
	assert.Equal(t, 0.0, b.BedOccupancy)
	assert.Equal(t, int64(2), b.Appointments.Cancelled)
	assert.Equal(t, 0.0, b.Appointments.CompletionRate)
	assert.Empty(t, b.Emergencies.Types)

	assert.Len(t, report.MonthlyTrends, 2)
	require.NotNil(t, report.SystemWide)
	assert.Equal(t, int64(5), report.SystemWide.UserRoles["user"])
	assert.Equal(t, int64(4), report.SystemWide.BloodRequests.Total)
	assert.Equal(t, int64(8), report.SystemWide.BloodRequests.Units)
	assert.Equal(t, 75.0, report.SystemWide.BloodRequests.FulfillmentRate)
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), report.DateRange.Start)
}

func TestHospitalStatistics_HospitalAdmin(t *testing.T) {
	rows := sampleRows()
	rows["hospital-overview"] = rows["hospital-overview"][:1]
	svc, eval, _ := newTestService(t, rows)

	report, err := svc.HospitalStatistics(context.Background(), hospitalAdm, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, report.Hospitals, 1)
	assert.Nil(t, report.SystemWide)
	call, _ := eval.call("hospital-overview")
	assert.Equal(t, &hospitalA, call.args[0])
	_, ranSystemWide := eval.call("user-role-distribution")
	assert.False(t, ranSystemWide)

	_, err = svc.HospitalStatistics(context.Background(), hospitalAdm, &hospitalB, time.Time{}, time.Time{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Contains(t, err.Error(), "access denied to other hospital data")
}

func TestHospitalStatistics_UnknownHospital(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	missing := uuid.New()
	_, err := svc.HospitalStatistics(context.Background(), adminActor, &missing, time.Time{}, time.Time{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUserActivity(t *testing.T) {
	svc, eval, _ := newTestService(t, sampleRows())

	report, err := svc.UserActivity(context.Background(), auth.RoleUser, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, ActivitySummary{TotalUsers: 7, ActiveUsers: 3, NewRegistrations: 2}, report.Summary)
	require.Len(t, report.Users, 1)
	assert.Equal(t, "asha", report.Users[0].Username)
	assert.Equal(t, int64(2), report.Users[0].Activity.AppointmentsMade)
	assert.Equal(t, "2026-03-13T12:00:00Z", report.Users[0].CreatedAt)

	call, _ := eval.call("user-activity")
	assert.Equal(t, auth.RoleUser, call.args[2])

	_, err = svc.UserActivity(context.Background(), "wizard", time.Time{}, time.Time{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSummary_CountsReports(t *testing.T) {
	svc, _, store := newTestService(t, sampleRows())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.HospitalStatistics(ctx, adminActor, nil, time.Time{}, time.Time{})
		require.NoError(t, err)
	}
	_, err := svc.UserActivity(ctx, "", time.Time{}, time.Time{})
	require.NoError(t, err)
	_, err = svc.ExportCSV(ctx, adminActor, ExportRequest{ReportType: ReportUserActivity})
	require.NoError(t, err)
	// Outside the window.
	_, err = store.Incr(ctx, "reports:generated:20250101:user_activity", time.Hour)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Days)
	assert.Equal(t, int64(7), summary.Activity.TotalUsers)
	assert.Equal(t, int64(4), summary.TotalReportsGenerated)
	assert.Equal(t, map[string]int64{ReportHospitalStatistics: 2, ReportUserActivity: 2}, summary.ReportsByType)
	assert.Equal(t, map[string]int64{"csv": 1}, summary.ExportsByFormat)
	assert.Equal(t, ReportHospitalStatistics, summary.MostRequestedType)

	_, err = svc.Summary(ctx, 365)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Summary(ctx, -1)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func readCSV(t *testing.T, body []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportCSV_HospitalStatistics(t *testing.T) {
	svc, _, _ := newTestService(t, sampleRows())

	body, err := svc.ExportCSV(context.Background(), adminActor, ExportRequest{
		ReportType: ReportHospitalStatistics, StartDate: "2026-03-01", EndDate: "2026-03-15",
	})
	require.NoError(t, err)

	records := readCSV(t, body)
	assert.Equal(t, []string{"Hospital Management System Report"}, records[0])
	assert.Equal(t, []string{"Generated At:", "2026-03-15T12:00:00Z"}, records[1])
	// The blank spacer line is skipped by the reader.
	assert.Equal(t, []string{"Hospital Statistics"}, records[2])
	assert.Equal(t, "Hospital Name", records[3][0])
	assert.Equal(t, []string{"City Care", "Pune", "General", "8", "75.00", "4", "75.00", "3", "66.67"}, records[4])
	assert.Len(t, records, 6)
}

func TestExportCSV_Rejects(t *testing.T) {
	svc, _, _ := newTestService(t, sampleRows())
	ctx := context.Background()

	_, err := svc.ExportCSV(ctx, hospitalAdm, ExportRequest{ReportType: ReportUserActivity})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.ExportCSV(ctx, adminActor, ExportRequest{ReportType: "pdf"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.ExportCSV(ctx, adminActor, ExportRequest{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.ExportCSV(ctx, adminActor, ExportRequest{ReportType: ReportHospitalStatistics, StartDate: "soon"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
