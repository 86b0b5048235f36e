package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/admin"
	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/doctor"
	"github.com/hms/hms/internal/domain/emergency"
	"github.com/hms/hms/internal/domain/hospital"
	"github.com/hms/hms/internal/domain/user"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/apperr"
)

type StatsSource interface {
	DashboardStats(ctx context.Context) (*admin.DashboardStats, error)
}

type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*user.User, int, error)
}

type HospitalSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*hospital.Hospital, error)
	Summary(ctx context.Context, id uuid.UUID) (*hospital.Summary, error)
}

type DoctorSource interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error)
}

type AppointmentSource interface {
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*appointment.Appointment, int, error)
}

type EmergencySource interface {
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*emergency.Emergency, int, error)
}

type Service struct {
	stats        StatsSource
	users        UserSource
	hospitals    HospitalSource
	doctors      DoctorSource
	appointments AppointmentSource
	emergencies  EmergencySource
	now          func() time.Time
}

func NewService(stats StatsSource, users UserSource, hospitals HospitalSource, doctors DoctorSource,
	appointments AppointmentSource, emergencies EmergencySource) *Service {
	return &Service{
		stats: stats, users: users, hospitals: hospitals, doctors: doctors,
		appointments: appointments, emergencies: emergencies, now: time.Now,
	}
}

// ForPrincipal builds the dashboard matching the caller's role.
func (s *Service) ForPrincipal(ctx context.Context, p *auth.Principal) (*Dashboard, error) {
	d := &Dashboard{Role: p.Role}
	var err error
	switch {
	case p.IsAdmin():
		d.Admin, err = s.adminDashboard(ctx)
	case p.Role == auth.RoleHospitalAdmin:
		d.Hospital, err = s.hospitalDashboard(ctx, p)
	case p.Role == auth.RoleDoctor:
		d.Doctor, err = s.doctorDashboard(ctx, p)
	default:
		d.User, err = s.userDashboard(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) adminDashboard(ctx context.Context) (*AdminDashboard, error) {
	stats, err := s.stats.DashboardStats(ctx)
	if err != nil {
		return nil, err
	}
	users, _, err := s.users.Search(ctx, map[string]string{}, adminRecentLimit, 0)
	if err != nil {
		return nil, err
	}
	appts, _, err := s.appointments.Search(ctx, map[string]string{}, adminRecentLimit, 0)
	if err != nil {
		return nil, err
	}
	emergencies, _, err := s.emergencies.Search(ctx, map[string]string{}, adminRecentLimit, 0)
	if err != nil {
		return nil, err
	}
	return &AdminDashboard{
		Stats:              stats,
		RecentUsers:        nonNil(users),
		RecentAppointments: nonNil(appts),
		RecentEmergencies:  nonNil(emergencies),
	}, nil
}

func (s *Service) hospitalDashboard(ctx context.Context, p *auth.Principal) (*HospitalDashboard, error) {
	if p.HospitalID == nil {
		return nil, apperr.Forbidden("no hospital is linked to this account")
	}
	id := *p.HospitalID
	h, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	layout, err := s.hospitals.Summary(ctx, id)
	if err != nil {
		return nil, err
	}

	var counts AppointmentCounts
	for _, q := range []struct {
		params map[string]string
		dest   *int
	}{
		{map[string]string{}, &counts.Total},
		{map[string]string{"status": appointment.StatusPending}, &counts.Pending},
		{map[string]string{"date": s.now().UTC().Format("2006-01-02")}, &counts.Today},
	} {
		q.params["hospital_id"] = id.String()
		_, n, err := s.appointments.Search(ctx, q.params, 1, 0)
		if err != nil {
			return nil, err
		}
		*q.dest = n
	}
	return &HospitalDashboard{Hospital: h, Appointments: counts, Layout: layout}, nil
}

func (s *Service) doctorDashboard(ctx context.Context, p *auth.Principal) (*DoctorDashboard, error) {
	d, err := s.doctors.GetByUserID(ctx, p.ID)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("doctor profile")
	}
	if err != nil {
		return nil, err
	}
	recent, total, upcoming, err := s.appointmentLists(ctx, "doctor_id", d.ID, doctorRecentLimit)
	if err != nil {
		return nil, err
	}
	return &DoctorDashboard{Doctor: d, TotalAppointments: total, Upcoming: upcoming, Recent: recent}, nil
}

func (s *Service) userDashboard(ctx context.Context, p *auth.Principal) (*UserDashboard, error) {
	u, err := s.users.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	recent, total, upcoming, err := s.appointmentLists(ctx, "patient_id", u.ID, userRecentLimit)
	if err != nil {
		return nil, err
	}
	return &UserDashboard{Profile: u, TotalAppointments: total, Upcoming: upcoming, Recent: recent}, nil
}

func (s *Service) appointmentLists(ctx context.Context, key string, id uuid.UUID, recentLimit int) (recent []*appointment.Appointment, total int, upcoming []*appointment.Appointment, err error) {
	recent, total, err = s.appointments.Search(ctx, map[string]string{key: id.String()}, recentLimit, 0)
	if err != nil {
		return nil, 0, nil, err
	}
	upcoming, _, err = s.appointments.Search(ctx, map[string]string{key: id.String(), "upcoming": "true"}, upcomingLimit, 0)
	if err != nil {
		return nil, 0, nil, err
	}
	return nonNil(recent), total, nonNil(upcoming), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
