package doctor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/apperr"
)

type Service struct {
	tx        db.TxRunner
	doctors   Repository
	schedules ScheduleRepository
}

func NewService(tx db.TxRunner, doctors Repository, schedules ScheduleRepository) *Service {
	return &Service{tx: tx, doctors: doctors, schedules: schedules}
}

func (s *Service) RegisterDoctor(ctx context.Context, req RegisterRequest) (*Doctor, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "name is required"
	}
	if strings.TrimSpace(req.Mail) == "" {
		fields["mail"] = "mail is required"
	} else if !auth.ValidateEmail(strings.TrimSpace(req.Mail)) {
		fields["mail"] = "invalid email format"
	}
	if req.Phone != nil && *req.Phone != "" && !auth.ValidatePhone(*req.Phone) {
		fields["phone"] = "invalid phone number format"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("validation failed", fields)
	}

	d := &Doctor{
		Name:           strings.TrimSpace(req.Name),
		Mail:           strings.TrimSpace(req.Mail),
		Specialisation: req.Specialisation,
		Phone:          req.Phone,
		Availability:   true,
	}
	if req.Availability != nil {
		d.Availability = *req.Availability
	}
	if req.UserID != "" {
		uid, err := uuid.Parse(req.UserID)
		if err != nil {
			return nil, apperr.Validation("invalid user_id")
		}
		d.UserID = &uid
	}
	hospitalIDs := make([]uuid.UUID, 0, len(req.HospitalIDs))
	for _, raw := range req.HospitalIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("invalid hospital id: " + raw)
		}
		hospitalIDs = append(hospitalIDs, id)
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.doctors.Create(ctx, d); err != nil {
			return err
		}
		for _, hid := range hospitalIDs {
			if err := s.doctors.LinkHospital(ctx, d.ID, hid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if d.Hospitals, err = s.doctors.Hospitals(ctx, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.Search(ctx, params, limit, offset)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Hospitals, err = s.doctors.Hospitals(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		d.Name = strings.TrimSpace(*req.Name)
	}
	if req.Mail != nil {
		if !auth.ValidateEmail(*req.Mail) {
			return nil, apperr.ValidationFields("validation failed", map[string]string{"mail": "invalid email format"})
		}
		d.Mail = *req.Mail
	}
	if req.Phone != nil {
		if *req.Phone != "" && !auth.ValidatePhone(*req.Phone) {
			return nil, apperr.ValidationFields("validation failed", map[string]string{"phone": "invalid phone number format"})
		}
		d.Phone = req.Phone
	}
	if req.Specialisation != nil {
		d.Specialisation = req.Specialisation
	}
	if req.Availability != nil {
		d.Availability = *req.Availability
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) LinkHospital(ctx context.Context, doctorID uuid.UUID, req LinkHospitalRequest) (*Doctor, error) {
	hid, err := uuid.Parse(req.HospitalID)
	if err != nil {
		return nil, apperr.Validation("invalid hospital_id")
	}
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	if err := s.doctors.LinkHospital(ctx, doctorID, hid); err != nil {
		return nil, err
	}
	return s.GetDoctor(ctx, doctorID)
}

// -- Schedules --

func parseClock(v string) (time.Time, bool) {
	t, err := time.Parse("15:04", v)
	return t, err == nil
}

func (s *Service) CreateSchedule(ctx context.Context, actor *auth.Principal, req ScheduleRequest) (*Schedule, error) {
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, apperr.Validation("invalid doctor_id")
	}
	hospitalID, err := uuid.Parse(req.HospitalID)
	if err != nil {
		return nil, apperr.Validation("invalid hospital_id")
	}
	if req.DayOfWeek == nil {
		return nil, apperr.Required("day_of_week")
	}
	if *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
		return nil, apperr.Validation("day_of_week must be between 0 and 6")
	}
	start, ok := parseClock(req.StartTime)
	if !ok {
		return nil, apperr.Validation("start_time must be HH:MM")
	}
	end, ok := parseClock(req.EndTime)
	if !ok {
		return nil, apperr.Validation("end_time must be HH:MM")
	}
	if !start.Before(end) {
		return nil, apperr.Validation("start_time must be before end_time")
	}

	d, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (d.UserID == nil || *d.UserID != actor.ID) {
		return nil, apperr.Forbidden("doctors can only manage their own schedule")
	}
	hospitals, err := s.doctors.Hospitals(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	linked := false
	for _, h := range hospitals {
		if h.ID == hospitalID {
			linked = true
			break
		}
	}
	if !linked {
		return nil, apperr.Validation("doctor is not associated with this hospital")
	}

	sched := &Schedule{
		DoctorID:   doctorID,
		HospitalID: hospitalID,
		DayOfWeek:  *req.DayOfWeek,
		StartTime:  start.Format("15:04"),
		EndTime:    end.Format("15:04"),
		Notes:      req.Notes,
	}
	if req.SpecificDate != "" {
		date, err := time.Parse("2006-01-02", req.SpecificDate)
		if err != nil {
			return nil, apperr.Validation("specific_date must be YYYY-MM-DD")
		}
		sched.SpecificDate = &date
	}
	if err := s.schedules.Create(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

func (s *Service) ListSchedule(ctx context.Context, doctorID uuid.UUID) ([]*Schedule, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.schedules.ListByDoctor(ctx, doctorID)
}
