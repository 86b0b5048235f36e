package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/websocket"
	"github.com/hms/hms/pkg/apperr"
	"github.com/hms/hms/pkg/refcode"
)

const availableSlotLimit = 50

// EventPublisher pushes realtime appointment updates.
type EventPublisher interface {
	NotifyUser(ctx context.Context, userID, eventType string, data interface{}) error
	NotifyHospital(ctx context.Context, hospitalID, eventType string, data interface{}) error
}

// Notifier stores an in-app notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string, meta map[string]interface{}) error
}

type Service struct {
	tx           db.TxRunner
	opds         OPDRepository
	slots        SlotRepository
	reservations ReservationRepository
	appointments AppointmentRepository
	events       EventPublisher
	notifier     Notifier
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(tx db.TxRunner, opds OPDRepository, slots SlotRepository, reservations ReservationRepository,
	appointments AppointmentRepository, events EventPublisher, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		tx: tx, opds: opds, slots: slots, reservations: reservations, appointments: appointments,
		events: events, notifier: notifier, logger: logger, now: time.Now,
	}
}

func canManage(p *auth.Principal, hospitalID uuid.UUID) bool {
	return p.IsAdmin() || p.OwnsHospital(hospitalID)
}

// -- OPD --

func (s *Service) CreateOPD(ctx context.Context, actor *auth.Principal, req CreateOPDRequest) (*OPD, error) {
	if strings.TrimSpace(req.Department) == "" {
		return nil, apperr.Required("department")
	}
	var hospitalID uuid.UUID
	switch {
	case req.HospitalID != "":
		id, err := uuid.Parse(req.HospitalID)
		if err != nil {
			return nil, apperr.Validation("invalid hospital_id")
		}
		hospitalID = id
	case actor.HospitalID != nil:
		hospitalID = *actor.HospitalID
	default:
		return nil, apperr.Required("hospital_id")
	}
	if !canManage(actor, hospitalID) {
		return nil, apperr.Forbidden("you can only manage your own hospital")
	}
	exists, err := s.opds.HospitalExists(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("hospital")
	}

	o := &OPD{
		HospitalID:  hospitalID,
		Department:  strings.TrimSpace(req.Department),
		Shift:       req.Shift,
		FromTime:    req.FromTime,
		ToTime:      req.ToTime,
		FromDay:     req.FromDay,
		ToDay:       req.ToDay,
		Description: req.Description,
	}
	if err := s.opds.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) CreateSlot(ctx context.Context, actor *auth.Principal, opdID uuid.UUID, req CreateSlotRequest) (*Slot, error) {
	o, err := s.opds.GetByID(ctx, opdID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, o.HospitalID) {
		return nil, apperr.Forbidden("you can only manage your own hospital")
	}
	if req.SlotStart.IsZero() || req.SlotEnd.IsZero() {
		return nil, apperr.Validation("slot_start and slot_end are required")
	}
	if !req.SlotStart.Before(req.SlotEnd) {
		return nil, apperr.Validation("slot_start must be before slot_end")
	}
	capacity := 1
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	if capacity < 1 {
		return nil, apperr.Validation("capacity must be at least 1")
	}

	slot := &Slot{
		OPDID:      o.ID,
		SlotCode:   refcode.New("SLOT", s.now(), 8),
		SlotStart:  req.SlotStart,
		SlotEnd:    req.SlotEnd,
		Capacity:   capacity,
		HospitalID: o.HospitalID,
		Department: o.Department,
	}
	if req.DoctorID != "" {
		id, err := uuid.Parse(req.DoctorID)
		if err != nil {
			return nil, apperr.Validation("invalid doctor_id")
		}
		slot.DoctorID = &id
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *Service) AvailableSlots(ctx context.Context, q SlotQuery) ([]*AvailableSlot, error) {
	q.After = s.now()
	q.Limit = availableSlotLimit
	return s.slots.Available(ctx, q)
}

// -- Booking --

func (s *Service) Book(ctx context.Context, actor *auth.Principal, req BookRequest) (*Appointment, error) {
	if req.HospitalID == "" {
		return nil, apperr.Required("hospital_id")
	}
	if req.SlotID == "" {
		return nil, apperr.Required("slot_id")
	}
	hospitalID, err := uuid.Parse(req.HospitalID)
	if err != nil {
		return nil, apperr.Validation("invalid hospital_id")
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		return nil, apperr.Validation("invalid slot_id")
	}
	patientID, err := s.patientFor(actor, hospitalID, req.PatientID)
	if err != nil {
		return nil, err
	}

	var appt *Appointment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.opds.HospitalExists(ctx, hospitalID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("hospital")
		}
		slot, err := s.slots.GetForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.HospitalID != hospitalID {
			return apperr.Validation("slot does not belong to this hospital")
		}
		if slot.SlotStart.Before(s.now()) {
			return apperr.Validation("cannot book a slot in the past")
		}
		if slot.Occupancy >= slot.Capacity {
			return apperr.Conflict("slot is full")
		}
		dup, err := s.appointments.HasActiveForSlot(ctx, patientID, slot.ID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict("an appointment for this slot already exists")
		}

		appt = &Appointment{
			Type:          TypeOPD,
			PatientID:     patientID,
			HospitalID:    hospitalID,
			DoctorID:      slot.DoctorID,
			SlotID:        &slot.ID,
			BookedBy:      actor.ID,
			Status:        StatusConfirmed,
			ScheduledTime: slot.SlotStart,
			Reason:        req.Reason,
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return err
		}
		if err := s.reservations.Create(ctx, &Reservation{SlotID: slot.ID, UserID: patientID, Reason: req.Reason}); err != nil {
			return err
		}
		return s.slots.SetOccupancy(ctx, slot.ID, slot.Occupancy+1)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, appt, "booked")
	s.notify(ctx, appt.PatientID, "Appointment confirmed",
		fmt.Sprintf("Your appointment is confirmed for %s.", appt.ScheduledTime.UTC().Format("2006-01-02 15:04 MST")),
		appt)
	return appt, nil
}

// patientFor resolves whom a booking is for. Users book for themselves;
// staff may book on behalf of a patient.
func (s *Service) patientFor(actor *auth.Principal, hospitalID uuid.UUID, raw string) (uuid.UUID, error) {
	if raw == "" {
		if actor.Type != auth.TypeUser {
			return uuid.Nil, apperr.Required("patient_id")
		}
		return actor.ID, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid patient_id")
	}
	if id != actor.ID && !canManage(actor, hospitalID) {
		return uuid.Nil, apperr.Forbidden("you cannot book on behalf of another patient")
	}
	return id, nil
}

func (s *Service) canView(actor *auth.Principal, a *Appointment) bool {
	switch {
	case actor.IsAdmin(), actor.OwnsHospital(a.HospitalID):
		return true
	case actor.Role == auth.RoleDoctor:
		return true
	}
	return actor.Type == auth.TypeUser && actor.ID == a.PatientID
}

func (s *Service) GetAppointment(ctx context.Context, actor *auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(actor, a) {
		return nil, apperr.Forbidden("access denied")
	}
	return a, nil
}

func (s *Service) UpdateAppointment(ctx context.Context, actor *auth.Principal, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	if req.Status != nil && !validStatus(*req.Status) {
		return nil, apperr.Validation("status must be one of: " + strings.Join(statuses, ", "))
	}

	var appt *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !s.canView(actor, a) {
			return apperr.Forbidden("access denied")
		}
		isPatientOnly := actor.ID == a.PatientID && !actor.IsAdmin() && !actor.OwnsHospital(a.HospitalID) && actor.Role != auth.RoleDoctor
		if isPatientOnly && req.Status != nil && *req.Status != StatusCancelled {
			return apperr.Forbidden("patients can only cancel appointments")
		}

		// Only a live booking holds a place in its slot.
		holdsSlot := a.Status == StatusPending || a.Status == StatusConfirmed
		freeSlot := req.Status != nil && *req.Status == StatusCancelled && holdsSlot
		if req.Status != nil {
			a.Status = *req.Status
		}
		if req.Reason != nil {
			a.Reason = req.Reason
		}
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		if freeSlot {
			if err := s.releaseSlot(ctx, a); err != nil {
				return err
			}
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, appt, "updated")
	return appt, nil
}

func (s *Service) CancelAppointment(ctx context.Context, actor *auth.Principal, id uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !actor.OwnsHospital(a.HospitalID) && actor.ID != a.PatientID {
			return apperr.Forbidden("access denied")
		}
		if a.Status != StatusPending && a.Status != StatusConfirmed {
			return apperr.Validation("only pending or confirmed appointments can be cancelled")
		}
		a.Status = StatusCancelled
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		if err := s.releaseSlot(ctx, a); err != nil {
			return err
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, appt, "cancelled")
	return appt, nil
}

// releaseSlot gives the patient's place in the slot back.
func (s *Service) releaseSlot(ctx context.Context, a *Appointment) error {
	if a.SlotID == nil {
		return nil
	}
	slot, err := s.slots.GetForUpdate(ctx, *a.SlotID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	occupancy := slot.Occupancy - 1
	if occupancy < 0 {
		occupancy = 0
	}
	if err := s.slots.SetOccupancy(ctx, slot.ID, occupancy); err != nil {
		return err
	}
	return s.reservations.DeleteBySlotAndUser(ctx, slot.ID, a.PatientID)
}

func checkStatusFilter(params map[string]string) error {
	if v := params["status"]; v != "" && !validStatus(v) {
		return apperr.ValidationFields("invalid status filter", map[string]string{
			"status": "must be one of: " + strings.Join(statuses, ", "),
		})
	}
	return nil
}

func (s *Service) MyAppointments(ctx context.Context, actor *auth.Principal, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	if err := checkStatusFilter(params); err != nil {
		return nil, 0, err
	}
	params["patient_id"] = actor.ID.String()
	return s.appointments.Search(ctx, params, limit, offset)
}

func (s *Service) HospitalAppointments(ctx context.Context, actor *auth.Principal, hospitalID uuid.UUID, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	if !actor.IsAdmin() && actor.Role != auth.RoleDoctor && !actor.OwnsHospital(hospitalID) {
		return nil, 0, apperr.Forbidden("access denied")
	}
	if err := checkStatusFilter(params); err != nil {
		return nil, 0, err
	}
	exists, err := s.opds.HospitalExists(ctx, hospitalID)
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, apperr.NotFound("hospital")
	}
	params["hospital_id"] = hospitalID.String()
	return s.appointments.Search(ctx, params, limit, offset)
}

func (s *Service) publish(ctx context.Context, a *Appointment, action string) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"action":         action,
		"appointment_id": a.ID,
		"status":         a.Status,
		"hospital_id":    a.HospitalID,
		"scheduled_time": a.ScheduledTime,
	}
	if err := s.events.NotifyUser(ctx, a.PatientID.String(), websocket.EventAppointmentUpdate, payload); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to push appointment update to patient")
	}
	if err := s.events.NotifyHospital(ctx, a.HospitalID.String(), websocket.EventAppointmentUpdate, payload); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to push appointment update to hospital")
	}
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, title, body string, a *Appointment) {
	if s.notifier == nil {
		return
	}
	meta := map[string]interface{}{"type": "appointment", "appointment_id": a.ID.String()}
	if err := s.notifier.Notify(ctx, userID, title, body, meta); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to store appointment notification")
	}
}
