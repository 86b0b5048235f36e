package emergency

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/websocket"
	"github.com/hms/hms/pkg/apperr"
)

// EventPublisher pushes emergency alerts to connected staff.
type EventPublisher interface {
	NotifyRole(ctx context.Context, role, eventType string, data interface{}) error
	NotifyHospital(ctx context.Context, hospitalID, eventType string, data interface{}) error
}

// Renderer fills a notification template.
type Renderer interface {
	Render(id string, vars map[string]string) (title, body string, err error)
}

type Service struct {
	emergencies Repository
	ambulances  AmbulanceRepository
	events      EventPublisher
	templates   Renderer
	logger      zerolog.Logger
}

func NewService(emergencies Repository, ambulances AmbulanceRepository, events EventPublisher, templates Renderer, logger zerolog.Logger) *Service {
	return &Service{emergencies: emergencies, ambulances: ambulances, events: events, templates: templates, logger: logger}
}

func (s *Service) parseHospital(ctx context.Context, raw string) (*uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid hospital_id")
	}
	exists, err := s.emergencies.HospitalExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("hospital")
	}
	return &id, nil
}

// -- Emergencies --

func (s *Service) Call(ctx context.Context, caller Caller, req CallRequest) (*Emergency, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.EmergencyType) == "" {
		fields["emergency_type"] = "emergency_type is required"
	}
	if strings.TrimSpace(req.Location) == "" {
		fields["location"] = "location is required"
	}
	if req.ContactNumber == "" {
		fields["contact_number"] = "contact_number is required"
	} else if !auth.ValidatePhone(req.ContactNumber) {
		fields["contact_number"] = "invalid phone number format"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("validation failed", fields)
	}

	e := &Emergency{
		EmergencyType: strings.TrimSpace(req.EmergencyType),
		Location:      strings.TrimSpace(req.Location),
		ContactNumber: req.ContactNumber,
		Details:       req.Details,
		UserID:        caller.UserID,
		ForwardStatus: ForwardPending,
	}
	if caller.IP != "" {
		ip := caller.IP
		e.UserIP = &ip
	}
	if req.HospitalID != "" {
		id, err := s.parseHospital(ctx, req.HospitalID)
		if err != nil {
			return nil, err
		}
		e.HospitalID = id
	}
	if err := s.emergencies.Create(ctx, e); err != nil {
		return nil, err
	}

	s.alert(ctx, e)
	return e, nil
}

func (s *Service) alert(ctx context.Context, e *Emergency) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"emergency_id":   e.ID,
		"emergency_type": e.EmergencyType,
		"location":       e.Location,
		"contact_number": e.ContactNumber,
		"created_at":     e.CreatedAt,
	}
	if s.templates != nil {
		title, body, err := s.templates.Render("emergency_alert", map[string]string{
			"emergency_type": e.EmergencyType,
			"location":       e.Location,
		})
		if err == nil {
			payload["title"] = title
			payload["message"] = body
		}
	}
	if err := s.events.NotifyRole(ctx, auth.RoleAdmin, websocket.EventEmergencyAlert, payload); err != nil {
		s.logger.Error().Err(err).Str("emergency_id", e.ID.String()).Msg("failed to push emergency alert to admins")
	}
	if e.HospitalID != nil {
		if err := s.events.NotifyHospital(ctx, e.HospitalID.String(), websocket.EventEmergencyAlert, payload); err != nil {
			s.logger.Error().Err(err).Str("emergency_id", e.ID.String()).Msg("failed to push emergency alert to hospital")
		}
	}
}

func (s *Service) ListEmergencies(ctx context.Context, params map[string]string, limit, offset int) ([]*Emergency, int, error) {
	if v := params["status"]; v != "" && !oneOf(v, forwardStatuses) {
		return nil, 0, apperr.Validation("status must be one of: " + strings.Join(forwardStatuses, ", "))
	}
	return s.emergencies.Search(ctx, params, limit, offset)
}

func (s *Service) GetEmergency(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	return s.emergencies.GetByID(ctx, id)
}

func (s *Service) UpdateEmergency(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Emergency, error) {
	e, err := s.emergencies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ForwardStatus != nil {
		if !oneOf(*req.ForwardStatus, forwardStatuses) {
			return nil, apperr.Validation("forward_status must be one of: " + strings.Join(forwardStatuses, ", "))
		}
		e.ForwardStatus = *req.ForwardStatus
	}
	if req.ForwardedToOrg != nil {
		e.ForwardedToOrg = req.ForwardedToOrg
	}
	if req.HospitalID != nil && *req.HospitalID != "" {
		hid, err := s.parseHospital(ctx, *req.HospitalID)
		if err != nil {
			return nil, err
		}
		e.HospitalID = hid
	}
	if err := s.emergencies.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// -- Ambulances --

func (s *Service) RegisterAmbulance(ctx context.Context, actor *auth.Principal, req RegisterAmbulanceRequest) (*Ambulance, error) {
	a := &Ambulance{
		Type:        req.Type,
		Status:      AmbulanceVacant,
		DriverName:  req.DriverName,
		DriverPhone: req.DriverPhone,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if a.Type == "" {
		a.Type = AmbulancePublic
	}
	if a.Type != AmbulancePublic && a.Type != AmbulancePrivate {
		return nil, apperr.Validation("type must be public or private")
	}
	if req.DriverPhone != nil && *req.DriverPhone != "" && !auth.ValidatePhone(*req.DriverPhone) {
		return nil, apperr.Validation("invalid driver_phone format")
	}
	if err := validCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}

	raw := req.HospitalID
	if raw == "" && actor.HospitalID != nil {
		raw = actor.HospitalID.String()
	}
	if raw != "" {
		id, err := s.parseHospital(ctx, raw)
		if err != nil {
			return nil, err
		}
		a.HospitalID = id
	}
	if !actor.IsAdmin() && (a.HospitalID == nil || !actor.OwnsHospital(*a.HospitalID)) {
		return nil, apperr.Forbidden("you can only register ambulances for your own hospital")
	}

	if err := s.ambulances.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func validCoordinates(lat, lng *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return apperr.Validation("latitude must be between -90 and 90")
	}
	if lng != nil && (*lng < -180 || *lng > 180) {
		return apperr.Validation("longitude must be between -180 and 180")
	}
	return nil
}

func (s *Service) UpdateAmbulanceStatus(ctx context.Context, actor *auth.Principal, id uuid.UUID, req AmbulanceStatusRequest) (*Ambulance, error) {
	if !oneOf(req.Status, ambulanceStatuses) {
		return nil, apperr.Validation("status must be one of: " + strings.Join(ambulanceStatuses, ", "))
	}
	if err := validCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	a, err := s.ambulances.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := a.HospitalID != nil && actor.OwnsHospital(*a.HospitalID)
	if !actor.IsAdmin() && !owner && actor.Role != auth.RoleAmbulanceDriver {
		return nil, apperr.Forbidden("access denied")
	}

	a.Status = req.Status
	if req.Latitude != nil {
		a.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		a.Longitude = req.Longitude
	}
	if err := s.ambulances.UpdateStatus(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) AvailableAmbulances(ctx context.Context, params map[string]string) ([]*Ambulance, error) {
	if v := params["type"]; v != "" && v != AmbulancePublic && v != AmbulancePrivate {
		return nil, apperr.Validation("type must be public or private")
	}
	items, err := s.ambulances.Available(ctx, params)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Ambulance{}
	}
	return items, nil
}
