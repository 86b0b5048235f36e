package hospital

import (
	"context"
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

const (
	groundFloorNumber = "0"
	groundFloorName   = "Ground Floor"
	defaultCategory   = "General"
	defaultWardNumber = "W1"
	defaultBedType    = "General"
)

// EventPublisher pushes realtime events to a hospital's room.
type EventPublisher interface {
	NotifyHospital(ctx context.Context, hospitalID, eventType string, data interface{}) error
}

// ActionLogger records admin-sensitive actions.
type ActionLogger interface {
	LogAction(ctx context.Context, actorID uuid.UUID, subjectID *uuid.UUID, action map[string]interface{}) error
}

type Service struct {
	tx        db.TxRunner
	accounts  AccountRepository
	hospitals HospitalRepository
	floors    FloorRepository
	wards     WardRepository
	beds      BedRepository
	events    EventPublisher
	actions   ActionLogger
	logger    zerolog.Logger

	defaultWardCapacity int
	now                 func() time.Time
}

type Config struct {
	DefaultWardCapacity int
}

func NewService(tx db.TxRunner, accounts AccountRepository, hospitals HospitalRepository, floors FloorRepository,
	wards WardRepository, beds BedRepository, events EventPublisher, actions ActionLogger, cfg Config, logger zerolog.Logger) *Service {
	if cfg.DefaultWardCapacity <= 0 {
		cfg.DefaultWardCapacity = 10
	}
	return &Service{
		tx: tx, accounts: accounts, hospitals: hospitals, floors: floors, wards: wards, beds: beds,
		events: events, actions: actions, logger: logger,
		defaultWardCapacity: cfg.DefaultWardCapacity,
		now:                 time.Now,
	}
}

func canManage(p *auth.Principal, hospitalID uuid.UUID) bool {
	return p.IsAdmin() || p.OwnsHospital(hospitalID)
}

// -- Hospitals --

func (s *Service) RegisterHospital(ctx context.Context, actor *auth.Principal, req RegisterRequest) (*Registration, error) {
	fields := map[string]string{}
	for name, v := range map[string]string{
		"name": req.Name, "username": req.Username, "email": req.Email,
		"password": req.Password, "location": req.Location, "type": req.Type,
	} {
		if strings.TrimSpace(v) == "" {
			fields[name] = name + " is required"
		}
	}
	if req.Email != "" && !auth.ValidateEmail(req.Email) {
		fields["email"] = "invalid email format"
	}
	if req.Password != "" {
		if err := auth.ValidatePasswordStrength(req.Password); err != nil {
			fields["password"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("validation failed", fields)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}

	reg := &Registration{}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		acct := &Account{
			Username:     strings.TrimSpace(req.Username),
			Name:         strings.TrimSpace(req.Name),
			Type:         req.Type,
			Email:        strings.TrimSpace(req.Email),
			PasswordHash: hash,
			Location:     req.Location,
			IsMultiLevel: req.IsMultiLevel,
			RegID:        refcode.New("HOSP", s.now(), 6),
			Availability: true,
		}
		if err := s.accounts.Create(ctx, acct); err != nil {
			return err
		}
		email := acct.Email
		h := &Hospital{
			AccountID:    acct.ID,
			Name:         acct.Name,
			Location:     acct.Location,
			ContactNum:   req.ContactNum,
			Email:        &email,
			HospitalType: acct.Type,
			OPDStatus:    OPDOpen,
			IsMultiLevel: acct.IsMultiLevel,
		}
		if err := s.hospitals.Create(ctx, h); err != nil {
			return err
		}
		if !acct.IsMultiLevel {
			if err := s.createDefaultLayout(ctx, h.ID); err != nil {
				return err
			}
		}
		reg.Account, reg.Hospital, reg.RegID = acct, h, acct.RegID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAction(ctx, actor, map[string]interface{}{
		"action":      "register_hospital",
		"hospital_id": reg.Hospital.ID.String(),
		"reg_id":      reg.RegID,
	})
	return reg, nil
}

// createDefaultLayout gives single-level hospitals a ground floor with one general ward.
func (s *Service) createDefaultLayout(ctx context.Context, hospitalID uuid.UUID) error {
	name := groundFloorName
	floor := &Floor{HospitalID: hospitalID, FloorNumber: groundFloorNumber, FloorName: &name}
	if err := s.floors.Create(ctx, floor); err != nil {
		return err
	}
	cat, err := s.wards.GetOrCreateCategory(ctx, defaultCategory)
	if err != nil {
		return err
	}
	return s.wards.Create(ctx, &Ward{
		FloorID:    floor.ID,
		CategoryID: cat.ID,
		WardNumber: defaultWardNumber,
		Capacity:   s.defaultWardCapacity,
	})
}

func (s *Service) ListHospitals(ctx context.Context, params map[string]string, limit, offset int) ([]*Hospital, int, error) {
	return s.hospitals.Search(ctx, params, limit, offset)
}

func (s *Service) GetHospital(ctx context.Context, id uuid.UUID) (*HospitalDetail, error) {
	h, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sum, err := s.hospitals.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	return &HospitalDetail{Hospital: h, Summary: *sum}, nil
}

func (s *Service) UpdateHospital(ctx context.Context, actor *auth.Principal, id uuid.UUID, req UpdateRequest) (*Hospital, error) {
	if !canManage(actor, id) {
		return nil, apperr.Forbidden("you can only update your own hospital")
	}
	h, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		h.Name = strings.TrimSpace(*req.Name)
	}
	if req.Location != nil {
		h.Location = *req.Location
	}
	if req.ContactNum != nil {
		if *req.ContactNum != "" && !auth.ValidatePhone(*req.ContactNum) {
			return nil, apperr.ValidationFields("validation failed", map[string]string{"contact_num": "invalid phone number format"})
		}
		h.ContactNum = req.ContactNum
	}
	if req.Email != nil {
		if !auth.ValidateEmail(*req.Email) {
			return nil, apperr.ValidationFields("validation failed", map[string]string{"email": "invalid email format"})
		}
		h.Email = req.Email
	}
	if req.HospitalType != nil {
		h.HospitalType = *req.HospitalType
	}
	if req.BedAvailability != nil {
		if *req.BedAvailability < 0 {
			return nil, apperr.Validation("bed_availability cannot be negative")
		}
		h.BedAvailability = *req.BedAvailability
	}
	if req.OxygenUnits != nil {
		if *req.OxygenUnits < 0 {
			return nil, apperr.Validation("oxygen_units cannot be negative")
		}
		h.OxygenUnits = *req.OxygenUnits
	}
	if req.OPDStatus != nil {
		if !validOPDStatus(*req.OPDStatus) {
			return nil, apperr.Validation("opd_status must be one of: Open, Closed, Limited")
		}
		h.OPDStatus = *req.OPDStatus
	}
	updatedBy := actor.ID
	h.LastUpdatedBy = &updatedBy

	if err := s.hospitals.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) DeleteHospital(ctx context.Context, actor *auth.Principal, id uuid.UUID) error {
	h, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, h.AccountID); err != nil {
		return err
	}
	s.logAction(ctx, actor, map[string]interface{}{
		"action":      "delete_hospital",
		"hospital_id": id.String(),
		"name":        h.Name,
	})
	return nil
}

// -- Floors --

func (s *Service) CreateFloor(ctx context.Context, actor *auth.Principal, hospitalID uuid.UUID, req CreateFloorRequest) (*Floor, error) {
	if !canManage(actor, hospitalID) {
		return nil, apperr.Forbidden("you can only manage your own hospital")
	}
	if strings.TrimSpace(req.FloorNumber) == "" {
		return nil, apperr.Required("floor_number")
	}
	h, err := s.hospitals.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	if !h.IsMultiLevel {
		return nil, apperr.Validation("single-level hospitals cannot have additional floors")
	}
	f := &Floor{HospitalID: hospitalID, FloorNumber: strings.TrimSpace(req.FloorNumber), FloorName: req.FloorName}
	if err := s.floors.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListFloors(ctx context.Context, hospitalID uuid.UUID) ([]*Floor, error) {
	if _, err := s.hospitals.GetByID(ctx, hospitalID); err != nil {
		return nil, err
	}
	return s.floors.ListByHospital(ctx, hospitalID)
}

// -- Wards --

func (s *Service) CreateWard(ctx context.Context, actor *auth.Principal, req CreateWardRequest) (*Ward, error) {
	if strings.TrimSpace(req.WardNumber) == "" {
		return nil, apperr.Required("ward_number")
	}
	if req.FloorID == "" {
		return nil, apperr.Required("floor_id")
	}
	if req.Capacity <= 0 {
		return nil, apperr.Validation("capacity must be greater than 0")
	}
	floorID, err := uuid.Parse(req.FloorID)
	if err != nil {
		return nil, apperr.Validation("invalid floor_id")
	}
	floor, err := s.floors.GetByID(ctx, floorID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, floor.HospitalID) {
		return nil, apperr.Forbidden("you can only manage your own hospital")
	}

	var cat *Category
	switch {
	case req.CategoryID != "":
		catID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return nil, apperr.Validation("invalid category_id")
		}
		if cat, err = s.wards.GetCategory(ctx, catID); err != nil {
			return nil, err
		}
	default:
		name := strings.TrimSpace(req.CategoryName)
		if name == "" {
			name = defaultCategory
		}
		if cat, err = s.wards.GetOrCreateCategory(ctx, name); err != nil {
			return nil, err
		}
	}

	w := &Ward{
		FloorID:      floor.ID,
		CategoryID:   cat.ID,
		WardNumber:   strings.TrimSpace(req.WardNumber),
		Capacity:     req.Capacity,
		HospitalID:   floor.HospitalID,
		CategoryName: cat.Name,
	}
	if err := s.wards.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) GetWard(ctx context.Context, id uuid.UUID) (*WardDetail, error) {
	w, err := s.wards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.wards.BedCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WardDetail{Ward: w, BedCounts: *counts}, nil
}

func (s *Service) ListWards(ctx context.Context, hospitalID uuid.UUID) ([]*Ward, error) {
	if _, err := s.hospitals.GetByID(ctx, hospitalID); err != nil {
		return nil, err
	}
	return s.wards.ListByHospital(ctx, hospitalID)
}

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.wards.ListCategories(ctx)
}

// -- Beds --

func (s *Service) CreateBed(ctx context.Context, actor *auth.Principal, wardID uuid.UUID, req CreateBedRequest) (*Bed, error) {
	if strings.TrimSpace(req.BedNumber) == "" {
		return nil, apperr.Required("bed_number")
	}
	w, err := s.wards.GetByID(ctx, wardID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, w.HospitalID) {
		return nil, apperr.Forbidden("you can only manage your own hospital")
	}
	status := req.Status
	if status == "" {
		status = BedVacant
	}
	if !validBedStatus(status) {
		return nil, apperr.Validation("status must be one of: " + strings.Join(bedStatuses, ", "))
	}
	bedType := strings.TrimSpace(req.BedType)
	if bedType == "" {
		bedType = defaultBedType
	}
	b := &Bed{WardID: wardID, BedNumber: strings.TrimSpace(req.BedNumber), Status: status, BedType: bedType, HospitalID: w.HospitalID}

	// The ward row lock serialises concurrent creates against the capacity check.
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		locked, err := s.wards.GetForUpdate(ctx, wardID)
		if err != nil {
			return err
		}
		counts, err := s.wards.BedCounts(ctx, wardID)
		if err != nil {
			return err
		}
		if counts.Total >= locked.Capacity {
			return apperr.Validation("ward is at full capacity")
		}
		return s.beds.Create(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) ListBeds(ctx context.Context, wardID uuid.UUID, status string) ([]*Bed, error) {
	if status != "" && !validBedStatus(status) {
		return nil, apperr.Validation("status must be one of: " + strings.Join(bedStatuses, ", "))
	}
	if _, err := s.wards.GetByID(ctx, wardID); err != nil {
		return nil, err
	}
	return s.beds.ListByWard(ctx, wardID, status)
}

func (s *Service) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.beds.GetByID(ctx, id)
}

func (s *Service) UpdateBed(ctx context.Context, actor *auth.Principal, id uuid.UUID, req UpdateBedRequest) (*Bed, error) {
	if !validBedStatus(req.Status) {
		return nil, apperr.Validation("status must be one of: " + strings.Join(bedStatuses, ", "))
	}
	b, err := s.beds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, b.HospitalID) {
		return nil, apperr.Forbidden("you can only manage your own hospital")
	}
	previous := b.Status
	b.Status = req.Status
	if req.BedType != nil && strings.TrimSpace(*req.BedType) != "" {
		b.BedType = strings.TrimSpace(*req.BedType)
	}
	if err := s.beds.Update(ctx, b); err != nil {
		return nil, err
	}

	if s.events != nil {
		payload := map[string]interface{}{
			"bed_id":          b.ID,
			"ward_id":         b.WardID,
			"bed_number":      b.BedNumber,
			"status":          b.Status,
			"previous_status": previous,
		}
		if err := s.events.NotifyHospital(ctx, b.HospitalID.String(), websocket.EventBedStatusUpdate, payload); err != nil {
			s.logger.Warn().Err(err).Str("bed_id", b.ID.String()).Msg("failed to push bed status update")
		}
	}
	return b, nil
}

func (s *Service) logAction(ctx context.Context, actor *auth.Principal, action map[string]interface{}) {
	if s.actions == nil || actor == nil {
		return
	}
	_ = s.actions.LogAction(ctx, actor.ID, nil, action)
}
