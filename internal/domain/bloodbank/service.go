package bloodbank

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/websocket"
	"github.com/hms/hms/pkg/apperr"
)

// EventPublisher pushes stock alerts to a role room.
type EventPublisher interface {
	NotifyRole(ctx context.Context, role, eventType string, data interface{}) error
}

// Notifier stores an in-app notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string, meta map[string]interface{}) error
}

// Renderer fills a notification template.
type Renderer interface {
	Render(id string, vars map[string]string) (title, body string, err error)
}

type Service struct {
	tx        db.TxRunner
	banks     BankRepository
	inventory InventoryRepository
	requests  RequestRepository
	events    EventPublisher
	notifier  Notifier
	templates Renderer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(tx db.TxRunner, banks BankRepository, inventory InventoryRepository, requests RequestRepository,
	events EventPublisher, notifier Notifier, templates Renderer, logger zerolog.Logger) *Service {
	return &Service{
		tx: tx, banks: banks, inventory: inventory, requests: requests,
		events: events, notifier: notifier, templates: templates, logger: logger, now: time.Now,
	}
}

// -- Blood Banks --

func (s *Service) RegisterBank(ctx context.Context, req RegisterRequest) (*BloodBank, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "name is required"
	}
	if strings.TrimSpace(req.Location) == "" {
		fields["location"] = "location is required"
	}
	if req.Email == "" {
		fields["email"] = "email is required"
	} else if !auth.ValidateEmail(req.Email) {
		fields["email"] = "invalid email format"
	}
	if req.ContactNo != nil && *req.ContactNo != "" && !auth.ValidatePhone(*req.ContactNo) {
		fields["contact_no"] = "invalid phone number format"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("validation failed", fields)
	}

	b := &BloodBank{
		Name:      strings.TrimSpace(req.Name),
		Location:  strings.TrimSpace(req.Location),
		ContactNo: req.ContactNo,
		Email:     strings.ToLower(req.Email),
		Category:  req.Category,
	}
	if err := s.banks.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) ListBanks(ctx context.Context, params map[string]string, limit, offset int) ([]*BloodBank, int, error) {
	if v := params["blood_type"]; v != "" && !validBloodType(v) {
		return nil, 0, apperr.Validation("invalid blood type")
	}
	return s.banks.Search(ctx, params, limit, offset)
}

func (s *Service) GetBank(ctx context.Context, id uuid.UUID) (*BloodBank, error) {
	return s.banks.GetByID(ctx, id)
}

// -- Stock --

// totals sums usable units per type. Expired lots do not count.
func totals(lots []*Inventory, now time.Time) map[string]int {
	out := make(map[string]int)
	for _, lot := range lots {
		if lot.Expired(now) {
			continue
		}
		out[lot.BloodType] += lot.Units
	}
	return out
}

func availableTypes(levels map[string]int) []string {
	out := []string{}
	for t, n := range levels {
		if n > 0 {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// refreshLevels recomputes the bank's denormalised stock columns from inventory.
func (s *Service) refreshLevels(ctx context.Context, bankID uuid.UUID) (*StockReport, error) {
	lots, err := s.inventory.ListByBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	levels := totals(lots, s.now())
	if err := s.banks.UpdateStock(ctx, bankID, levels, availableTypes(levels)); err != nil {
		return nil, err
	}
	return &StockReport{BloodBankID: bankID, Inventory: lots, Totals: levels}, nil
}

func (s *Service) AddStock(ctx context.Context, bankID uuid.UUID, req AddStockRequest) (*StockReport, error) {
	if !validBloodType(req.BloodType) {
		return nil, apperr.Validation("blood_type must be one of: " + strings.Join(BloodTypes, ", "))
	}
	if req.Units <= 0 {
		return nil, apperr.Validation("units must be greater than 0")
	}
	lot := &Inventory{BloodBankID: bankID, BloodType: req.BloodType, Units: req.Units, LotNumber: strings.TrimSpace(req.LotNumber)}
	if req.ExpiryDate != "" {
		d, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return nil, apperr.Validation("expiry_date must be YYYY-MM-DD")
		}
		lot.ExpiryDate = &d
	}

	var report *StockReport
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.banks.GetByID(ctx, bankID); err != nil {
			return err
		}
		if err := s.inventory.Upsert(ctx, lot); err != nil {
			return err
		}
		var err error
		report, err = s.refreshLevels(ctx, bankID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if n := report.Totals[req.BloodType]; n < LowStockThreshold {
		s.alertLowStock(ctx, bankID, req.BloodType, n)
	}
	return report, nil
}

func (s *Service) alertLowStock(ctx context.Context, bankID uuid.UUID, bloodType string, units int) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"bloodbank_id": bankID,
		"blood_type":   bloodType,
		"units":        units,
		"threshold":    LowStockThreshold,
	}
	if err := s.events.NotifyRole(ctx, auth.RoleAdmin, websocket.EventBloodStockAlert, payload); err != nil {
		s.logger.Warn().Err(err).Str("bloodbank_id", bankID.String()).Msg("failed to push blood stock alert")
	}
}

func (s *Service) Stock(ctx context.Context, bankID uuid.UUID) (*StockReport, error) {
	if _, err := s.banks.GetByID(ctx, bankID); err != nil {
		return nil, err
	}
	lots, err := s.inventory.ListByBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if lots == nil {
		lots = []*Inventory{}
	}
	return &StockReport{BloodBankID: bankID, Inventory: lots, Totals: totals(lots, s.now())}, nil
}

// -- Requests --

func (s *Service) CreateRequest(ctx context.Context, actor *auth.Principal, req CreateRequest) (*Request, error) {
	fields := map[string]string{}
	if req.BloodGroup == "" {
		fields["blood_group"] = "blood_group is required"
	} else if !validBloodType(req.BloodGroup) {
		fields["blood_group"] = "invalid blood type"
	}
	if req.QuantityUnits <= 0 {
		fields["quantity_units"] = "quantity_units must be greater than 0"
	}
	if strings.TrimSpace(req.Location) == "" {
		fields["location"] = "location is required"
	}
	if strings.TrimSpace(req.Reference) == "" {
		fields["reference"] = "reference is required"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("validation failed", fields)
	}

	r := &Request{
		RequesterName:  req.RequesterName,
		RequesterPhone: req.RequesterPhone,
		RequesterEmail: req.RequesterEmail,
		BloodGroup:     req.BloodGroup,
		QuantityUnits:  req.QuantityUnits,
		Location:       strings.TrimSpace(req.Location),
		Reference:      strings.TrimSpace(req.Reference),
		Status:         StatusPending,
	}
	if actor != nil && actor.Type == auth.TypeUser {
		id := actor.ID
		r.UserID = &id
	}
	if req.BloodBankID != "" {
		id, err := uuid.Parse(req.BloodBankID)
		if err != nil {
			return nil, apperr.Validation("invalid bloodbank_id")
		}
		r.BloodBankID = &id
	}
	if err := s.requests.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListRequests(ctx context.Context, actor *auth.Principal, params map[string]string, limit, offset int) ([]*Request, int, error) {
	if !actor.IsAdmin() {
		params["user_id"] = actor.ID.String()
	}
	return s.requests.Search(ctx, params, limit, offset)
}

func (s *Service) UpdateRequestStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) (*Request, error) {
	switch req.Status {
	case StatusApproved, StatusRejected, StatusFulfilled:
	default:
		return nil, apperr.Validation("status must be one of: approved, rejected, fulfilled")
	}

	var updated *Request
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.Status == StatusFulfilled || r.Status == StatusRejected {
			return apperr.Validation("request is already " + r.Status)
		}
		if req.BloodBankID != "" {
			bankID, err := uuid.Parse(req.BloodBankID)
			if err != nil {
				return apperr.Validation("invalid bloodbank_id")
			}
			r.BloodBankID = &bankID
		}
		if req.Status == StatusFulfilled {
			if err := s.fulfil(ctx, r); err != nil {
				return err
			}
		}
		r.Status = req.Status
		if err := s.requests.Update(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyRequester(ctx, updated)
	return updated, nil
}

// fulfil deducts the requested units from the bank, soonest-expiring lots first.
func (s *Service) fulfil(ctx context.Context, r *Request) error {
	if r.BloodBankID == nil {
		return apperr.Required("bloodbank_id")
	}
	if _, err := s.banks.GetByID(ctx, *r.BloodBankID); err != nil {
		return err
	}
	lots, err := s.inventory.ListForUpdate(ctx, *r.BloodBankID, r.BloodGroup)
	if err != nil {
		return err
	}
	now := s.now()
	available := 0
	for _, lot := range lots {
		if !lot.Expired(now) {
			available += lot.Units
		}
	}
	if available < r.QuantityUnits {
		return apperr.Validation(fmt.Sprintf("insufficient stock: %d units of %s available", available, r.BloodGroup))
	}

	remaining := r.QuantityUnits
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		if lot.Expired(now) || lot.Units == 0 {
			continue
		}
		take := lot.Units
		if take > remaining {
			take = remaining
		}
		if err := s.inventory.SetUnits(ctx, lot.ID, lot.Units-take); err != nil {
			return err
		}
		if r.InventoryID == nil {
			lotID := lot.ID
			r.InventoryID = &lotID
		}
		remaining -= take
	}

	report, err := s.refreshLevels(ctx, *r.BloodBankID)
	if err != nil {
		return err
	}
	if n := report.Totals[r.BloodGroup]; n < LowStockThreshold {
		s.alertLowStock(ctx, *r.BloodBankID, r.BloodGroup, n)
	}
	return nil
}

func (s *Service) notifyRequester(ctx context.Context, r *Request) {
	if s.notifier == nil || r.UserID == nil {
		return
	}
	title := "Blood Request Update"
	body := fmt.Sprintf("Your blood request for %s is now %s.", r.BloodGroup, r.Status)
	if r.Status == StatusApproved && s.templates != nil {
		t, b, err := s.templates.Render("blood_request_approved", map[string]string{"blood_type": r.BloodGroup})
		if err == nil {
			title, body = t, b
		}
	}
	meta := map[string]interface{}{"type": "blood_request", "request_id": r.ID.String(), "status": r.Status}
	if err := s.notifier.Notify(ctx, *r.UserID, title, body, meta); err != nil {
		s.logger.Warn().Err(err).Str("request_id", r.ID.String()).Msg("failed to notify blood requester")
	}
}
