package user

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/apperr"
)

// ActionLogger records admin-sensitive actions.
type ActionLogger interface {
	LogAction(ctx context.Context, actorID uuid.UUID, subjectID *uuid.UUID, action map[string]interface{}) error
}

type Service struct {
	users   Repository
	actions ActionLogger
	now     func() time.Time
}

func NewService(users Repository, actions ActionLogger) *Service {
	return &Service{users: users, actions: actions, now: time.Now}
}

func (s *Service) GetUser(ctx context.Context, caller *auth.Principal, id uuid.UUID) (*User, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	if !caller.IsAdmin() && !(caller.Type == auth.TypeUser && caller.ID == id) {
		return nil, apperr.Forbidden("access denied")
	}
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if req.Fullname != nil {
		name := strings.TrimSpace(*req.Fullname)
		if name == "" {
			fields["fullname"] = "fullname cannot be empty"
		}
		u.Fullname = name
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if !auth.ValidateEmail(email) {
			fields["email"] = "invalid email format"
		}
		u.Email = email
	}
	if req.PhoneNum != nil {
		phone := strings.TrimSpace(*req.PhoneNum)
		if phone != "" && !auth.ValidatePhone(phone) {
			fields["phone_num"] = "invalid phone number format"
		}
		u.PhoneNum = optional(phone)
	}
	if req.Location != nil {
		u.Location = optional(strings.TrimSpace(*req.Location))
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("validation failed", fields)
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error) {
	return s.users.Search(ctx, params, limit, offset)
}

func (s *Service) UpdateRole(ctx context.Context, caller *auth.Principal, id uuid.UUID, role string) (*User, error) {
	if !auth.IsValidRole(role) {
		return nil, apperr.Validation("invalid role, must be one of: " + strings.Join(auth.AllRoles, ", "))
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := u.Role
	u.Role = role
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logAction(ctx, caller, &u.ID, map[string]interface{}{
		"action":   "update_role",
		"username": u.Username,
		"from":     previous,
		"to":       role,
	})
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, caller *auth.Principal, id uuid.UUID) error {
	if caller != nil && caller.ID == id {
		return apperr.Validation("cannot delete your own account")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logAction(ctx, caller, &id, map[string]interface{}{
		"action":   "delete_user",
		"username": u.Username,
	})
	return nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.users.Stats(ctx, s.now())
}

// QuickSearch backs the type-ahead lookup used when booking on behalf of a patient.
func (s *Service) QuickSearch(ctx context.Context, q string) ([]*User, error) {
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return nil, apperr.Validation("search query must be at least 2 characters")
	}
	users, _, err := s.users.Search(ctx, map[string]string{"search": q}, 20, 0)
	return users, err
}

func (s *Service) logAction(ctx context.Context, caller *auth.Principal, subject *uuid.UUID, action map[string]interface{}) {
	if s.actions == nil || caller == nil {
		return
	}
	// Admin log failures never undo the action itself.
	_ = s.actions.LogAction(ctx, caller.ID, subject, action)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
