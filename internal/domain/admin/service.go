package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/apperr"
)

type Service struct {
	admins AdminRepository
	logs   LogRepository
	logger zerolog.Logger
}

func NewService(admins AdminRepository, logs LogRepository, logger zerolog.Logger) *Service {
	return &Service{admins: admins, logs: logs, logger: logger}
}

// CreateAdmin adds a console operator. actor is nil when bootstrapping from the CLI.
func (s *Service) CreateAdmin(ctx context.Context, actor *auth.Principal, req CreateAdminRequest) (*Admin, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperr.Required("username")
	}
	if req.Password == "" {
		return nil, apperr.Required("password")
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		return nil, apperr.ValidationFields("validation failed", map[string]string{"password": err.Error()})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}
	a := &Admin{Username: username, PasswordHash: hash, Role: auth.RoleAdmin}
	if err := s.admins.Create(ctx, a); err != nil {
		return nil, err
	}

	if actor != nil {
		_ = s.LogAction(ctx, actor.ID, nil, map[string]interface{}{
			"action":   "create_admin",
			"admin_id": a.ID.String(),
			"username": a.Username,
		})
	}
	return a, nil
}

func (s *Service) GetAdmin(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return s.admins.GetByID(ctx, id)
}

func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	return s.admins.DashboardStats(ctx)
}

func (s *Service) ListLogs(ctx context.Context, adminID *uuid.UUID, limit, offset int) ([]*Log, int, error) {
	return s.logs.List(ctx, adminID, limit, offset)
}

// LogAction appends an admin log row. Failures are logged and returned; callers
// treat them as non-fatal.
func (s *Service) LogAction(ctx context.Context, actorID uuid.UUID, subjectID *uuid.UUID, action map[string]interface{}) error {
	raw, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("encode admin action: %w", err)
	}
	l := &Log{AdminID: actorID, UserID: subjectID, Action: raw}
	if err := s.logs.Create(ctx, l); err != nil {
		s.logger.Error().Err(err).Str("admin_id", actorID.String()).Msg("failed to write admin log")
		return err
	}
	return nil
}
