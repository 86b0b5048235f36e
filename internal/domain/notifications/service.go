package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/notification"
	"github.com/hms/hms/internal/platform/websocket"
	"github.com/hms/hms/pkg/apperr"
)

const (
	unreadCountTTL = 300 * time.Second
	settingsTTL    = 24 * time.Hour
)

func unreadKey(userID uuid.UUID) string   { return "unread_count:" + userID.String() }
func settingsKey(userID uuid.UUID) string { return "notification_settings:" + userID.String() }

// Publisher pushes realtime events to websocket rooms.
type Publisher interface {
	NotifyUser(ctx context.Context, userID, eventType string, data interface{}) error
	NotifyRole(ctx context.Context, role, eventType string, data interface{}) error
	BroadcastSystem(ctx context.Context, data interface{}) error
}

type Service struct {
	repo      Repository
	directory Directory
	cache     cache.Store
	events    Publisher
	email     notification.EmailSender
	templates *notification.TemplateEngine
	logger    zerolog.Logger
}

func NewService(repo Repository, directory Directory, store cache.Store, events Publisher,
	email notification.EmailSender, templates *notification.TemplateEngine, logger zerolog.Logger) *Service {
	return &Service{
		repo: repo, directory: directory, cache: store, events: events,
		email: email, templates: templates, logger: logger,
	}
}

func (s *Service) invalidateUnread(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.Delete(ctx, unreadKey(userID)); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to invalidate unread count")
	}
}

// Notify stores a notification for userID and pushes it over websocket
// unless the user turned websocket delivery off.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, title, body string, meta map[string]interface{}) error {
	_, err := s.deliver(ctx, userID, title, body, meta, true, false)
	return err
}

func (s *Service) deliver(ctx context.Context, userID uuid.UUID, title, body string, meta map[string]interface{}, push, mail bool) (*Notification, error) {
	n := &Notification{UserID: userID, Title: title, Body: body, MetaInfo: meta}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.invalidateUnread(ctx, userID)

	settings := s.settings(ctx, userID)
	if push && settings.WebsocketNotifications && s.events != nil {
		if err := s.events.NotifyUser(ctx, userID.String(), websocket.EventNewNotification, n); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to push notification")
		}
	}
	if mail && settings.EmailNotifications && s.email != nil {
		addr, err := s.directory.Email(ctx, userID)
		if err == nil {
			err = s.email.SendEmail(ctx, addr, title, body)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to email notification")
		}
	}
	return n, nil
}

func (s *Service) MyNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("notification")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidateUnread(ctx, userID)
	return n, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("notification")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	hit, err := s.cache.Get(ctx, unreadKey(userID), &count)
	if err != nil {
		s.logger.Warn().Err(err).Msg("unread count cache read failed")
	}
	if hit {
		return count, nil
	}
	count, err = s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Set(ctx, unreadKey(userID), count, unreadCountTTL); err != nil {
		s.logger.Warn().Err(err).Msg("unread count cache write failed")
	}
	return count, nil
}

// -- Admin sends --

func parseRecipients(raw []string) ([]uuid.UUID, []Delivery) {
	var ids []uuid.UUID
	var invalid []Delivery
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			invalid = append(invalid, Delivery{UserID: r, Error: "invalid user id"})
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}

func (s *Service) sendAll(ctx context.Context, rawIDs []string, title, body string, meta map[string]interface{}, push, mail bool) *SendResult {
	ids, invalid := parseRecipients(rawIDs)
	result := &SendResult{Failed: len(invalid), Results: invalid}
	for _, id := range ids {
		if _, err := s.deliver(ctx, id, title, body, meta, push, mail); err != nil {
			result.Failed++
			result.Results = append(result.Results, Delivery{UserID: id.String(), Error: err.Error()})
			continue
		}
		result.Sent++
		result.Results = append(result.Results, Delivery{UserID: id.String(), Success: true})
	}
	return result
}

func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "title is required"
	}
	if strings.TrimSpace(req.Body) == "" {
		fields["body"] = "body is required"
	}
	if len(req.UserIDs) == 0 {
		fields["user_ids"] = "user_ids is required"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("validation failed", fields)
	}
	push := true
	if req.SendWebsocket != nil {
		push = *req.SendWebsocket
	}
	return s.sendAll(ctx, req.UserIDs, req.Title, req.Body, req.Metadata, push, req.SendEmail), nil
}

func (s *Service) Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		return nil, apperr.Validation("title and body are required")
	}
	for _, r := range req.TargetRoles {
		if !auth.IsValidRole(r) {
			return nil, apperr.Validation("invalid role: " + r)
		}
	}

	ids, err := s.directory.IDsByRoles(ctx, req.TargetRoles)
	if err != nil {
		return nil, err
	}
	meta := map[string]interface{}{"type": "broadcast"}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	for _, id := range ids {
		n := &Notification{UserID: id, Title: req.Title, Body: req.Body, MetaInfo: meta}
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("user_id", id.String()).Msg("failed to store broadcast notification")
			continue
		}
		s.invalidateUnread(ctx, id)
	}

	payload := map[string]interface{}{"title": req.Title, "body": req.Body, "metadata": req.Metadata}
	if s.events != nil {
		if len(req.TargetRoles) == 0 {
			if err := s.events.BroadcastSystem(ctx, payload); err != nil {
				s.logger.Warn().Err(err).Msg("failed to broadcast system notification")
			}
		}
		for _, role := range req.TargetRoles {
			if err := s.events.NotifyRole(ctx, role, websocket.EventSystemNotification, payload); err != nil {
				s.logger.Warn().Err(err).Str("role", role).Msg("failed to push system notification")
			}
		}
	}
	roles := req.TargetRoles
	if roles == nil {
		roles = []string{}
	}
	return &BroadcastResult{Recipients: len(ids), TargetRoles: roles}, nil
}

func (s *Service) Templates() []notification.Template {
	return s.templates.List()
}

func (s *Service) SendTemplate(ctx context.Context, req TemplateSendRequest) (*SendResult, error) {
	if req.TemplateID == "" {
		return nil, apperr.Required("template_id")
	}
	if len(req.UserIDs) == 0 {
		return nil, apperr.Required("user_ids")
	}
	title, body, err := s.templates.Render(req.TemplateID, req.Variables)
	if err != nil {
		return nil, err
	}
	meta := map[string]interface{}{"template_id": req.TemplateID}
	return s.sendAll(ctx, req.UserIDs, title, body, meta, true, req.SendEmail), nil
}

// -- Settings --

func (s *Service) settings(ctx context.Context, userID uuid.UUID) Settings {
	out := DefaultSettings()
	if _, err := s.cache.Get(ctx, settingsKey(userID), &out); err != nil {
		s.logger.Warn().Err(err).Msg("settings cache read failed")
		return DefaultSettings()
	}
	return out
}

func (s *Service) Settings(ctx context.Context, userID uuid.UUID) Settings {
	return s.settings(ctx, userID)
}

func validClock(v string) bool {
	_, err := time.Parse("15:04", v)
	return err == nil
}

func (s *Service) UpdateSettings(ctx context.Context, userID uuid.UUID, in Settings) (Settings, error) {
	if !validClock(in.QuietHours.StartTime) || !validClock(in.QuietHours.EndTime) {
		return Settings{}, apperr.Validation("quiet_hours times must be HH:MM")
	}
	if err := s.cache.Set(ctx, settingsKey(userID), in, settingsTTL); err != nil {
		return Settings{}, err
	}
	return in, nil
}
