package notifications

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	MetaInfo  map[string]interface{} `json:"meta_info"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

type SendRequest struct {
	Title         string                 `json:"title"`
	Body          string                 `json:"body"`
	UserIDs       []string               `json:"user_ids"`
	SendEmail     bool                   `json:"send_email"`
	SendWebsocket *bool                  `json:"send_websocket"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type BroadcastRequest struct {
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	TargetRoles []string               `json:"target_roles"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type TemplateSendRequest struct {
	TemplateID string            `json:"template_id"`
	UserIDs    []string          `json:"user_ids"`
	Variables  map[string]string `json:"variables"`
	SendEmail  bool              `json:"send_email"`
}

// Delivery is the outcome for one recipient of a send.
type Delivery struct {
	UserID  string `json:"user_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type SendResult struct {
	Sent    int        `json:"sent"`
	Failed  int        `json:"failed"`
	Results []Delivery `json:"results"`
}

type BroadcastResult struct {
	Recipients  int      `json:"recipients"`
	TargetRoles []string `json:"target_roles"`
}

type QuietHours struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Settings are per-user delivery preferences.
type Settings struct {
	EmailNotifications     bool       `json:"email_notifications"`
	WebsocketNotifications bool       `json:"websocket_notifications"`
	AppointmentReminders   bool       `json:"appointment_reminders"`
	EmergencyAlerts        bool       `json:"emergency_alerts"`
	SystemAnnouncements    bool       `json:"system_announcements"`
	BloodBankUpdates       bool       `json:"blood_bank_updates"`
	QuietHours             QuietHours `json:"quiet_hours"`
}

func DefaultSettings() Settings {
	return Settings{
		EmailNotifications:     true,
		WebsocketNotifications: true,
		AppointmentReminders:   true,
		EmergencyAlerts:        true,
		SystemAnnouncements:    true,
		BloodBankUpdates:       true,
		QuietHours:             QuietHours{StartTime: "22:00", EndTime: "08:00"},
	}
}
