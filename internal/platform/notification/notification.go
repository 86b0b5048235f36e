// Package notification renders notification templates and delivers email.
package notification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/hms/hms/pkg/apperr"
)

// Template is a notification with {name} placeholders in its title and body.
type Template struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Variables lists the placeholder names the template uses, in order of first use.
func (t Template) Variables() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range placeholder.FindAllStringSubmatch(t.Title+" "+t.Body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// TemplateEngine holds the registered templates.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine returns an engine with the built-in templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range builtIn {
		e.templates[t.ID] = t
	}
	return e
}

var builtIn = []Template{
	{
		ID:       "appointment_reminder",
		Name:     "Appointment Reminder",
		Title:    "Appointment Reminder - {appointment_date}",
		Body:     "You have an appointment scheduled for {appointment_date} with Dr. {doctor_name}. Please arrive 15 minutes early.",
		Category: "appointments",
	},
	{
		ID:       "blood_request_approved",
		Name:     "Blood Request Approved",
		Title:    "Blood Request Approved",
		Body:     "Your blood request for {blood_type} has been approved. Please visit the blood bank to collect.",
		Category: "blood_bank",
	},
	{
		ID:       "emergency_alert",
		Name:     "Emergency Alert",
		Title:    "Emergency Alert - {emergency_type}",
		Body:     "Emergency reported at {location}. Please respond immediately.",
		Category: "emergency",
	},
	{
		ID:       "system_maintenance",
		Name:     "System Maintenance",
		Title:    "Scheduled System Maintenance",
		Body:     "The system will be under maintenance from {start_time} to {end_time}. Please save your work.",
		Category: "system",
	},
	{
		ID:       "password_expiry",
		Name:     "Password Expiry Warning",
		Title:    "Password Expires Soon",
		Body:     "Your password will expire in {days} days. Please change it to maintain account security.",
		Category: "security",
	},
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// List returns the templates sorted by id.
func (e *TemplateEngine) List() []Template {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Template, 0, len(e.templates))
	for _, t := range e.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *TemplateEngine) Get(id string) (Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.templates[id]
	return t, ok
}

// Render fills the template's placeholders from vars. Every placeholder must
// have a value.
func (e *TemplateEngine) Render(id string, vars map[string]string) (title, body string, err error) {
	t, ok := e.Get(id)
	if !ok {
		return "", "", apperr.NotFound("template")
	}
	for _, name := range t.Variables() {
		if _, ok := vars[name]; !ok {
			return "", "", apperr.Validation("missing variable: " + name)
		}
	}
	fill := func(s string) string {
		return placeholder.ReplaceAllStringFunc(s, func(m string) string {
			return vars[m[1:len(m)-1]]
		})
	}
	return fill(t.Title), fill(t.Body), nil
}

// EmailSender delivers a plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// EmailCall records one SendEmail call.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender records calls and optionally fails them.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		msg := m.FailError
		if msg == "" {
			msg = "send failed"
		}
		return errors.New(msg)
	}
	return nil
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ErrNoRecipient is returned when an email has no destination address.
var ErrNoRecipient = fmt.Errorf("email recipient is required")
