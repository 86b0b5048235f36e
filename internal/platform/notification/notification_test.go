package notification

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hms/pkg/apperr"
)

func TestTemplateEngine_BuiltIns(t *testing.T) {
	e := NewTemplateEngine()
	list := e.List()
	require.Len(t, list, 5)

	ids := make([]string, len(list))
	for i, tpl := range list {
		ids[i] = tpl.ID
	}
	assert.Equal(t, []string{
		"appointment_reminder", "blood_request_approved", "emergency_alert",
		"password_expiry", "system_maintenance",
	}, ids)
}

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()
	title, body, err := e.Render("appointment_reminder", map[string]string{
		"appointment_date": "2026-03-01 10:00",
		"doctor_name":      "Sharma",
	})
	require.NoError(t, err)
	assert.Equal(t, "Appointment Reminder - 2026-03-01 10:00", title)
	assert.Equal(t, "You have an appointment scheduled for 2026-03-01 10:00 with Dr. Sharma. Please arrive 15 minutes early.", body)
}

func TestTemplateEngine_RenderErrors(t *testing.T) {
	e := NewTemplateEngine()

	_, _, err := e.Render("nope", nil)
	assert.True(t, apperr.IsNotFound(err))
	assert.EqualError(t, err, "template not found")

	_, _, err = e.Render("blood_request_approved", map[string]string{"wrong": "x"})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusCode(err))
	assert.EqualError(t, err, "missing variable: blood_type")
}

func TestTemplate_Variables(t *testing.T) {
	tpl, ok := NewTemplateEngine().Get("system_maintenance")
	require.True(t, ok)
	assert.Equal(t, []string{"start_time", "end_time"}, tpl.Variables())
}

func TestTemplateEngine_Register(t *testing.T) {
	e := NewTemplateEngine()
	e.Register(Template{ID: "welcome", Title: "Hi {name}", Body: "Welcome, {name}."})
	title, body, err := e.Render("welcome", map[string]string{"name": "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Asha", title)
	assert.Equal(t, "Welcome, Asha.", body)
}

func TestMockEmailSender(t *testing.T) {
	m := &MockEmailSender{}
	require.NoError(t, m.SendEmail(context.Background(), "a@b.org", "s", "b"))
	assert.Equal(t, []EmailCall{{To: "a@b.org", Subject: "s", Body: "b"}}, m.Calls())

	m.ShouldFail = true
	assert.Error(t, m.SendEmail(context.Background(), "a@b.org", "s", "b"))
	assert.Len(t, m.Calls(), 2)
}

func TestSMTPSender_BuildsMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.org", Port: 587, Username: "mailer@example.org", Password: "pw"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, s.SendEmail(context.Background(), "patient@example.org", "Reset\nyour password", "line1\nline2"))
	assert.Equal(t, "smtp.example.org:587", gotAddr)
	assert.Equal(t, "mailer@example.org", gotFrom)
	assert.Equal(t, []string{"patient@example.org"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Resetyour password\r\n")
	assert.True(t, strings.HasSuffix(msg, "line1\r\nline2"))
}

func TestSMTPSender_Errors(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.org", Port: 25})
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	assert.ErrorIs(t, s.SendEmail(context.Background(), "", "s", "b"), ErrNoRecipient)
	assert.ErrorContains(t, s.SendEmail(context.Background(), "x@y.org", "s", "b"), "connection refused")
}

func TestBuildMessage_Headers(t *testing.T) {
	msg := string(buildMessage("a@x.org", "b@y.org", "Hello", "Body", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Contains(t, msg, "From: a@x.org\r\n")
	assert.Contains(t, msg, "To: b@y.org\r\n")
	assert.Contains(t, msg, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
}

func TestNewEmailSender_FallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	s := NewEmailSender(SMTPConfig{}, zerolog.New(&buf))
	_, ok := s.(*LogSender)
	require.True(t, ok)

	require.NoError(t, s.SendEmail(context.Background(), "x@y.org", "Subject", "Body"))
	assert.Contains(t, buf.String(), `"to":"x@y.org"`)

	_, ok = NewEmailSender(SMTPConfig{Host: "smtp"}, zerolog.Nop()).(*SMTPSender)
	assert.True(t, ok)
}
