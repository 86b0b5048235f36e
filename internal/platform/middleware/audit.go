package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/response"
)

// AuditEntry describes one API call for the audit trail.
type AuditEntry struct {
	UserID       string
	UserType     string
	UserRole     string
	Method       string
	Path         string
	ResourceType string
	ResourceID   string
	Action       string // read, create, update, delete
	StatusCode   int
	IPAddress    string
	UserAgent    string
	RequestID    string
	SessionID    string
	Timestamp    time.Time
}

// AuditRecorder persists audit entries. The audit domain service implements it.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Login endpoints record their own login_attempt events.
var auditSkip = map[string]bool{
	"/api/v1/auth/login":          true,
	"/api/v1/auth/admin/login":    true,
	"/api/v1/auth/hospital/login": true,
}

// Audit records every /api/v1 call made by an authenticated principal and
// every mutating call made anonymously. A recorder failure is logged and
// never fails the request.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1/") || auditSkip[path] {
				return next(c)
			}

			err := next(c)

			p, authenticated := auth.PrincipalFromContext(req.Context())
			if !authenticated && !isMutating(req.Method) {
				return err
			}

			entry := AuditEntry{
				Method:       req.Method,
				Path:         path,
				ResourceType: resourceType(path),
				ResourceID:   resourceID(path),
				Action:       methodAction(req.Method),
				StatusCode:   response.Status(c, err),
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				RequestID:    requestIDOf(c),
				Timestamp:    time.Now().UTC(),
			}
			if authenticated {
				entry.UserID = p.ID.String()
				entry.UserType = p.Type
				entry.UserRole = p.Role
				entry.SessionID = p.JTI
			}

			if recorder != nil {
				// The request context may already be cancelled by the timeout middleware.
				ctx := context.WithoutCancel(req.Context())
				if recErr := recorder.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Debug().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("user_role", entry.UserRole).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Msg("api access")

			return err
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func methodAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceType names the route group, with blood requests split out of the
// blood bank group:
//
//	/api/v1/hospital/ward/<id>       -> hospital
//	/api/v1/bloodbank/request/<id>   -> blood_requests
func resourceType(path string) string {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown"
	}
	if segments[0] == "bloodbank" && len(segments) > 1 && strings.HasPrefix(segments[1], "request") {
		return "blood_requests"
	}
	return segments[0]
}

// resourceID returns the first UUID segment of the path, if any.
func resourceID(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if len(seg) == 36 {
			if _, err := uuid.Parse(seg); err == nil {
				return seg
			}
		}
	}
	return ""
}
