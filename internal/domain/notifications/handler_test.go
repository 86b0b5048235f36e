package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/response"
)

func serve(e *echo.Echo, method, target, body string, p *auth.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newTestServer(t *testing.T) (*echo.Echo, *testEnv) {
	env := newTestEnv(t)
	e := echo.New()
	e.HTTPErrorHandler = response.HTTPErrorHandler(zerolog.Nop())
	NewHandler(env.svc).RegisterRoutes(e.Group("/api/v1"))
	return e, env
}

func TestHandler_UnreadCountFlow(t *testing.T) {
	e, env := newTestServer(t)
	u := env.user(auth.RoleUser)
	p := &auth.Principal{ID: u, Role: auth.RoleUser, Type: auth.TypeUser}
	require.NoError(t, env.svc.Notify(context.Background(), u, "hi", "there", nil))

	rec := serve(e, http.MethodGet, "/api/v1/notifications/unread-count", "", p)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unread_count":1`)

	rec = serve(e, http.MethodPost, "/api/v1/notifications/mark-all-read", "", p)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/api/v1/notifications/unread-count", "", p)
	assert.Contains(t, rec.Body.String(), `"unread_count":0`)
}

func TestHandler_MarkRead_Unknown(t *testing.T) {
	e, _ := newTestServer(t)
	p := &auth.Principal{ID: uuid.New(), Role: auth.RoleUser, Type: auth.TypeUser}

	rec := serve(e, http.MethodPost, "/api/v1/notifications/mark-read/"+uuid.NewString(), "", p)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(e, http.MethodPost, "/api/v1/notifications/mark-read/abc", "", p)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AdminOnlyRoutes(t *testing.T) {
	e, _ := newTestServer(t)
	user := &auth.Principal{ID: uuid.New(), Role: auth.RoleUser, Type: auth.TypeUser}
	admin := &auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin, Type: auth.TypeAdmin}

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/api/v1/notifications/templates", "", user).Code)
	rec := serve(e, http.MethodGet, "/api/v1/notifications/templates", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "blood_request_approved")
}

func TestHandler_UpdateSettings_Merges(t *testing.T) {
	e, _ := newTestServer(t)
	p := &auth.Principal{ID: uuid.New(), Role: auth.RoleUser, Type: auth.TypeUser}

	rec := serve(e, http.MethodPut, "/api/v1/notifications/settings", `{"email_notifications":false}`, p)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"email_notifications":false`)
	assert.Contains(t, body, `"websocket_notifications":true`)
}
