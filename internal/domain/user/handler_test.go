package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/response"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = response.HTTPErrorHandler(zerolog.Nop())
	return e
}

func withPrincipal(req *http.Request, p *auth.Principal) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

func TestHandler_GetUser_InvalidID(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetUser(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_UpdateProfile(t *testing.T) {
	svc, repo, _ := newTestService()
	alice := seedUser(repo, "alice", auth.RoleUser)
	h := NewHandler(svc)
	e := newTestEcho()

	body := `{"fullname":"Alice L","phone_num":"+919876543210"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = withPrincipal(req, &auth.Principal{ID: alice.ID, Role: auth.RoleUser, Type: auth.TypeUser})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var env struct {
		Success bool `json:"success"`
		Data    User `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Data.Fullname != "Alice L" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash must never be serialised")
	}
}

func TestHandler_ListUsers_Paginated(t *testing.T) {
	svc, repo, _ := newTestService()
	for _, name := range []string{"a1", "a2", "a3"} {
		seedUser(repo, name, auth.RoleUser)
	}
	h := NewHandler(svc)
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodGet, "/?page=2&per_page=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListUsers(c); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	var env struct {
		Data struct {
			Items   []User `json:"items"`
			Total   int    `json:"total"`
			Pages   int    `json:"pages"`
			HasMore bool   `json:"has_more"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Total != 3 || len(env.Data.Items) != 1 || env.Data.Pages != 2 || env.Data.HasMore {
		t.Errorf("unexpected page: %+v", env.Data)
	}
}

func TestHandler_AdminRoutesRequireAdmin(t *testing.T) {
	svc, repo, _ := newTestService()
	alice := seedUser(repo, "alice", auth.RoleUser)
	e := newTestEcho()
	api := e.Group("/api/v1")
	NewHandler(svc).RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/user/delete/"+alice.ID.String(), nil)
	req = withPrincipal(req, &auth.Principal{ID: uuid.New(), Role: auth.RoleUser, Type: auth.TypeUser})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if _, ok := repo.users[alice.ID]; !ok {
		t.Error("user must not be deleted by a non-admin")
	}
}

func TestHandler_DeleteUser_AsAdmin(t *testing.T) {
	svc, repo, _ := newTestService()
	alice := seedUser(repo, "alice", auth.RoleUser)
	e := newTestEcho()
	api := e.Group("/api/v1")
	NewHandler(svc).RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/user/delete/"+alice.ID.String(), nil)
	req = withPrincipal(req, adminPrincipal())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
