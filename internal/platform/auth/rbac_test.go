package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func contextWithRole(role, typ string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if role != "" {
		req = req.WithContext(WithPrincipal(req.Context(), &Principal{ID: uuid.New(), Role: role, Type: typ}))
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRole(RoleDoctor, TypeUser)
	if err := RequireRole(RoleDoctor, RoleHospitalAdmin)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := contextWithRole(RoleUser, TypeUser)
	err := RequireRole(RoleAdmin)(okHandler)(c)
	expectStatus(t, err, http.StatusForbidden)
	if he := err.(*echo.HTTPError); he.Message != "required role: admin" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := contextWithRole(RoleAdmin, TypeAdmin)
	if err := RequireRole(RoleDoctor)(okHandler)(c); err != nil {
		t.Fatalf("admin should pass every role check, got %v", err)
	}
}

func TestRequireRole_Anonymous(t *testing.T) {
	c := contextWithRole("", "")
	expectStatus(t, RequireRole(RoleUser)(okHandler)(c), http.StatusUnauthorized)
}

func TestRequireType(t *testing.T) {
	c := contextWithRole(RoleHospitalAdmin, TypeHospital)
	if err := RequireType(TypeHospital)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c = contextWithRole(RoleAdmin, TypeAdmin)
	expectStatus(t, RequireType(TypeUser)(okHandler)(c), http.StatusForbidden)
}

func TestRequireAuth(t *testing.T) {
	expectStatus(t, RequireAuth()(okHandler)(contextWithRole("", "")), http.StatusUnauthorized)
	if err := RequireAuth()(okHandler)(contextWithRole(RoleUser, TypeUser)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range AllRoles {
		if !IsValidRole(r) {
			t.Errorf("expected %s to be valid", r)
		}
	}
	if IsValidRole("superuser") {
		t.Error("superuser should not be a valid role")
	}
}
