package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestIsPublicPath(t *testing.T) {
	public := []string{"/health", "/api/v1/auth/login", "/api/v1/auth/register", "/api/v1/emergency/call", "/ws"}
	for _, p := range public {
		if !IsPublicPath(p) {
			t.Errorf("expected %s to be public", p)
		}
	}
	private := []string{"/api/v1/user/all", "/api/v1/auth/profile", "/api/v1/emergency/all"}
	for _, p := range private {
		if IsPublicPath(p) {
			t.Errorf("expected %s to require auth", p)
		}
	}
}

func TestAuthSkipper_UsesRoutePath(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if !AuthSkipper(c) {
		t.Error("expected login to be skipped")
	}
	c.SetPath("/api/v1/user/:id")
	if AuthSkipper(c) {
		t.Error("expected user route not to be skipped")
	}
}
