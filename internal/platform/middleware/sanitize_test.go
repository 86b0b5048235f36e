package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newSanitizeEcho() *echo.Echo {
	e := echo.New()
	e.Use(Sanitize(zerolog.Nop()))
	e.GET("/*", okHandler)
	return e
}

func TestSanitize_Blocks(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header [2]string
	}{
		{"dot dot", "/../../etc/passwd", [2]string{}},
		{"encoded dot dot", "/%2e%2e/%2e%2e/etc/passwd", [2]string{}},
		{"null byte", "/api/v1/user/abc%00", [2]string{}},
		{"script in query", "/api/v1/hospital/all?location=%3Cscript%3Ealert(1)", [2]string{}},
		{"javascript scheme", "/api/v1/hospital/all?next=javascript:alert(1)", [2]string{}},
	}

	e := newSanitizeEcho()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestSanitize_OversizedHeader(t *testing.T) {
	e := newSanitizeEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hospital/all", nil)
	big := make([]byte, maxHeaderValueSize+1)
	for i := range big {
		big[i] = 'a'
	}
	req.Header.Set("X-Custom", string(big))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSanitize_AllowsNormalRequests(t *testing.T) {
	e := newSanitizeEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hospital/all?location=Kathmandu&page=2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSanitize_SQLPatternOnlyWarns(t *testing.T) {
	e := newSanitizeEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/search?q=x%27%20OR%201%3D1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Ward\x00 A\x07\n "); got != "Ward A" {
		t.Errorf("unexpected result %q", got)
	}
}
