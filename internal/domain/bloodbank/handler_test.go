package bloodbank

import (
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

func newTestServer() (*echo.Echo, *testEnv) {
	env := newTestEnv()
	e := echo.New()
	e.HTTPErrorHandler = response.HTTPErrorHandler(zerolog.Nop())
	NewHandler(env.svc).RegisterRoutes(e.Group("/api/v1"))
	return e, env
}

func serve(e *echo.Echo, method, target, body, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		p := &auth.Principal{ID: uuid.New(), Role: role, Type: auth.TypeUser}
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RegisterBank_AdminOnly(t *testing.T) {
	e, _ := newTestServer()
	body := `{"name":"Red Cross","location":"Mumbai","email":"rc@bank.test"}`

	if rec := serve(e, http.MethodPost, "/api/v1/bloodbank/register", body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodPost, "/api/v1/bloodbank/register", body, auth.RoleDonor); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodPost, "/api/v1/bloodbank/register", body, auth.RoleAdmin); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_AddStockAndRead(t *testing.T) {
	e, env := newTestServer()
	b := env.bank(t)

	rec := serve(e, http.MethodPost, "/api/v1/bloodbank/"+b.ID.String()+"/addstock", `{"blood_type":"O+","units":12,"lot_number":"L9"}`, auth.RoleAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = serve(e, http.MethodGet, "/api/v1/bloodbank/"+b.ID.String()+"/stock", "", auth.RoleUser)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"O+":12`) {
		t.Errorf("expected totals in body, got %s", rec.Body.String())
	}
}

func TestHandler_CreateRequest_FieldErrors(t *testing.T) {
	e, _ := newTestServer()
	rec := serve(e, http.MethodPost, "/api/v1/bloodbank/request", `{"blood_group":"A+"}`, auth.RoleUser)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "quantity_units") {
		t.Errorf("expected field errors in body, got %s", rec.Body.String())
	}
}

func TestHandler_GetBank_NotFound(t *testing.T) {
	e, _ := newTestServer()
	rec := serve(e, http.MethodGet, "/api/v1/bloodbank/"+uuid.NewString(), "", auth.RoleUser)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
