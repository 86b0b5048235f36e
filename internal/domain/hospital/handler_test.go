package hospital

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/response"
)

func newTestServer(env *testEnv) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = response.HTTPErrorHandler(zerolog.Nop())
	NewHandler(env.svc).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func doRequest(e *echo.Echo, method, target, body string, p *auth.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RegisterHospital_RequiresAdmin(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)
	body, _ := json.Marshal(validRegistration("citycare", false))

	rec := doRequest(e, http.MethodPost, "/api/v1/hospital/register", string(body),
		&auth.Principal{Role: auth.RoleHospitalAdmin, Type: auth.TypeHospital})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = doRequest(e, http.MethodPost, "/api/v1/hospital/register", string(body), adminPrincipal())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash leaked into response")
	}
}

func TestHandler_RegisterHospital_ValidationEnvelope(t *testing.T) {
	env := newTestEnv()
	e := newTestServer(env)

	rec := doRequest(e, http.MethodPost, "/api/v1/hospital/register", `{"name":"X"}`, adminPrincipal())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var env2 response.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env2)
	if env2.Success || env2.Errors["username"] == "" {
		t.Errorf("expected field errors in envelope, got %+v", env2)
	}
}

func TestHandler_GetHospital(t *testing.T) {
	env := newTestEnv()
	reg := env.register(t, "citycare", false)
	e := newTestServer(env)

	rec := doRequest(e, http.MethodGet, "/api/v1/hospital/"+reg.Hospital.ID.String(), "", adminPrincipal())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data struct {
			Name       string `json:"name"`
			FloorCount int    `json:"floor_count"`
			WardCount  int    `json:"ward_count"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.FloorCount != 1 || body.Data.WardCount != 1 {
		t.Errorf("unexpected detail %+v", body.Data)
	}

	rec = doRequest(e, http.MethodGet, "/api/v1/hospital/not-a-uuid", "", adminPrincipal())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid id, got %d", rec.Code)
	}
}

func TestHandler_UpdateBed_OtherHospitalForbidden(t *testing.T) {
	env := newTestEnv()
	a := env.register(t, "alpha", false)
	b := env.register(t, "beta", false)
	e := newTestServer(env)

	wards := env.store.wards
	var wardID string
	for id, w := range wards {
		if w.HospitalID == a.Hospital.ID {
			wardID = id.String()
		}
	}
	rec := doRequest(e, http.MethodPost, "/api/v1/hospital/ward/"+wardID+"/bed/create", `{"bed_number":"B1"}`, ownerOf(a.Hospital))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data Bed `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doRequest(e, http.MethodPut, "/api/v1/hospital/bed/update/"+created.Data.ID.String(), `{"status":"occupied"}`, ownerOf(b.Hospital))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
