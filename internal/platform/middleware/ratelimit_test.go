package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hms/internal/platform/auth"
)

func TestClassify(t *testing.T) {
	tests := map[string]string{
		"/api/v1/auth/login":          LimitAuth,
		"/api/v1/auth/hospital/login": LimitAuth,
		"/api/v1/auth/register":       LimitAuth,
		"/api/v1/auth/refresh":        LimitAuth,
		"/api/v1/emergency/call":      LimitEmergency,
		"/api/v1/admin/logs":          LimitAdmin,
		"/api/v1/audit/logs":          LimitAdmin,
		"/api/v1/hospital/all":        LimitAPI,
		"/api/v1/auth/profile":        LimitAPI,
	}
	for path, want := range tests {
		assert.Equal(t, want, Classify(path), path)
	}
}

func TestLimitFor_RoleMultipliers(t *testing.T) {
	cfg := DefaultRateLimitConfig()

	assert.Equal(t, 300, cfg.LimitFor(LimitAPI, auth.RoleAdmin).Requests)
	assert.Equal(t, 200, cfg.LimitFor(LimitAPI, auth.RoleDoctor).Requests)
	assert.Equal(t, 100, cfg.LimitFor(LimitAPI, auth.RoleUser).Requests)
	assert.Equal(t, 50, cfg.LimitFor(LimitAPI, "").Requests)
	assert.Equal(t, 2, cfg.LimitFor(LimitAuth, "").Requests)
	assert.Equal(t, 1, cfg.LimitFor(LimitEmergency, "").Requests)
	assert.Equal(t, 100, cfg.LimitFor(LimitAPI, auth.RoleDonor).Requests, "unlisted roles use 1.0")
	assert.Equal(t, 300*time.Second, cfg.LimitFor(LimitAuth, auth.RoleUser).Window)
}

func TestMemoryLimiter_AllowsBurstThenDenies(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	rule := Rule{Requests: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "api:1.2.3.4", rule)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "api:1.2.3.4", rule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(20*time.Second), float64(d.RetryAfter), float64(time.Millisecond))

	d, _ = l.Allow(ctx, "api:5.6.7.8", rule)
	assert.True(t, d.Allowed, "keys are independent")

	now = now.Add(21 * time.Second)
	d, _ = l.Allow(ctx, "api:1.2.3.4", rule)
	assert.True(t, d.Allowed, "one token refills after window/requests")
}

func TestWindowDecision(t *testing.T) {
	rule := Rule{Requests: 5, Window: time.Minute}

	d := windowDecision(3, 40*time.Second, rule)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)

	d = windowDecision(6, 40*time.Second, rule)
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	d = windowDecision(6, -1, rule)
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func serveLimited(t *testing.T, mw echo.MiddlewareFunc, path string, p *auth.Principal) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := mw(okHandler)(c); err != nil {
		e.DefaultHTTPErrorHandler(err, c)
	}
	return rec
}

func TestRateLimit_EmergencyAnonymous(t *testing.T) {
	mw := RateLimit(DefaultRateLimitConfig(), NewMemoryLimiter(), zerolog.Nop())

	rec := serveLimited(t, mw, "/api/v1/emergency/call", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serveLimited(t, mw, "/api/v1/emergency/call", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_KeyedByUser(t *testing.T) {
	mw := RateLimit(DefaultRateLimitConfig(), NewMemoryLimiter(), zerolog.Nop())
	a := &auth.Principal{ID: uuid.New(), Role: auth.RoleUser, Type: auth.TypeUser}
	b := &auth.Principal{ID: uuid.New(), Role: auth.RoleUser, Type: auth.TypeUser}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serveLimited(t, mw, "/api/v1/emergency/call", a).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serveLimited(t, mw, "/api/v1/emergency/call", a).Code)
	assert.Equal(t, http.StatusOK, serveLimited(t, mw, "/api/v1/emergency/call", b).Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, Rule) (Decision, error) {
	return Decision{}, errors.New("redis: connection refused")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mw := RateLimit(DefaultRateLimitConfig(), failingLimiter{}, zerolog.Nop())
	assert.Equal(t, http.StatusOK, serveLimited(t, mw, "/api/v1/hospital/all", nil).Code)
}

func TestRateLimit_IgnoresNonAPI(t *testing.T) {
	mw := RateLimit(DefaultRateLimitConfig(), failingLimiter{}, zerolog.Nop())
	rec := serveLimited(t, mw, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
