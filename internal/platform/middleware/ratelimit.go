package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hms/hms/internal/platform/auth"
)

// Request types the limiter distinguishes.
const (
	LimitAuth      = "auth"
	LimitEmergency = "emergency"
	LimitAdmin     = "admin"
	LimitAPI       = "api"
)

// Rule is a request budget per window.
type Rule struct {
	Requests int
	Window   time.Duration
}

type RateLimitConfig struct {
	Rules map[string]Rule
	// Multipliers scale a rule by the caller's role. The empty role is the
	// anonymous caller.
	Multipliers map[string]float64
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rules: map[string]Rule{
			LimitAuth:      {Requests: 5, Window: 300 * time.Second},
			LimitEmergency: {Requests: 3, Window: 60 * time.Second},
			LimitAdmin:     {Requests: 200, Window: 60 * time.Second},
			LimitAPI:       {Requests: 100, Window: 60 * time.Second},
		},
		Multipliers: map[string]float64{
			auth.RoleAdmin:         3.0,
			auth.RoleHospitalAdmin: 2.0,
			auth.RoleDoctor:        2.0,
			auth.RoleUser:          1.0,
			"":                     0.5,
		},
	}
}

// Classify maps a request path to its request type.
func Classify(path string) string {
	switch path {
	case "/api/v1/auth/login", "/api/v1/auth/admin/login", "/api/v1/auth/hospital/login",
		"/api/v1/auth/register", "/api/v1/auth/refresh":
		return LimitAuth
	case "/api/v1/emergency/call":
		return LimitEmergency
	}
	if strings.HasPrefix(path, "/api/v1/admin/") || strings.HasPrefix(path, "/api/v1/audit/") {
		return LimitAdmin
	}
	return LimitAPI
}

// LimitFor returns the effective request budget for a request type and role.
func (cfg RateLimitConfig) LimitFor(kind, role string) Rule {
	rule, ok := cfg.Rules[kind]
	if !ok {
		rule = cfg.Rules[LimitAPI]
	}
	m, ok := cfg.Multipliers[role]
	if !ok {
		m = 1.0
	}
	n := int(math.Floor(float64(rule.Requests) * m))
	if n < 1 {
		n = 1
	}
	return Rule{Requests: n, Window: rule.Window}
}

// Decision is a limiter verdict for one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests against a rule.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

// RateLimit enforces per-type, per-role budgets keyed by user id, or client
// IP for anonymous callers. Limiter errors let the request through.
func RateLimit(cfg RateLimitConfig, limiter Limiter, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			kind := Classify(req.URL.Path)
			role, subject := "", c.RealIP()
			if p, ok := auth.PrincipalFromContext(req.Context()); ok {
				role, subject = p.Role, p.ID.String()
			}
			rule := cfg.LimitFor(kind, role)

			d, err := limiter.Allow(req.Context(), kind+":"+subject, rule)
			if err != nil {
				logger.Warn().Err(err).Str("request_id", requestIDOf(c)).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// RedisLimiter is a fixed-window counter shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix + "rate_limit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	k := l.prefix + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, rule.Window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return windowDecision(incr.Val(), ttl.Val(), rule), nil
}

func windowDecision(count int64, ttl time.Duration, rule Rule) Decision {
	if ttl <= 0 {
		ttl = rule.Window
	}
	d := Decision{Limit: rule.Requests, Allowed: count <= int64(rule.Requests)}
	if d.Allowed {
		d.Remaining = rule.Requests - int(count)
	} else {
		d.RetryAfter = ttl
	}
	return d
}

// MemoryLimiter keeps token buckets in process, refilled at
// Requests/Window with a burst of Requests.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
	now     func() time.Time
}

// Buckets idle this long have refilled under every default rule.
const bucketIdle = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	k := key + "/" + strconv.Itoa(rule.Requests)
	b, ok := l.buckets[k]
	if !ok {
		every := rate.Limit(float64(rule.Requests) / rule.Window.Seconds())
		b = &bucket{limiter: rate.NewLimiter(every, rule.Requests)}
		l.buckets[k] = b
	}
	b.lastSeen = now
	l.calls++
	if l.calls%1024 == 0 {
		l.sweep(now, bucketIdle)
	}
	l.mu.Unlock()

	d := Decision{Limit: rule.Requests}
	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		d.RetryAfter = delay
		return d, nil
	}
	d.Allowed = true
	d.Remaining = int(b.limiter.TokensAt(now))
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

// sweep drops buckets idle for longer than idle. Callers hold mu.
func (l *MemoryLimiter) sweep(now time.Time, idle time.Duration) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(l.buckets, k)
		}
	}
}
