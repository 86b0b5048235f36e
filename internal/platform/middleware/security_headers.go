package middleware

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
)

// SecurityConfig controls the headers that depend on how the API is deployed.
type SecurityConfig struct {
	// HSTSMaxAge enables Strict-Transport-Security when positive. Leave it
	// zero for plain-HTTP development servers.
	HSTSMaxAge time.Duration
	// FrameAncestors is the CSP frame-ancestors source list; empty means 'none'.
	FrameAncestors string
}

// DefaultSecurityConfig returns the production settings, or relaxed ones in
// development.
func DefaultSecurityConfig(production bool) SecurityConfig {
	if !production {
		return SecurityConfig{}
	}
	return SecurityConfig{HSTSMaxAge: 365 * 24 * time.Hour}
}

func SecurityHeaders(cfg SecurityConfig) echo.MiddlewareFunc {
	ancestors := cfg.FrameAncestors
	if ancestors == "" {
		ancestors = "'none'"
	}
	csp := "default-src 'none'; frame-ancestors " + ancestors
	frameOptions := "DENY"
	if ancestors != "'none'" {
		frameOptions = "SAMEORIGIN"
	}
	var hsts string
	if cfg.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", int64(cfg.HSTSMaxAge.Seconds()))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", frameOptions)
			h.Set("X-XSS-Protection", "0")
			h.Set("Content-Security-Policy", csp)
			if hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}
			h.Set("Referrer-Policy", "no-referrer")
			// Responses carry patient and staff data.
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
