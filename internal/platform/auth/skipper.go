package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths reachable without a bearer token.
var publicPaths = map[string]bool{
	"/health":                      true,
	"/health/db":                   true,
	"/ws":                          true,
	"/api/v1/auth/register":        true,
	"/api/v1/auth/login":           true,
	"/api/v1/auth/admin/login":     true,
	"/api/v1/auth/hospital/login":  true,
	"/api/v1/auth/refresh":         true,
	"/api/v1/auth/forgot-password": true,
	"/api/v1/auth/reset-password":  true,
	"/api/v1/emergency/call":       true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	p := c.Path()
	if p == "" {
		p = c.Request().URL.Path
	}
	return IsPublicPath(p)
}

// IsPublicPath reports whether path is reachable anonymously.
func IsPublicPath(path string) bool {
	return publicPaths[strings.TrimSuffix(path, "/")] || publicPaths[path]
}
