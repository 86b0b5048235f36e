package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	// Revocations, when set, rejects tokens revoked by logout.
	Revocations RevocationStore
	// Skipper marks public routes. A valid bearer token on a skipped route
	// still identifies the caller; an invalid one is ignored.
	Skipper func(c echo.Context) bool
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			public := cfg.Skipper != nil && cfg.Skipper(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if public {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			p, herr := authenticate(c, cfg, authHeader)
			if herr != nil {
				if public {
					return next(c)
				}
				return herr
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			c.Set("user_id", p.ID.String())
			c.Set("user_role", p.Role)
			return next(c)
		}
	}
}

func authenticate(c echo.Context, cfg JWTConfig, authHeader string) (*Principal, *echo.HTTPError) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims, err := parseClaims(strings.TrimSpace(parts[1]), cfg.SigningKey, cfg.Issuer)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if claims.TokenUse != tokenUseAccess {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token type")
	}

	p, err := principalFromClaims(claims)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	if cfg.Revocations != nil && p.JTI != "" {
		revoked, err := cfg.Revocations.IsRevoked(c.Request().Context(), p.JTI)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "unable to verify token")
		}
		if revoked {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
		}
	}
	return p, nil
}

// BearerToken returns the raw bearer token from the request, or "".
func BearerToken(c echo.Context) string {
	parts := strings.SplitN(c.Request().Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
