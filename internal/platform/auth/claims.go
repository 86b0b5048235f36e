package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles.
const (
	RoleUser            = "user"
	RoleDoctor          = "doctor"
	RoleHospitalAdmin   = "hospital_admin"
	RoleAdmin           = "admin"
	RoleDonor           = "donor"
	RoleAmbulanceDriver = "ambulance_driver"
)

// AllRoles lists every role a user account may hold.
var AllRoles = []string{RoleUser, RoleDoctor, RoleHospitalAdmin, RoleAdmin, RoleDonor, RoleAmbulanceDriver}

// IsValidRole reports whether role is a known role.
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Principal types. Each maps to its own account table.
const (
	TypeUser     = "user"
	TypeAdmin    = "admin"
	TypeHospital = "hospital"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	Type       string `json:"type"`
	HospitalID string `json:"hospital_id,omitempty"`
	TokenUse   string `json:"token_use"`
}

// Principal is the authenticated caller.
type Principal struct {
	ID         uuid.UUID
	Role       string
	Type       string
	HospitalID *uuid.UUID
	JTI        string
	ExpiresAt  time.Time
}

// IsAdmin reports whether the caller holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// OwnsHospital reports whether the caller is the hospital account for id.
func (p *Principal) OwnsHospital(id uuid.UUID) bool {
	return p != nil && p.HospitalID != nil && *p.HospitalID == id
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.ID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Role
	}
	return ""
}

func TypeFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Type
	}
	return ""
}

func principalFromClaims(claims *Claims) (*Principal, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, err
	}
	p := &Principal{ID: id, Role: claims.Role, Type: claims.Type, JTI: claims.ID}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.HospitalID != "" {
		hid, err := uuid.Parse(claims.HospitalID)
		if err != nil {
			return nil, err
		}
		p.HospitalID = &hid
	}
	return p, nil
}
