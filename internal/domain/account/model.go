package account

import (
	"github.com/hms/hms/internal/domain/admin"
	"github.com/hms/hms/internal/domain/hospital"
	"github.com/hms/hms/internal/domain/user"
	"github.com/hms/hms/internal/platform/auth"
)

type RegisterRequest struct {
	Username string  `json:"username"`
	Fullname string  `json:"fullname"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	PhoneNum *string `json:"phone_num"`
	Location *string `json:"location"`
	Role     string  `json:"role"`
}

// LoginRequest accepts either a username or an email address in Username.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) identifier() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Email
}

// ClientInfo identifies where a request came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Session is returned by register and every login endpoint. Exactly one of
// User, Admin or Hospital is set.
type Session struct {
	User     *user.User       `json:"user,omitempty"`
	Admin    *admin.Admin     `json:"admin,omitempty"`
	Hospital *HospitalProfile `json:"hospital,omitempty"`
	Tokens   *auth.TokenPair  `json:"tokens"`
}

// HospitalProfile pairs a hospital login with the hospital it manages.
type HospitalProfile struct {
	Account  *hospital.Account  `json:"account"`
	Hospital *hospital.Hospital `json:"hospital"`
}

// Profile is what GET /auth/profile returns for the caller's principal type.
type Profile struct {
	Type     string           `json:"type"`
	User     *user.User       `json:"user,omitempty"`
	Admin    *admin.Admin     `json:"admin,omitempty"`
	Hospital *HospitalProfile `json:"hospital,omitempty"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
