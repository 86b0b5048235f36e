package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/admin"
	"github.com/hms/hms/internal/domain/audit"
	"github.com/hms/hms/internal/domain/hospital"
	"github.com/hms/hms/internal/domain/user"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/notification"
	"github.com/hms/hms/pkg/apperr"
)

const resetTokenTTL = time.Hour

func resetKey(token string) string { return "password_reset:" + token }

// LoginRecorder stores login attempts in the audit trail.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, a audit.LoginAttempt) error
}

// Options tunes login lockout and password reset mail.
type Options struct {
	MaxFailures int
	Lockout     time.Duration
	// ResetURL is prefixed to the reset token in the reset mail.
	ResetURL string
}

type Service struct {
	users       user.Repository
	admins      admin.AdminRepository
	accounts    hospital.AccountRepository
	hospitals   hospital.HospitalRepository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	cache       cache.Store
	logins      LoginRecorder
	email       notification.EmailSender
	opts        Options
	logger      zerolog.Logger
}

func NewService(users user.Repository, admins admin.AdminRepository, accounts hospital.AccountRepository,
	hospitals hospital.HospitalRepository, tokens *auth.TokenIssuer, revocations auth.RevocationStore,
	store cache.Store, logins LoginRecorder, email notification.EmailSender, opts Options, logger zerolog.Logger) *Service {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.Lockout <= 0 {
		opts.Lockout = 15 * time.Minute
	}
	return &Service{
		users: users, admins: admins, accounts: accounts, hospitals: hospitals,
		tokens: tokens, revocations: revocations, cache: store, logins: logins,
		email: email, opts: opts, logger: logger,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Email = strings.TrimSpace(req.Email)

	fields := map[string]string{}
	for name, v := range map[string]string{
		"username": req.Username, "fullname": req.Fullname, "email": req.Email, "password": req.Password,
	} {
		if v == "" {
			fields[name] = name + " is required"
		}
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("missing required fields", fields)
	}
	if !auth.ValidateEmail(req.Email) {
		fields["email"] = "invalid email format"
	}
	if req.PhoneNum != nil && *req.PhoneNum != "" && !auth.ValidatePhone(*req.PhoneNum) {
		fields["phone_num"] = "invalid phone number format"
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields("validation failed", fields)
	}

	role := auth.RoleUser
	if req.Role == auth.RoleDonor {
		role = auth.RoleDonor
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		Username:     req.Username,
		Fullname:     req.Fullname,
		Email:        req.Email,
		PasswordHash: hash,
		PhoneNum:     req.PhoneNum,
		Location:     req.Location,
		Role:         role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	tokens, err := s.tokens.Issue(auth.Subject{ID: u.ID, Role: u.Role, Type: auth.TypeUser})
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Tokens: tokens}, nil
}

// checkLockout fails once the username+ip pair reached MaxFailures.
func (s *Service) checkLockout(ctx context.Context, key string) error {
	var n int
	found, err := s.cache.Get(ctx, key, &n)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to read login failures")
		return nil
	}
	if found && n >= s.opts.MaxFailures {
		return apperr.TooManyRequests("too many failed login attempts")
	}
	return nil
}

func (s *Service) loginFailed(ctx context.Context, key string, attempt audit.LoginAttempt, reason string) error {
	if _, err := s.cache.Incr(ctx, key, s.opts.Lockout); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to count login failure")
	}
	attempt.Reason = reason
	s.record(ctx, attempt)
	return apperr.Unauthorized("invalid credentials")
}

func (s *Service) loginSucceeded(ctx context.Context, key string, attempt audit.LoginAttempt) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to clear login failures")
	}
	attempt.Success = true
	s.record(ctx, attempt)
}

func (s *Service) record(ctx context.Context, a audit.LoginAttempt) {
	if s.logins == nil {
		return
	}
	if err := s.logins.RecordLogin(ctx, a); err != nil {
		s.logger.Warn().Err(err).Str("username", a.Username).Msg("failed to record login attempt")
	}
}

func credentials(req LoginRequest) (string, error) {
	id := strings.TrimSpace(req.identifier())
	if id == "" || req.Password == "" {
		return "", apperr.Validation("username and password are required")
	}
	return id, nil
}

// Login authenticates an end user by username or email.
func (s *Service) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*Session, error) {
	id, err := credentials(req)
	if err != nil {
		return nil, err
	}
	key := auth.LoginFailureKey(id, client.IP)
	if err := s.checkLockout(ctx, key); err != nil {
		return nil, err
	}
	attempt := audit.LoginAttempt{Username: id, UserType: auth.TypeUser, IPAddress: client.IP, UserAgent: client.UserAgent}

	var u *user.User
	if strings.Contains(id, "@") {
		u, err = s.users.GetByEmail(ctx, id)
	} else {
		u, err = s.users.GetByUsername(ctx, id)
	}
	if apperr.IsNotFound(err) {
		return nil, s.loginFailed(ctx, key, attempt, "unknown user")
	}
	if err != nil {
		return nil, err
	}
	attempt.UserID, attempt.UserRole = &u.ID, u.Role
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, s.loginFailed(ctx, key, attempt, "invalid password")
	}

	tokens, err := s.tokens.Issue(auth.Subject{ID: u.ID, Role: u.Role, Type: auth.TypeUser})
	if err != nil {
		return nil, err
	}
	s.loginSucceeded(ctx, key, attempt)
	return &Session{User: u, Tokens: tokens}, nil
}

func (s *Service) AdminLogin(ctx context.Context, req LoginRequest, client ClientInfo) (*Session, error) {
	id, err := credentials(req)
	if err != nil {
		return nil, err
	}
	key := auth.LoginFailureKey(id, client.IP)
	if err := s.checkLockout(ctx, key); err != nil {
		return nil, err
	}
	attempt := audit.LoginAttempt{Username: id, UserType: auth.TypeAdmin, UserRole: auth.RoleAdmin, IPAddress: client.IP, UserAgent: client.UserAgent}

	a, err := s.admins.GetByUsername(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, s.loginFailed(ctx, key, attempt, "unknown admin")
	}
	if err != nil {
		return nil, err
	}
	attempt.UserID = &a.ID
	if !auth.CheckPassword(a.PasswordHash, req.Password) {
		return nil, s.loginFailed(ctx, key, attempt, "invalid password")
	}

	tokens, err := s.tokens.Issue(auth.Subject{ID: a.ID, Role: auth.RoleAdmin, Type: auth.TypeAdmin})
	if err != nil {
		return nil, err
	}
	s.loginSucceeded(ctx, key, attempt)
	return &Session{Admin: a, Tokens: tokens}, nil
}

// HospitalLogin issues hospital_admin tokens carrying the managed hospital id.
func (s *Service) HospitalLogin(ctx context.Context, req LoginRequest, client ClientInfo) (*Session, error) {
	id, err := credentials(req)
	if err != nil {
		return nil, err
	}
	key := auth.LoginFailureKey(id, client.IP)
	if err := s.checkLockout(ctx, key); err != nil {
		return nil, err
	}
	attempt := audit.LoginAttempt{Username: id, UserType: auth.TypeHospital, UserRole: auth.RoleHospitalAdmin, IPAddress: client.IP, UserAgent: client.UserAgent}

	acct, err := s.accounts.GetByUsername(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, s.loginFailed(ctx, key, attempt, "unknown hospital account")
	}
	if err != nil {
		return nil, err
	}
	attempt.UserID = &acct.ID
	if !auth.CheckPassword(acct.PasswordHash, req.Password) {
		return nil, s.loginFailed(ctx, key, attempt, "invalid password")
	}
	h, err := s.hospitals.GetByAccountID(ctx, acct.ID)
	if err != nil {
		return nil, err
	}

	tokens, err := s.tokens.Issue(auth.Subject{ID: acct.ID, Role: auth.RoleHospitalAdmin, Type: auth.TypeHospital, HospitalID: &h.ID})
	if err != nil {
		return nil, err
	}
	s.loginSucceeded(ctx, key, attempt)
	return &Session{Hospital: &HospitalProfile{Account: acct, Hospital: h}, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new access token with the same claims.
func (s *Service) Refresh(ctx context.Context, raw string) (*AccessToken, error) {
	if raw == "" {
		return nil, apperr.Unauthorized("refresh token required")
	}
	p, err := s.tokens.ParseRefresh(raw)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, p.JTI)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, apperr.Unauthorized("token has been revoked")
		}
	}
	access, err := s.tokens.IssueAccess(auth.Subject{ID: p.ID, Role: p.Role, Type: p.Type, HospitalID: p.HospitalID})
	if err != nil {
		return nil, err
	}
	return &AccessToken{AccessToken: access, TokenType: "Bearer"}, nil
}

// Logout revokes the caller's access token and, when given, its refresh token.
func (s *Service) Logout(ctx context.Context, p *auth.Principal, refreshToken string) error {
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, p.JTI, p.ExpiresAt); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	rp, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil || rp.ID != p.ID {
		return nil
	}
	return s.revocations.Revoke(ctx, rp.JTI, rp.ExpiresAt)
}

func (s *Service) Profile(ctx context.Context, p *auth.Principal) (*Profile, error) {
	switch p.Type {
	case auth.TypeAdmin:
		a, err := s.admins.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return &Profile{Type: p.Type, Admin: a}, nil
	case auth.TypeHospital:
		acct, err := s.accounts.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		h, err := s.hospitals.GetByAccountID(ctx, acct.ID)
		if err != nil && !apperr.IsNotFound(err) {
			return nil, err
		}
		return &Profile{Type: p.Type, Hospital: &HospitalProfile{Account: acct, Hospital: h}}, nil
	default:
		u, err := s.users.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return &Profile{Type: auth.TypeUser, User: u}, nil
	}
}

// passwordOwner resolves the stored hash and setter for any principal type.
func (s *Service) passwordOwner(ctx context.Context, p *auth.Principal) (string, func(string) error, error) {
	switch p.Type {
	case auth.TypeAdmin:
		a, err := s.admins.GetByID(ctx, p.ID)
		if err != nil {
			return "", nil, err
		}
		return a.PasswordHash, func(h string) error { return s.admins.UpdatePassword(ctx, a.ID, h) }, nil
	case auth.TypeHospital:
		acct, err := s.accounts.GetByID(ctx, p.ID)
		if err != nil {
			return "", nil, err
		}
		return acct.PasswordHash, func(h string) error { return s.accounts.UpdatePassword(ctx, acct.ID, h) }, nil
	default:
		u, err := s.users.GetByID(ctx, p.ID)
		if err != nil {
			return "", nil, err
		}
		return u.PasswordHash, func(h string) error { return s.users.UpdatePassword(ctx, u.ID, h) }, nil
	}
}

func (s *Service) ChangePassword(ctx context.Context, p *auth.Principal, req ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperr.Validation("current_password and new_password are required")
	}
	current, set, err := s.passwordOwner(ctx, p)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(current, req.CurrentPassword) {
		return apperr.Validation("current password is incorrect")
	}
	if err := auth.ValidatePasswordStrength(req.NewPassword); err != nil {
		return apperr.Validation(err.Error())
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return set(hash)
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ForgotPassword mails a reset token when the email belongs to a user. It
// reports success either way so callers cannot discover which accounts exist.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Required("email")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if apperr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, resetKey(token), u.ID.String(), resetTokenTTL); err != nil {
		return apperr.Unavailable("password reset is unavailable", err)
	}

	body := fmt.Sprintf("Hello %s,\n\nUse this token to reset your password: %s\n", u.Fullname, token)
	if s.opts.ResetURL != "" {
		body = fmt.Sprintf("Hello %s,\n\nReset your password here: %s%s\n", u.Fullname, s.opts.ResetURL, token)
	}
	body += "\nThe link expires in one hour. Ignore this message if you did not ask for it.\n"
	if err := s.email.SendEmail(ctx, u.Email, "Password reset", body); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID.String()).Msg("failed to send password reset email")
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Token == "" || req.NewPassword == "" {
		return apperr.Validation("token and new_password are required")
	}
	var raw string
	found, err := s.cache.Get(ctx, resetKey(req.Token), &raw)
	if err != nil {
		return apperr.Unavailable("password reset is unavailable", err)
	}
	if !found {
		return apperr.Validation("invalid or expired reset token")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return apperr.Validation("invalid or expired reset token")
	}
	if err := auth.ValidatePasswordStrength(req.NewPassword); err != nil {
		return apperr.Validation(err.Error())
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, resetKey(req.Token)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to delete used reset token")
	}
	return nil
}
