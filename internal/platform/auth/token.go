package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWrongTokenUse = errors.New("invalid token type")
)

// TokenPair is returned by every login endpoint.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Subject describes whom a token is issued to.
type Subject struct {
	ID         uuid.UUID
	Role       string
	Type       string
	HospitalID *uuid.UUID
}

// TokenIssuer signs and parses HS256 tokens.
type TokenIssuer struct {
	issuer     string
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(issuer string, key []byte, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{issuer: issuer, key: key, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// Issue returns a fresh access/refresh pair.
func (t *TokenIssuer) Issue(sub Subject) (*TokenPair, error) {
	access, err := t.sign(sub, tokenUseAccess, t.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := t.sign(sub, tokenUseRefresh, t.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(t.accessTTL.Seconds()),
	}, nil
}

// IssueAccess returns only a new access token.
func (t *TokenIssuer) IssueAccess(sub Subject) (string, error) {
	return t.sign(sub, tokenUseAccess, t.accessTTL)
}

func (t *TokenIssuer) sign(sub Subject, use string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sub.ID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     sub.Role,
		Type:     sub.Type,
		TokenUse: use,
	}
	if sub.HospitalID != nil {
		claims.HospitalID = sub.HospitalID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", use, err)
	}
	return signed, nil
}

// ParseAccess validates an access token.
func (t *TokenIssuer) ParseAccess(raw string) (*Principal, error) {
	return t.parse(raw, tokenUseAccess)
}

// ParseRefresh validates a refresh token.
func (t *TokenIssuer) ParseRefresh(raw string) (*Principal, error) {
	return t.parse(raw, tokenUseRefresh)
}

func (t *TokenIssuer) parse(raw, use string) (*Principal, error) {
	claims, err := parseClaims(raw, t.key, t.issuer)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != use {
		return nil, ErrWrongTokenUse
	}
	p, err := principalFromClaims(claims)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return p, nil
}

func parseClaims(raw string, key []byte, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
