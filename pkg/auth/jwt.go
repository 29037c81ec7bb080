package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fitgrid/auth-service/internal/domain"
)

// AccessClaims are embedded in access tokens. They carry everything a
// request needs so the token can be checked without a store lookup.
type AccessClaims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	GymID string      `json:"gym_id,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims deliberately carry only the subject and a type marker.
// Email/role/gym are excluded so a leaked refresh token is useless on its
// own and never goes stale.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

const refreshTokenType = "refresh"

// SigningDomain is one independent signing configuration. Tokens minted
// under one domain never verify under the other.
type SigningDomain struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// TokenCodec mints and validates the access and refresh tokens.
type TokenCodec struct {
	access  SigningDomain
	refresh SigningDomain
}

// NewTokenCodec validates the two signing domains and returns a codec.
// A missing secret is a startup-time misconfiguration, never a per-request
// failure.
func NewTokenCodec(access, refresh SigningDomain) (*TokenCodec, error) {
	if len(access.Secret) == 0 || len(refresh.Secret) == 0 {
		return nil, errors.New("token codec: signing secret is required")
	}
	if access.TTL <= 0 {
		access.TTL = 15 * time.Minute
	}
	if refresh.TTL <= 0 {
		refresh.TTL = 7 * 24 * time.Hour
	}
	return &TokenCodec{access: access, refresh: refresh}, nil
}

// AccessTTL returns the access-token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.access.TTL }

// RefreshTTL returns the refresh-token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refresh.TTL }

// IssueAccess creates a short-lived access token for the user.
func (c *TokenCodec) IssueAccess(user *domain.User) (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.access.Issuer,
			Audience:  jwt.ClaimStrings{c.access.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(c.access.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if user.GymID.Valid {
		claims.GymID = user.GymID.String
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.access.Secret)
}

// IssueRefresh creates a long-lived refresh token carrying only the
// subject and the "refresh" type marker.
func (c *TokenCodec) IssueRefresh(user *domain.User) (string, error) {
	now := time.Now()
	claims := &RefreshClaims{
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.refresh.Issuer,
			Audience:  jwt.ClaimStrings{c.refresh.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refresh.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.refresh.Secret)
}

// VerifyAccess validates an access token and returns its claims. Every
// failure mode (signature, issuer, audience, expiry) collapses to
// domain.ErrInvalidToken so callers cannot tell which check failed.
func (c *TokenCodec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return c.access.Secret, nil
	}, jwt.WithIssuer(c.access.Issuer), jwt.WithAudience(c.access.Audience))
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token using the refresh signing
// domain. Same single-error contract as VerifyAccess.
func (c *TokenCodec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return c.refresh.Secret, nil
	}, jwt.WithIssuer(c.refresh.Issuer), jwt.WithAudience(c.refresh.Audience))
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.TokenType != refreshTokenType {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
