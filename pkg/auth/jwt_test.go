package auth

import (
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitgrid/auth-service/internal/domain"
)

func testCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(
		SigningDomain{Secret: []byte("access-secret"), Issuer: "fitgrid-auth", Audience: "fitgrid-api", TTL: 15 * time.Minute},
		SigningDomain{Secret: []byte("refresh-secret"), Issuer: "fitgrid-auth", Audience: "fitgrid-api", TTL: 7 * 24 * time.Hour},
	)
	require.NoError(t, err)
	return codec
}

func testUser() *domain.User {
	return &domain.User{
		ID:     "user-123",
		Email:  "a@x.com",
		Role:   domain.RoleClient,
		GymID:  sql.NullString{String: "gym-9", Valid: true},
		Active: true,
	}
}

func TestNewTokenCodecRequiresSecrets(t *testing.T) {
	_, err := NewTokenCodec(SigningDomain{}, SigningDomain{Secret: []byte("x")})
	assert.Error(t, err)

	_, err = NewTokenCodec(SigningDomain{Secret: []byte("x")}, SigningDomain{})
	assert.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := testCodec(t)

	token, err := codec.IssueAccess(testUser())
	require.NoError(t, err)

	claims, err := codec.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, domain.RoleClient, claims.Role)
	assert.Equal(t, "gym-9", claims.GymID)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	codec := testCodec(t)

	token, err := codec.IssueRefresh(testUser())
	require.NoError(t, err)

	claims, err := codec.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "refresh", claims.TokenType)
}

func TestRefreshClaimsExcludeIdentityDetails(t *testing.T) {
	codec := testCodec(t)

	token, err := codec.IssueRefresh(testUser())
	require.NoError(t, err)

	// Parse without verification to inspect the raw claim set.
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	raw := parsed.Claims.(jwt.MapClaims)
	assert.NotContains(t, raw, "email")
	assert.NotContains(t, raw, "role")
	assert.NotContains(t, raw, "gym_id")
}

func TestTokensDoNotCrossVerify(t *testing.T) {
	codec := testCodec(t)
	user := testUser()

	access, err := codec.IssueAccess(user)
	require.NoError(t, err)
	refresh, err := codec.IssueRefresh(user)
	require.NoError(t, err)

	_, err = codec.VerifyRefresh(access)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = codec.VerifyAccess(refresh)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyAccessCollapsesFailures(t *testing.T) {
	codec := testCodec(t)
	now := time.Now()

	sign := func(secret, issuer, audience string, expiresAt time.Time) string {
		claims := &AccessClaims{
			Email: "a@x.com",
			Role:  domain.RoleClient,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{audience},
				ExpiresAt: jwt.NewNumericDate(expiresAt),
				IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}

	cases := map[string]string{
		"wrong secret":   sign("other-secret", "fitgrid-auth", "fitgrid-api", now.Add(time.Hour)),
		"wrong issuer":   sign("access-secret", "someone-else", "fitgrid-api", now.Add(time.Hour)),
		"wrong audience": sign("access-secret", "fitgrid-auth", "other-api", now.Add(time.Hour)),
		"expired":        sign("access-secret", "fitgrid-auth", "fitgrid-api", now.Add(-time.Hour)),
		"garbage":        "not.a.token",
	}
	for name, token := range cases {
		_, err := codec.VerifyAccess(token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken, name)
	}
}

func TestVerifyRefreshRejectsMissingTypeMarker(t *testing.T) {
	codec := testCodec(t)

	claims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "fitgrid-auth",
			Audience:  jwt.ClaimStrings{"fitgrid-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("refresh-secret"))
	require.NoError(t, err)

	_, err = codec.VerifyRefresh(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("some-token")
	b := Fingerprint("some-token")
	c := Fingerprint("other-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
