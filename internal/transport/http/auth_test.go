package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitgrid/auth-service/internal/domain"
	redisrepo "github.com/fitgrid/auth-service/internal/repository/redis"
	"github.com/fitgrid/auth-service/internal/service/session"
	"github.com/fitgrid/auth-service/internal/transport/http/middleware"
	"github.com/fitgrid/auth-service/pkg/auth"
)

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (s *stubUserRepo) Create(_ context.Context, id string, input domain.NewUserInput) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &domain.User{
		ID:           id,
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	s.users[id] = user
	return user, nil
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubUserRepo) GetByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (s *stubUserRepo) UpdateLastLogin(context.Context, string) error { return nil }

func (s *stubUserRepo) Update(_ context.Context, userID string, upd domain.UserUpdate) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	if upd.Active != nil {
		u.Active = *upd.Active
	}
	copied := *u
	return &copied, nil
}

type stubSessionRepo struct {
	mu   sync.Mutex
	rows []domain.Session
}

func (s *stubSessionRepo) Create(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, *sess)
	return nil
}

func (s *stubSessionRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, row := range s.rows {
		if row.UserID == userID && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

func newTestHandler(t *testing.T) *AuthHandler {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	codec, err := auth.NewTokenCodec(
		auth.SigningDomain{Secret: []byte("access-secret"), Issuer: "fitgrid-auth", Audience: "fitgrid-api", TTL: 15 * time.Minute},
		auth.SigningDomain{Secret: []byte("refresh-secret"), Issuer: "fitgrid-auth", Audience: "fitgrid-api", TTL: 7 * 24 * time.Hour},
	)
	require.NoError(t, err)

	svc := session.NewAuthService(
		&stubUserRepo{users: map[string]*domain.User{}},
		&stubSessionRepo{},
		redisrepo.NewRefreshTokenStore(client),
		redisrepo.NewUserCache(client, 15*time.Minute),
		codec,
		auth.DefaultBcryptCost,
	)
	return NewAuthHandler(svc)
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeAuthResponse(t *testing.T, rec *httptest.ResponseRecorder) authResponse {
	t.Helper()
	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Kind string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Kind
}

func registerViaHTTP(t *testing.T, h *AuthHandler) authResponse {
	t.Helper()
	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email":    "a@x.com",
		"name":     "Anna",
		"password": "Passw0rd!",
		"role":     "client",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeAuthResponse(t, rec)
}

func TestRegisterEndpoint(t *testing.T) {
	h := newTestHandler(t)

	resp := registerViaHTTP(t, h)
	assert.Equal(t, "a@x.com", resp.User.Email)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)
	assert.Equal(t, 900, resp.Tokens.ExpiresIn)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)

	// Same email again conflicts.
	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email":    "a@x.com",
		"password": "Passw0rd!",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user_exists", errorKind(t, rec))
}

func TestRegisterEndpointValidation(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{"email": "not-an-email", "password": "Passw0rd!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Register, "/api/auth/register", map[string]string{"email": "a@x.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Register, "/api/auth/register", map[string]string{"email": "a@x.com", "password": "Passw0rd!", "role": "wizard"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	h := newTestHandler(t)
	registerViaHTTP(t, h)

	rec := postJSON(t, h.Login, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAuthResponse(t, rec)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)

	rec = postJSON(t, h.Login, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "WrongPass1!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorKind(t, rec))

	// Unknown email yields the identical kind; no account enumeration.
	rec = postJSON(t, h.Login, "/api/auth/login", map[string]string{"email": "nobody@x.com", "password": "Passw0rd!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorKind(t, rec))
}

func TestRefreshEndpoint(t *testing.T) {
	h := newTestHandler(t)
	registered := registerViaHTTP(t, h)

	rec := postJSON(t, h.Refresh, "/api/auth/refresh", map[string]string{"refresh_token": registered.Tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.RefreshToken) // not rotated, not re-sent
	assert.Equal(t, 900, resp.ExpiresIn)
}

func TestRefreshEndpointErrorKinds(t *testing.T) {
	h := newTestHandler(t)
	registered := registerViaHTTP(t, h)

	// Tampered token: invalid_token.
	rec := postJSON(t, h.Refresh, "/api/auth/refresh", map[string]string{"refresh_token": registered.Tokens.RefreshToken + "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", errorKind(t, rec))

	// Revoked token keeps a valid signature but a distinct kind.
	logout := middleware.AuthMiddleware(h.Logout, h.Service)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", bytes.NewReader([]byte(`{"all_devices":true}`)))
	req.Header.Set("Authorization", "Bearer "+registered.Tokens.AccessToken)
	logoutRec := httptest.NewRecorder()
	logout(logoutRec, req)
	require.Equal(t, http.StatusOK, logoutRec.Code)

	rec = postJSON(t, h.Refresh, "/api/auth/refresh", map[string]string{"refresh_token": registered.Tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_revoked", errorKind(t, rec))
}

func TestMeEndpoint(t *testing.T) {
	h := newTestHandler(t)
	registered := registerViaHTTP(t, h)

	me := middleware.AuthMiddleware(h.Me, h.Service)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Tokens.AccessToken)
	rec := httptest.NewRecorder()
	me(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var user domain.Projection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, registered.User.ID, user.ID)

	// No token, no access.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec = httptest.NewRecorder()
	me(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A refresh token is not an access token.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Tokens.RefreshToken)
	rec = httptest.NewRecorder()
	me(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	registered := registerViaHTTP(t, h)

	sessions := middleware.AuthMiddleware(h.Sessions, h.Service)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Tokens.AccessToken)
	rec := httptest.NewRecorder()
	sessions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0]["id"])
	_, err := uuid.Parse(rows[0]["id"])
	assert.NoError(t, err)
}
