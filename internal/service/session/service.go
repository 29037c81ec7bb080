package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fitgrid/auth-service/internal/domain"
	"github.com/fitgrid/auth-service/pkg/auth"
)

type UserRepository interface {
	Create(ctx context.Context, id string, input domain.NewUserInput) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	Update(ctx context.Context, userID string, upd domain.UserUpdate) (*domain.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error)
}

type RefreshTokenStore interface {
	Put(ctx context.Context, userID, token string, ttl time.Duration) error
	IsValid(ctx context.Context, userID, token string) (bool, error)
	Revoke(ctx context.Context, userID, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

type UserCache interface {
	Get(ctx context.Context, userID string) (*domain.Projection, error)
	Put(ctx context.Context, projection *domain.Projection) error
	Invalidate(ctx context.Context, userID string) error
}

// AuthService orchestrates the register / login / refresh / logout flows
// over injected collaborators. The refresh-token store is authoritative
// for live token validity; the session table is audit only.
type AuthService struct {
	users        UserRepository
	sessions     SessionRepository
	refreshStore RefreshTokenStore
	userCache    UserCache // optional, can be nil
	codec        *auth.TokenCodec
	bcryptCost   int
}

func NewAuthService(users UserRepository, sessions SessionRepository, refreshStore RefreshTokenStore, userCache UserCache, codec *auth.TokenCodec, bcryptCost int) *AuthService {
	return &AuthService{
		users:        users,
		sessions:     sessions,
		refreshStore: refreshStore,
		userCache:    userCache,
		codec:        codec,
		bcryptCost:   bcryptCost,
	}
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Role     domain.Role
	GymID    string
}

// ClientMeta is the request metadata recorded in the session audit row.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User   *domain.Projection
	Tokens domain.TokenPair
}

// Register creates a user and issues its first token pair. If any step
// after the user insert fails, the user row is kept and no tokens are
// returned; the caller retries via login.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, meta ClientMeta) (*AuthResult, error) {
	existing, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrUserExists
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %v", err)
	}

	role := input.Role
	if role == "" {
		role = domain.RoleClient
	}

	user, err := s.users.Create(ctx, uuid.NewString(), domain.NewUserInput{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: hash,
		Role:         role,
		GymID:        input.GymID,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.warmUserCache(ctx, user)

	return &AuthResult{User: user.Project(), Tokens: tokens}, nil
}

// Login verifies credentials and issues a token pair. The active check
// runs before the password comparison result is revealed so disabled
// accounts get a distinct, non-enumerating response.
func (s *AuthService) Login(ctx context.Context, email, password string, meta ClientMeta) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, domain.ErrAccountDisabled
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	// Best-effort; a failed timestamp never aborts a valid login.
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Printf("[AUTH] Warning: failed to update last login for user %s: %v", user.ID, err)
	}

	tokens, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.warmUserCache(ctx, user)

	return &AuthResult{User: user.Project(), Tokens: tokens}, nil
}

// Refresh mints a new access token for a live refresh token. The refresh
// token is not rotated; presenting the same token twice is legitimate and
// both calls succeed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return "", domain.ErrInvalidToken
	}

	valid, err := s.refreshStore.IsValid(ctx, claims.Subject, refreshToken)
	if err != nil {
		return "", err
	}
	if !valid {
		return "", domain.ErrTokenRevoked
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if user == nil || !user.Active {
		return "", domain.ErrInvalidUser
	}

	accessToken, err := s.codec.IssueAccess(user)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %v", err)
	}
	return accessToken, nil
}

// LogoutInput selects what to revoke. Both fields may be set.
type LogoutInput struct {
	RefreshToken string
	AllDevices   bool
}

// Logout revokes one named refresh token and/or all tokens for the
// already-authenticated user. Revocation is idempotent; revoking nothing
// is still success.
func (s *AuthService) Logout(ctx context.Context, userID string, input LogoutInput) error {
	if input.RefreshToken != "" {
		if err := s.refreshStore.Revoke(ctx, userID, input.RefreshToken); err != nil {
			return err
		}
	}
	if input.AllDevices {
		if err := s.refreshStore.RevokeAll(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// GetUser returns the user projection, read through the cache. A cache
// miss or cache failure falls back to the durable store; absence there is
// the only "user does not exist".
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.Projection, error) {
	if s.userCache != nil {
		cached, err := s.userCache.Get(ctx, userID)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			log.Printf("[AUTH] Warning: user cache read failed for %s: %v", userID, err)
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidUser
	}

	s.warmUserCache(ctx, user)
	return user.Project(), nil
}

// UpdateUser applies a whitelisted field update and invalidates the user
// projection before reporting success. Invalidation failure fails the
// call: a stale projection surviving an accepted write is worse than a
// retried update.
func (s *AuthService) UpdateUser(ctx context.Context, userID string, upd domain.UserUpdate) (*domain.Projection, error) {
	user, err := s.users.Update(ctx, userID, upd)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidUser
	}

	if s.userCache != nil {
		if err := s.userCache.Invalidate(ctx, userID); err != nil {
			return nil, err
		}
	}
	return user.Project(), nil
}

// SessionHistory lists recent session audit rows for a user.
func (s *AuthService) SessionHistory(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	return s.sessions.ListByUser(ctx, userID, limit)
}

// issueSession mints the token pair, records the refresh token in the
// cache, then writes the audit row. The cache write precedes the durable
// write so a reported success always means an immediately usable refresh
// token; a failed audit write fails closed and the cache record is
// removed again.
func (s *AuthService) issueSession(ctx context.Context, user *domain.User, meta ClientMeta) (domain.TokenPair, error) {
	accessToken, err := s.codec.IssueAccess(user)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to issue access token: %v", err)
	}
	refreshToken, err := s.codec.IssueRefresh(user)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to issue refresh token: %v", err)
	}

	refreshTTL := s.codec.RefreshTTL()
	if err := s.refreshStore.Put(ctx, user.ID, refreshToken, refreshTTL); err != nil {
		return domain.TokenPair{}, err
	}

	sess := &domain.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		TokenHash:    auth.Fingerprint(refreshToken),
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		ExpiresAt:    time.Now().Add(refreshTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		if rerr := s.refreshStore.Revoke(ctx, user.ID, refreshToken); rerr != nil {
			log.Printf("[AUTH] Warning: failed to clean up refresh token after session write failure: %v", rerr)
		}
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.codec.AccessTTL().Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (s *AuthService) warmUserCache(ctx context.Context, user *domain.User) {
	if s.userCache == nil {
		return
	}
	if err := s.userCache.Put(ctx, user.Project()); err != nil {
		log.Printf("[AUTH] Warning: failed to warm user cache for %s: %v", user.ID, err)
	}
}

// AccessTokenTTLSeconds is the expires_in value reported to callers.
func (s *AuthService) AccessTokenTTLSeconds() int {
	return int(s.codec.AccessTTL().Seconds())
}

// VerifyAccessToken validates an access token for the HTTP middleware.
func (s *AuthService) VerifyAccessToken(tokenString string) (*auth.AccessClaims, error) {
	return s.codec.VerifyAccess(tokenString)
}
