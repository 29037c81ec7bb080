package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fitgrid/auth-service/internal/domain"
	"github.com/fitgrid/auth-service/internal/service/session"
	"github.com/fitgrid/auth-service/internal/transport/http/middleware"
	"github.com/fitgrid/auth-service/pkg/httputil"
	"github.com/fitgrid/auth-service/pkg/useragent"
)

type AuthHandler struct {
	Service *session.AuthService
}

func NewAuthHandler(svc *session.AuthService) *AuthHandler {
	return &AuthHandler{Service: svc}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type authResponse struct {
	User   *domain.Projection `json:"user"`
	Tokens tokenResponse      `json:"tokens"`
}

func clientMeta(r *http.Request) session.ClientMeta {
	return session.ClientMeta{
		IPAddress: useragent.ExtractIPAddress(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
		GymID    string `json:"gym_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_input", "A valid email is required")
		return
	}
	if len(req.Password) < 8 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_input", "Password must be at least 8 characters")
		return
	}
	role := domain.Role(req.Role)
	if req.Role != "" && !role.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_input", "Unknown role")
		return
	}

	result, err := h.Service.Register(r.Context(), session.RegisterInput{
		Email:    req.Email,
		Name:     strings.TrimSpace(req.Name),
		Password: req.Password,
		Role:     role,
		GymID:    req.GymID,
	}, clientMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toAuthResponse(result))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	result, err := h.Service.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password, clientMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toAuthResponse(result))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_input", "refresh_token is required")
		return
	}

	accessToken, err := h.Service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   h.Service.AccessTokenTTLSeconds(),
		TokenType:   "Bearer",
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
		AllDevices   bool   `json:"all_devices"`
	}
	// An empty body is a valid logout request.
	_ = json.NewDecoder(r.Body).Decode(&req)

	err := h.Service.Logout(r.Context(), claims.Subject, session.LogoutInput{
		RefreshToken: req.RefreshToken,
		AllDevices:   req.AllDevices,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	user, err := h.Service.GetUser(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	sessions, err := h.Service.SessionHistory(r.Context(), claims.Subject, 20)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	type sessionRow struct {
		ID        string `json:"id"`
		IPAddress string `json:"ip_address"`
		UserAgent string `json:"user_agent"`
		CreatedAt string `json:"created_at"`
		ExpiresAt string `json:"expires_at"`
	}
	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, sessionRow{
			ID:        s.ID,
			IPAddress: s.IPAddress,
			UserAgent: useragent.Describe(s.UserAgent),
			CreatedAt: s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			ExpiresAt: s.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

func toAuthResponse(result *session.AuthResult) authResponse {
	return authResponse{
		User: result.User,
		Tokens: tokenResponse{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
			ExpiresIn:    result.Tokens.ExpiresIn,
			TokenType:    result.Tokens.TokenType,
		},
	}
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
// Transient store failures get a 503 so clients know the rejection is
// retryable, never a definitive auth failure.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserExists):
		httputil.WriteError(w, http.StatusConflict, "user_exists", "An account with this email already exists")
	case errors.Is(err, domain.ErrInvalidCredentials):
		httputil.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, domain.ErrAccountDisabled):
		httputil.WriteError(w, http.StatusForbidden, "account_disabled", "This account is disabled")
	case errors.Is(err, domain.ErrInvalidToken):
		httputil.WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
	case errors.Is(err, domain.ErrTokenRevoked):
		httputil.WriteError(w, http.StatusUnauthorized, "token_revoked", "Refresh token has been revoked")
	case errors.Is(err, domain.ErrInvalidUser):
		httputil.WriteError(w, http.StatusUnauthorized, "invalid_user", "User not found or inactive")
	case errors.Is(err, domain.ErrStoreUnavailable):
		httputil.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "Service temporarily unavailable")
	default:
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
