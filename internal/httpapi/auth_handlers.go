package httpapi

import (
	"errors"
	"net/http"
	"time"

	"leadline.org/internal/audit"
	"leadline.org/internal/auth"
	"leadline.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User         auth.Identity `json:"user"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

type refreshResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			obs.CountLogin("denied")
			unauthorized(w, r, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	obs.CountLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": session.User.ID,
		"email":   session.User.Email,
	})

	writeJSON(w, http.StatusOK, sessionResponse{
		User: auth.Identity{
			ID:    session.User.ID,
			Name:  session.User.Name,
			Email: session.User.Email,
			Role:  session.User.Role,
		},
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.AccessExpiresAt,
	})
}

// handleRefresh exchanges a refresh token, presented as the bearer
// credential, for a fresh access token. A missing token is 401; a token that
// fails verification, or whose user no longer exists, is terminal and maps to
// 403 so clients know not to retry.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		obs.CountRefresh("denied")
		unauthorized(w, r, err.Error())
		return
	}

	access, expiresAt, err := a.auth.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefresh) {
			obs.CountRefresh("invalid")
			writeError(w, r, http.StatusForbidden, "invalid refresh token")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	obs.CountRefresh("ok")
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: access,
		ExpiresAt:   expiresAt,
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := requireRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.Register(r.Context(), req.Name, req.Email, req.Password, auth.Role(req.Role))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"admin_id": identity.ID,
		"user_id":  user.ID,
		"role":     string(user.Role),
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// handleLogout exists for session symmetry. Tokens are stateless, so there is
// nothing to revoke server-side; clients discard their pair.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{"user_id": identity.ID})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}
