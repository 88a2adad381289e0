package httpapi

import (
	"net/http"
	"strings"

	"leadline.org/internal/audit"
	"leadline.org/internal/auth"
)

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

// User management is an admin-only surface.

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		users, err := a.auth.ListUsers(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": users})
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := a.auth.GetUser(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd := auth.UserUpdate{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		}
		if req.Role != nil {
			role := auth.Role(*req.Role)
			upd.Role = &role
		}
		user, err := a.auth.UpdateUser(r.Context(), id, upd)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.updated", map[string]any{
			"admin_id": identity.ID,
			"user_id":  id,
		})
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if id == identity.ID {
			writeError(w, r, http.StatusBadRequest, "cannot delete your own account")
			return
		}
		if err := a.auth.DeleteUser(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.deleted", map[string]any{
			"admin_id": identity.ID,
			"user_id":  id,
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
