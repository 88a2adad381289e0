package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"leadline.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// publicPaths skip the guard: credential entry points and operational probes.
// The refresh endpoint is public from the guard's point of view because it
// authenticates with the refresh token, not an access token.
var publicPaths = []string{
	"/api/auth/login",
	"/api/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth verifies the bearer access token, re-loads the user, and attaches
// the resulting identity to the request context. Everything not explicitly
// public is protected.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r, err.Error())
			return
		}

		identity, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				unauthorized(w, r, "invalid or expired token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireIdentity pulls the verified caller out of the context.
func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "authentication required")
		return auth.Identity{}, false
	}
	return identity, true
}

// requireRole gates an already-authenticated caller on role. The caller is
// known, so the failure is 403, not 401.
func requireRole(w http.ResponseWriter, r *http.Request, role auth.Role) (auth.Identity, bool) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return auth.Identity{}, false
	}
	if identity.Role != role {
		writeError(w, r, http.StatusForbidden, "insufficient role")
		return auth.Identity{}, false
	}
	return identity, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
