package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
)

// handleActivity returns the latest recorded actions. Agents see only their
// own trail; admins see everyone's.
func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	actorID := identity.ID
	if identity.Role.IsAdmin() {
		actorID = ""
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := atoiPositive(v); err == nil && n <= 100 {
			limit = n
		}
	}

	items, err := a.activities.Recent(r.Context(), actorID, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleActivityStream pushes recorded actions to the client over
// Server-Sent Events as they happen.
func (a *API) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)

	// Initial comment establishes the stream on the client side.
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		// Same visibility rule as the listing.
		if !identity.Role.IsAdmin() && event.ActorID != identity.ID {
			continue
		}
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
