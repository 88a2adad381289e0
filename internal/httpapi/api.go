package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"leadline.org/internal/audit"
	"leadline.org/internal/auth"
	"leadline.org/internal/config"
	"leadline.org/internal/crm"
	"leadline.org/internal/obs"
	"leadline.org/internal/stream"
)

// ReadyProbe reports whether the service can serve traffic (DB reachable).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Auth       *auth.Service
	CRM        *crm.Service
	Activities audit.ActivityStore
	Stream     *stream.Stream
	Ready      ReadyProbe
	Version    string
	HTTP       config.HTTPConfig
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	crm        *crm.Service
	activities audit.ActivityStore
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string
	cfg        config.HTTPConfig
}

func New(deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       deps.Auth,
		crm:        deps.CRM,
		activities: deps.Activities,
		stream:     deps.Stream,
		readyProbe: deps.Ready,
		version:    deps.Version,
		cfg:        deps.HTTP,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)

	a.mux.HandleFunc("/api/leads", a.handleLeadsCollection)
	a.mux.HandleFunc("/api/leads/", a.handleLeadResource)
	a.mux.HandleFunc("/api/customers", a.handleCustomersCollection)
	a.mux.HandleFunc("/api/customers/", a.handleCustomerResource)
	a.mux.HandleFunc("/api/tasks", a.handleTasksCollection)
	a.mux.HandleFunc("/api/tasks/", a.handleTaskResource)

	a.mux.HandleFunc("/api/users", a.handleUsersCollection)
	a.mux.HandleFunc("/api/users/", a.handleUserResource)

	a.mux.HandleFunc("/api/activity", a.handleActivity)
	a.mux.HandleFunc("/api/activity/stream", a.handleActivityStream)
	a.mux.HandleFunc("/api/dashboard/stats", a.handleDashboardStats)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := obs.Instrument(a.mux)
	h = a.withAuth(h)
	if a.cfg.RateLimitRPS > 0 {
		h = RateLimit(h, a.cfg.RateLimitBurst, a.cfg.RateLimitRPS)
	}
	if a.cfg.MaxBodyBytes > 0 {
		h = MaxBodyBytes(h, a.cfg.MaxBodyBytes)
	}
	h = CORS(h, a.cfg.CORSOrigin)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "leadline-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "authentication required")
		return
	}

	leads, err := a.crm.ListLeads(r.Context(), identity, crm.LeadFilter{}, crm.Page{Number: 1, Limit: 1})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	customers, err := a.crm.CountCustomers(r.Context(), identity)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	openTasks, err := a.crm.CountOpenTasks(r.Context(), identity)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	overdue, err := a.crm.OverdueTasks(r.Context(), identity, crm.Page{Number: 1, Limit: 1})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"leads":         leads.Total,
		"customers":     customers,
		"open_tasks":    openTasks,
		"overdue_tasks": overdue.Total,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// unauthorized writes a 401 with the challenge header the refreshing client
// keys off.
func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="leadline"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps service sentinels onto HTTP statuses. Forbidden and
// NotFound stay distinct: a record that exists but belongs to someone else is
// a 403, never a 404.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		unauthorized(w, r, "authentication required")
	case errors.Is(err, auth.ErrInvalidRefresh):
		writeError(w, r, http.StatusForbidden, "invalid refresh token")
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, crm.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, crm.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, crm.ErrInvalidInput),
		errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// parsePage reads ?page= and ?limit= query parameters.
func parsePage(r *http.Request) crm.Page {
	q := r.URL.Query()
	p := crm.Page{Number: 1, Limit: 10}
	if v := q.Get("page"); v != "" {
		if n, err := atoiPositive(v); err == nil {
			p.Number = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := atoiPositive(v); err == nil {
			p.Limit = n
		}
	}
	return p
}

func atoiPositive(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(c-'0')
		if n > 1<<30 {
			return 0, errors.New("out of range")
		}
	}
	if n < 1 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
