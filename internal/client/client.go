// Package client is the Go consumer of the LeadLine API. It keeps the token
// pair from login and refreshes the access token transparently: a request
// that comes back 401 triggers one refresh-and-replay, and a failed refresh
// ends the session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"leadline.org/internal/auth"
	"leadline.org/internal/crm"
)

// ErrSessionExpired is returned when the refresh token is missing or
// rejected, the refresh call itself fails, or the replayed request is denied
// again. The caller must log in again.
var ErrSessionExpired = errors.New("client: session expired")

// APIError is a non-2xx response that is not an authentication failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// session holds the token pair. Guarded by its own mutex so concurrent
// requests observe a consistent pair mid-refresh.
type session struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func (s *session) tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.refresh
}

func (s *session) setAccess(access string) {
	s.mu.Lock()
	s.access = access
	s.mu.Unlock()
}

func (s *session) set(access, refresh string) {
	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	s.mu.Unlock()
}

func (s *session) clear() {
	s.set("", "")
}

// Client talks to a LeadLine API server.
type Client struct {
	base     string
	http     *http.Client
	session  session
	sf       singleflight.Group
	onLogout func()
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogoutHandler is called once whenever the session ends because the
// refresh token was rejected or missing.
func WithLogoutHandler(fn func()) Option {
	return func(c *Client) {
		if fn != nil {
			c.onLogout = fn
		}
	}
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		onLogout: func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokens seeds the token pair, e.g. from persisted storage.
func (c *Client) SetTokens(access, refresh string) {
	c.session.set(access, refresh)
}

// Session types mirror the server's responses.

type Session struct {
	User         auth.Identity `json:"user"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

type refreshResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login authenticates and stores the returned token pair.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.doPublic(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return Session{}, err
	}
	c.session.set(out.AccessToken, out.RefreshToken)
	return out, nil
}

// Logout tells the server goodbye and drops the local token pair either way.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.session.clear()
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		return err
	}
	return nil
}

// Me returns the caller's identity.
func (c *Client) Me(ctx context.Context) (auth.Identity, error) {
	var out auth.Identity
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out, err
}

// do performs one authenticated request. On a 401 it refreshes the access
// token and replays the request exactly once; a second 401 or a failed
// refresh terminates the session.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	retried := false
	for {
		access, _ := c.session.tokens()
		status, err := c.roundTrip(ctx, method, path, access, body, out)
		if err != nil {
			return err
		}
		if status != http.StatusUnauthorized {
			return nil
		}
		if retried {
			c.endSession()
			return ErrSessionExpired
		}
		retried = true
		if err := c.refreshAccess(ctx); err != nil {
			return err
		}
	}
}

// refreshAccess exchanges the refresh token for a new access token.
// Concurrent 401s coalesce into a single refresh call.
func (c *Client) refreshAccess(ctx context.Context) error {
	_, err, _ := c.sf.Do("refresh", func() (any, error) {
		_, refresh := c.session.tokens()
		if refresh == "" {
			c.endSession()
			return nil, ErrSessionExpired
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/auth/refresh", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+refresh)

		// Any refresh failure ends the session: a rejected token, a hung
		// or failed transport, or an unreadable response all mean the
		// session cannot be renewed.
		resp, err := c.http.Do(req)
		if err != nil {
			c.endSession()
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			c.endSession()
			return nil, ErrSessionExpired
		}

		var out refreshResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			c.endSession()
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		c.session.setAccess(out.AccessToken)
		return nil, nil
	})
	return err
}

func (c *Client) endSession() {
	c.session.clear()
	c.onLogout()
}

// doPublic performs an unauthenticated request.
func (c *Client) doPublic(ctx context.Context, method, path string, body, out any) error {
	status, err := c.roundTrip(ctx, method, path, "", body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return &APIError{Status: status, Message: "invalid credentials"}
	}
	return nil
}

// roundTrip executes one HTTP exchange. A 401 is reported via the status
// return so do can decide whether to refresh; other non-2xx statuses become
// APIError.
func (c *Client) roundTrip(ctx context.Context, method, path, access string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, decodeAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// CRM helpers ---------------------------------------------------------------

func (c *Client) ListLeads(ctx context.Context, page, limit int) (crm.LeadPage, error) {
	var out crm.LeadPage
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/leads?page=%d&limit=%d", page, limit), nil, &out)
	return out, err
}

func (c *Client) CreateLead(ctx context.Context, in crm.CreateLeadInput) (*crm.Lead, error) {
	var out crm.Lead
	err := c.do(ctx, http.MethodPost, "/api/leads", map[string]string{
		"name":   in.Name,
		"email":  in.Email,
		"phone":  in.Phone,
		"source": in.Source,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConvertLead(ctx context.Context, id string) (*crm.Customer, error) {
	var out crm.Customer
	err := c.do(ctx, http.MethodPost, "/api/leads/"+id+"/convert", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCustomers(ctx context.Context, page, limit int) (crm.CustomerPage, error) {
	var out crm.CustomerPage
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/customers?page=%d&limit=%d", page, limit), nil, &out)
	return out, err
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*crm.Customer, error) {
	var out crm.Customer
	err := c.do(ctx, http.MethodGet, "/api/customers/"+id, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTasks(ctx context.Context, page, limit int) (crm.TaskPage, error) {
	var out crm.TaskPage
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks?page=%d&limit=%d", page, limit), nil, &out)
	return out, err
}

func (c *Client) OverdueTasks(ctx context.Context, page, limit int) (crm.TaskPage, error) {
	var out crm.TaskPage
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/overdue?page=%d&limit=%d", page, limit), nil, &out)
	return out, err
}
