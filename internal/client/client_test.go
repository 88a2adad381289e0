package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadline.org/internal/crm"
)

// fakeServer is a minimal API double: it validates bearer tokens against a
// mutable "current access token" and serves a refresh endpoint.
type fakeServer struct {
	mu            sync.Mutex
	access        string
	refresh       string
	refreshCalls  int32
	refreshBroken bool
}

func (f *fakeServer) rotateAccess(token string) {
	f.mu.Lock()
	f.access = token
	f.mu.Unlock()
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		access, refresh := f.access, f.refresh
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":          map[string]string{"id": "u1", "name": "Ada", "email": in.Email, "role": "agent"},
			"access_token":  access,
			"refresh_token": refresh,
			"expires_at":    time.Now().Add(time.Minute),
		})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.refreshCalls, 1)
		// Slow enough that concurrent 401s overlap the in-flight refresh.
		time.Sleep(50 * time.Millisecond)
		f.mu.Lock()
		broken, refresh := f.refreshBroken, f.refresh
		f.mu.Unlock()
		if broken || bearer(r) != refresh {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid refresh token"})
			return
		}
		f.rotateAccess("access-2")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-2",
			"expires_at":   time.Now().Add(time.Minute),
		})
	})
	mux.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		access := f.access
		f.mu.Unlock()
		if bearer(r) != access {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(crm.LeadPage{Items: []crm.Lead{{ID: "l1", Name: "Joan"}}, Total: 1})
	})
	mux.HandleFunc("/api/leads/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "lead not found"})
	})
	return mux
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func newFake(t *testing.T) (*fakeServer, *Client) {
	t.Helper()
	fake := &fakeServer{access: "access-1", refresh: "refresh-1"}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return fake, New(srv.URL)
}

func TestLoginStoresTokenPair(t *testing.T) {
	_, c := newFake(t)

	session, err := c.Login(context.Background(), "ada@x.io", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.AccessToken != "access-1" || session.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	access, refresh := c.session.tokens()
	if access != "access-1" || refresh != "refresh-1" {
		t.Fatalf("tokens not stored: %q %q", access, refresh)
	}
}

func TestLoginBadPassword(t *testing.T) {
	_, c := newFake(t)

	_, err := c.Login(context.Background(), "ada@x.io", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestTransparentRefreshReplaysOnce(t *testing.T) {
	fake, c := newFake(t)
	if _, err := c.Login(context.Background(), "ada@x.io", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Server-side expiry: the stored access token stops working.
	fake.rotateAccess("access-2")

	page, err := c.ListLeads(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if n := atomic.LoadInt32(&fake.refreshCalls); n != 1 {
		t.Fatalf("refresh called %d times, want 1", n)
	}
	if access, _ := c.session.tokens(); access != "access-2" {
		t.Fatalf("access token not updated: %q", access)
	}
}

func TestFailedRefreshEndsSession(t *testing.T) {
	fake := &fakeServer{access: "access-1", refresh: "refresh-1", refreshBroken: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	var loggedOut atomic.Int32
	c := New(srv.URL, WithLogoutHandler(func() { loggedOut.Add(1) }))
	if _, err := c.Login(context.Background(), "ada@x.io", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	fake.rotateAccess("rotated-away")

	_, err := c.ListLeads(context.Background(), 1, 10)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if loggedOut.Load() != 1 {
		t.Fatalf("logout handler called %d times, want 1", loggedOut.Load())
	}
	access, refresh := c.session.tokens()
	if access != "" || refresh != "" {
		t.Fatal("tokens should be cleared after failed refresh")
	}
}

func TestHungRefreshEndsSession(t *testing.T) {
	refreshStarted := make(chan struct{}, 1)
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshStarted <- struct{}{}
		// Outlive the client's transport timeout.
		<-release
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(release)

	var loggedOut atomic.Int32
	c := New(srv.URL,
		WithHTTPClient(&http.Client{Timeout: 200 * time.Millisecond}),
		WithLogoutHandler(func() { loggedOut.Add(1) }),
	)
	c.SetTokens("stale-access", "refresh-1")

	_, err := c.ListLeads(context.Background(), 1, 10)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after hung refresh, got %v", err)
	}
	select {
	case <-refreshStarted:
	default:
		t.Fatal("refresh endpoint was never reached")
	}
	if loggedOut.Load() != 1 {
		t.Fatalf("logout handler called %d times, want 1", loggedOut.Load())
	}
	access, refresh := c.session.tokens()
	if access != "" || refresh != "" {
		t.Fatalf("session not cleared: access=%q refresh=%q", access, refresh)
	}
}

func TestSecondDenialAfterRefreshIsTerminal(t *testing.T) {
	fake := &fakeServer{access: "access-1", refresh: "refresh-1"}
	mux := http.NewServeMux()
	// Refresh succeeds but the resource keeps saying 401, e.g. the account
	// was disabled between refresh and replay.
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fake.refreshCalls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "access-2"})
	})
	mux.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var loggedOut atomic.Int32
	c := New(srv.URL, WithLogoutHandler(func() { loggedOut.Add(1) }))
	c.SetTokens("access-1", "refresh-1")

	_, err := c.ListLeads(context.Background(), 1, 10)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if n := atomic.LoadInt32(&fake.refreshCalls); n != 1 {
		t.Fatalf("refresh called %d times, want exactly 1", n)
	}
	if loggedOut.Load() != 1 {
		t.Fatalf("logout handler called %d times, want 1", loggedOut.Load())
	}
}

func TestMissingRefreshTokenFailsFast(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	refreshHits := int32(0)
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshHits, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	c.SetTokens("stale-access", "")

	_, err := c.ListLeads(context.Background(), 1, 10)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if atomic.LoadInt32(&refreshHits) != 0 {
		t.Fatal("refresh endpoint should not be called without a refresh token")
	}
}

func TestNonAuthErrorsSurfaceAsAPIError(t *testing.T) {
	_, c := newFake(t)
	if _, err := c.Login(context.Background(), "ada@x.io", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err := c.ConvertLead(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "lead not found" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	fake, c := newFake(t)
	if _, err := c.Login(context.Background(), "ada@x.io", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	fake.rotateAccess("access-2")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListLeads(context.Background(), 1, 10)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	// Coalescing keeps concurrent 401s from hammering the refresh endpoint.
	// The exact count depends on timing, but it must be far below the number
	// of requests.
	if n := atomic.LoadInt32(&fake.refreshCalls); n < 1 || n > 2 {
		t.Fatalf("refresh called %d times for 8 concurrent requests", n)
	}
}
