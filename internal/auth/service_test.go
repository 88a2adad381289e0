package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, opts ...TokenOption) (*Service, *MemoryUserStore) {
	t.Helper()
	store := NewMemoryUserStore()
	issuer := newTestIssuer(t, opts...)
	svc, err := NewService(store, issuer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func registerUser(t *testing.T, svc *Service, email string, role Role) *User {
	t.Helper()
	user, err := svc.Register(context.Background(), "Test User", email, "hunter22", role)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return user
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	user := registerUser(t, svc, "agent@example.com", RoleAgent)

	session, err := svc.Login(context.Background(), "agent@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.User.ID != user.ID {
		t.Fatalf("session for wrong user: %s", session.User.ID)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !session.RefreshExpiresAt.After(session.AccessExpiresAt) {
		t.Fatal("refresh token should outlive access token")
	}

	identity, err := svc.Authenticate(context.Background(), session.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if identity.ID != user.ID || identity.Role != RoleAgent {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	registerUser(t, svc, "agent@example.com", RoleAgent)

	cases := []struct{ email, password string }{
		{"agent@example.com", "wrong"},
		{"nobody@example.com", "hunter22"},
		{"", ""},
	}
	for _, tc := range cases {
		if _, err := svc.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("Login(%q): expected ErrUnauthenticated, got %v", tc.email, err)
		}
	}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc, _ := newTestService(t, WithAccessTTL(time.Minute), WithClock(clock))
	user := registerUser(t, svc, "agent@example.com", RoleAgent)

	session, err := svc.Login(context.Background(), "agent@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Access token dies after its minute; the refresh token still works.
	now = now.Add(2 * time.Minute)
	if _, err := svc.Authenticate(context.Background(), session.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected expired access token, got %v", err)
	}

	access, exp, err := svc.Refresh(context.Background(), session.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := exp.Sub(now); got != time.Minute {
		t.Fatalf("new access lifetime = %v, want 1m", got)
	}
	identity, err := svc.Authenticate(context.Background(), access)
	if err != nil {
		t.Fatalf("Authenticate after refresh: %v", err)
	}
	if identity.ID != user.ID {
		t.Fatalf("refreshed token for wrong user: %s", identity.ID)
	}

	// No rotation: the same refresh token keeps working.
	if _, _, err := svc.Refresh(context.Background(), session.RefreshToken); err != nil {
		t.Fatalf("second Refresh with same token: %v", err)
	}
}

func TestRefreshRejectsGarbageAndAccessTokens(t *testing.T) {
	svc, _ := newTestService(t)
	registerUser(t, svc, "agent@example.com", RoleAgent)
	session, err := svc.Login(context.Background(), "agent@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), "garbage"); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh for garbage, got %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), session.AccessToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh for access token, got %v", err)
	}
}

func TestDeletedUserIsCaughtAtRefreshAndAuthenticate(t *testing.T) {
	svc, store := newTestService(t)
	user := registerUser(t, svc, "agent@example.com", RoleAgent)
	session, err := svc.Login(context.Background(), "agent@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := store.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// Tokens are still cryptographically valid; the store reload rejects them.
	if _, err := svc.Authenticate(context.Background(), session.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for deleted user, got %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), session.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh for deleted user, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "", "a@b.c", "pw", RoleAgent); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := svc.Register(ctx, "Name", "not-an-email", "pw", RoleAgent); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad email: %v", err)
	}
	if _, err := svc.Register(ctx, "Name", "a@b.c", "pw", Role("superuser")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad role: %v", err)
	}

	user, err := svc.Register(ctx, "Name", "A@B.C", "pw", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "a@b.c" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if user.Role != RoleAgent {
		t.Fatalf("expected default agent role, got %s", user.Role)
	}

	if _, err := svc.Register(ctx, "Other", "a@b.c", "pw", RoleAgent); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestUpdateUserRehashesPassword(t *testing.T) {
	svc, _ := newTestService(t)
	user := registerUser(t, svc, "agent@example.com", RoleAgent)

	newPassword := "next-secret"
	if _, err := svc.UpdateUser(context.Background(), user.ID, UserUpdate{Password: &newPassword}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if _, err := svc.Login(context.Background(), "agent@example.com", "hunter22"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := svc.Login(context.Background(), "agent@example.com", newPassword); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
