package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, opts ...TokenOption) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", opts...)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

func TestNewTokenIssuerRejectsBadSecrets(t *testing.T) {
	if _, err := NewTokenIssuer("", "refresh"); err == nil {
		t.Fatal("expected error for missing access secret")
	}
	if _, err := NewTokenIssuer("access", ""); err == nil {
		t.Fatal("expected error for missing refresh secret")
	}
	if _, err := NewTokenIssuer("same", "same"); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestIssueAndVerifyAccess(t *testing.T) {
	issuer := newTestIssuer(t)

	token, exp, err := issuer.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	sub, err := issuer.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("unexpected subject: %s", sub)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t)

	access, _, err := issuer.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := issuer.IssueRefresh("user-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	if _, err := issuer.VerifyAccess(refresh); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := issuer.VerifyRefresh(access); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestAccessTokenExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	issuer := newTestIssuer(t, WithAccessTTL(time.Minute), WithClock(clock))

	token, exp, err := issuer.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if got := exp.Sub(now); got != time.Minute {
		t.Fatalf("expected 1m lifetime, got %v", got)
	}

	// Just inside the window.
	now = now.Add(59 * time.Second)
	if _, err := issuer.VerifyAccess(token); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}

	// Just past it.
	now = now.Add(2 * time.Second)
	if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after expiry, got %v", err)
	}
}

func TestRefreshTokenOutlivesAccessToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	issuer := newTestIssuer(t, WithClock(clock))

	refresh, _, err := issuer.IssueRefresh("user-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	now = now.Add(6 * 24 * time.Hour)
	if _, err := issuer.VerifyRefresh(refresh); err != nil {
		t.Fatalf("refresh rejected within lifetime: %v", err)
	}

	now = now.Add(2 * 24 * time.Hour)
	if _, err := issuer.VerifyRefresh(refresh); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh after expiry, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewTokenIssuer("other-access", "other-refresh")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, _, err := other.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("token signed with foreign secret accepted: %v", err)
	}
	if _, err := issuer.VerifyAccess("not-a-jwt"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage token accepted: %v", err)
	}
}
