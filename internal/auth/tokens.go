package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "leadline"
	defaultAccessTTL  = time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenIssuer mints and verifies access and refresh credentials. The two
// token kinds are signed with independent secrets so that compromise of one
// never grants the other's privileges. Issuance is pure: no state beyond the
// server-held secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures TokenIssuer behavior.
type TokenOption func(*TokenIssuer) error

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(t *TokenIssuer) error {
		if iss := strings.TrimSpace(issuer); iss != "" {
			t.issuer = iss
		}
		return nil
	}
}

// WithAccessTTL configures the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) error {
		if ttl > 0 {
			t.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) error {
		if ttl > 0 {
			t.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(t *TokenIssuer) error {
		if fn != nil {
			t.now = fn
		}
		return nil
	}
}

// NewTokenIssuer constructs a TokenIssuer. Missing or shared secrets are a
// construction error: signing-key misconfiguration is fatal at startup, never
// a per-request condition.
func NewTokenIssuer(accessSecret, refreshSecret string, opts ...TokenOption) (*TokenIssuer, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	if subtle.ConstantTimeCompare([]byte(accessSecret), []byte(refreshSecret)) == 1 {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	t := &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        defaultIssuer,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AccessTTL reports the configured access token lifetime. Revocation only
// takes effect at the next refresh or at access expiry, whichever is sooner,
// so this value bounds the accepted staleness window.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccess signs a short-lived access token asserting the user id.
func (t *TokenIssuer) IssueAccess(userID string) (string, time.Time, error) {
	return t.sign(userID, t.accessSecret, t.accessTTL)
}

// IssueRefresh signs a long-lived refresh token asserting the user id.
func (t *TokenIssuer) IssueRefresh(userID string) (string, time.Time, error) {
	return t.sign(userID, t.refreshSecret, t.refreshTTL)
}

// VerifyAccess validates signature and expiry of an access token and returns
// the asserted user id. The stateless fast path: no store lookup here.
func (t *TokenIssuer) VerifyAccess(token string) (string, error) {
	sub, err := t.verify(token, t.accessSecret)
	if err != nil {
		return "", ErrUnauthenticated
	}
	return sub, nil
}

// VerifyRefresh validates signature and expiry of a refresh token and returns
// the asserted user id.
func (t *TokenIssuer) VerifyRefresh(token string) (string, error) {
	sub, err := t.verify(token, t.refreshSecret)
	if err != nil {
		return "", ErrInvalidRefresh
	}
	return sub, nil
}

func (t *TokenIssuer) sign(userID string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("userID is required")
	}
	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (t *TokenIssuer) verify(token string, secret []byte) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token is empty")
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return t.now().UTC() }),
	)
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid claims")
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errors.New("subject missing")
	}
	return sub, nil
}
