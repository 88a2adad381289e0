package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service implements login, refresh, and access-token authentication on top
// of a UserStore and a TokenIssuer.
type Service struct {
	store  UserStore
	tokens *TokenIssuer
}

// NewService constructs the auth service.
func NewService(store UserStore, tokens *TokenIssuer) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	return &Service{store: store, tokens: tokens}, nil
}

// Tokens exposes the underlying issuer, mainly for tests and wiring.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Login verifies credentials and issues a fresh access/refresh pair.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrUnauthenticated
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrUnauthenticated
		}
		return Session{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrUnauthenticated
	}
	access, accessExp, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return Session{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The user is
// re-loaded from the store at use time, not trusted from the token's claims,
// so a deleted user is caught on first refresh. The refresh token itself is
// not rotated: one refresh token may be exchanged repeatedly until it
// expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}
	if _, err := s.store.Find(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, ErrInvalidRefresh
		}
		return "", time.Time{}, err
	}
	return s.tokens.IssueAccess(userID)
}

// Authenticate validates an access token and re-loads the user so that a
// deleted user holding a still-valid token is rejected here rather than at
// token expiry.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Identity, error) {
	userID, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return Identity{}, err
	}
	user, err := s.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, err
	}
	return Identity{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}, nil
}

// Register creates a new user account. The admin-only gate is enforced at the
// HTTP layer; defaulting and validation live here.
func (s *Service) Register(ctx context.Context, name, email, password string, role Role) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email, and password are required", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if role == "" {
		role = RoleAgent
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email %s", ErrAlreadyExists, email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser loads a single user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Find(ctx, id)
}

// ListUsers returns all accounts for the admin management surface.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

// UpdateUser applies profile and role changes.
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *upd.Role)
	}
	if upd.Password != nil {
		pw := strings.TrimSpace(*upd.Password)
		if pw == "" {
			return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return nil, err
		}
		upd.Password = &hash
	}
	return s.store.Update(ctx, id, upd)
}

// DeleteUser removes an account. Any still-unexpired access tokens it holds
// start failing at the guard's reload step immediately.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Delete(ctx, id)
}
