package auth

import "context"

// UserStore describes the credential store consulted by the auth subsystem.
// Reads must be safe under concurrent writes; each lookup observes a
// committed user record.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*User, error)
	Delete(ctx context.Context, id string) error
}
