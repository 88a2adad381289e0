package auth

import "time"

// User is a CRM operator account. The auth core consults user records but
// does not own their lifecycle; management operations live behind UserStore.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the verified caller attached to a request context by the
// authorization guard: who is calling and which visibility rule applies.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Session is the result of a successful login.
type Session struct {
	User             *User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// UserUpdate carries optional profile changes; nil fields are left untouched.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *Role
}
