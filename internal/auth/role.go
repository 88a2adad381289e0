package auth

import (
	"fmt"
	"strings"
)

// Role determines the visibility rule applied to ownership-scoped resources:
// agents see and mutate only records they own, admins see everything.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// ParseRole converts a wire/storage value into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleAgent:
		return RoleAgent, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgent
}

// IsAdmin reports whether the role is exempt from ownership filtering.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// UnmarshalText implements encoding.TextUnmarshaler so roles decode from
// config and JSON with the same validation as ParseRole.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

func (r Role) String() string { return string(r) }
