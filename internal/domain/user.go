package domain

import (
	"fmt"
	"time"
)

// Role enumerates the three mutually exclusive account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleTech  Role = "tech"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is a known member of the enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTech, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a wire string into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// User is an account known to the remote authority. Role is immutable
// after creation as far as this core is concerned.
type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName returns the name shown next to requests and comments.
func (u User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}
