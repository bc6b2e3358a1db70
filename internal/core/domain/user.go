package domain

import (
	"errors"
	"time"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("token is not valid")
	ErrForbidden          = errors.New("access denied. admin only")
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole maps raw input to a Role. An empty string yields RoleUser.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", Validationf("role must be one of: user admin")
	}
	return r, nil
}

// User models a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Identity is the authenticated caller as carried by a bearer token.
type Identity struct {
	ID   string
	Role Role
}

// Authorize is the single authorization gate: it succeeds only when the
// identity holds exactly the required role.
func Authorize(id *Identity, required Role) error {
	if id == nil {
		return ErrInvalidToken
	}
	if id.Role != required {
		return ErrForbidden
	}
	return nil
}
