package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUserNotFound is returned when no user record exists for an id.
var ErrUserNotFound = errors.New("user not found")

// Role enumerates the access levels recognized by the API.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity is the resolved caller of an authenticated request. The role
// always comes from the user record, never from the token itself.
type Identity struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// User is a registered account.
type User struct {
	ID    int64
	Name  string
	Email string
	Role  Role
}

// Repository provides user lookups for identity resolution.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
}
