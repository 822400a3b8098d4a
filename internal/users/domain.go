// Package users manages user accounts and their role assignment.
package users

import (
	"time"

	"github.com/barq-desk/barq/internal/platform/httpx"
)

// User represents a user account for management.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput is the body of POST /users.
type CreateInput struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
}

// NewUser is what the repository persists.
type NewUser struct {
	Username     string
	PasswordHash string
	RoleID       int64
}

var (
	// ErrUsernameTaken is returned when the normalized username exists.
	ErrUsernameTaken = httpx.NewError(httpx.ErrConflict, "Username already exists.")
	// ErrUnknownRole is returned when the requested role is not registered.
	ErrUnknownRole = httpx.NewError(httpx.ErrValidation, "Unknown role.")
)
