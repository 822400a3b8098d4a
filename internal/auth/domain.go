// Package auth signs users in and out and binds sessions to identities.
package auth

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/barq-desk/barq/internal/platform/httpx"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	RoleID       int64
	RoleName     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is an audit row for a signed-in browser session.
type Session struct {
	ID        string
	UserID    int64
	IP        string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

var (
	// ErrCredentialsRequired is returned when username or password is blank.
	ErrCredentialsRequired = httpx.NewError(httpx.ErrValidation, "Username and password are required.")
	// ErrBadCredentials hides whether the username or the password was wrong.
	ErrBadCredentials = httpx.NewError(httpx.ErrUnauthorized, "Invalid username or password.")
)

// NormalizeUsername trims and lower-cases a username the way it is stored.
// Casers carry state, so each call builds its own.
func NormalizeUsername(raw string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(raw))
}
