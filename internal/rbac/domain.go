// Package rbac holds the permission registry, the permission matcher and the
// authorization gate every protected operation goes through.
package rbac

import "time"

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission represents an atomic capability identified by its action string.
type Permission struct {
	ID          int64  `json:"id"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// RoleGrants is one row of the permissions matrix.
type RoleGrants struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// Identity is the resolved actor behind a session.
type Identity struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	RoleID   int64  `json:"-"`
	RoleName string `json:"role"`
}

// Subject is an identity together with its effective permission set.
type Subject struct {
	Identity
	Permissions PermissionSet
}

// HasRole reports whether the subject's role is name.
func (s Subject) HasRole(name string) bool {
	return s.RoleName != "" && s.RoleName == name
}
