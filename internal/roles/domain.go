// Package roles exposes the permission matrix to administrators.
package roles

import "github.com/barq-desk/barq/internal/rbac"

// Row is one role of the permission matrix.
type Row = rbac.RoleGrants

// AssignInput is the body of PUT /roles/{id}/permissions.
type AssignInput struct {
	Permissions []string `json:"permissions" validate:"required,dive,required,max=128"`
}
