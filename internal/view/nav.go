// Package view builds the navigation model the dashboard renders from.
package view

import (
	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

// ErrUnknownRole is returned for identities whose role has no dashboard.
var ErrUnknownRole = httpx.NewError(httpx.ErrForbidden, "unknown role")

// MenuItem is one navigation entry.
type MenuItem struct {
	Label string `json:"label"`
	Href  string `json:"href"`
	Allow string `json:"-"`
}

// Shell is the role-specific chrome around every dashboard page.
type Shell struct {
	User        rbac.Identity      `json:"user"`
	Heading     string             `json:"heading"`
	Home        string             `json:"home"`
	Menu        []MenuItem         `json:"menu"`
	Permissions rbac.PermissionSet `json:"permissions"`
}

// HomePath returns the landing page of role.
func HomePath(role string) (string, error) {
	switch role {
	case shared.RoleMaker:
		return "/dashboard/maker", nil
	case shared.RoleChecker:
		return "/dashboard/checker", nil
	case shared.RoleAdmin:
		return "/dashboard/admin", nil
	default:
		return "", ErrUnknownRole
	}
}

func roleMenu(role string) (string, []MenuItem, error) {
	home, err := HomePath(role)
	if err != nil {
		return "", nil, err
	}
	switch role {
	case shared.RoleMaker:
		return "My requests", []MenuItem{
			{Label: "New Request", Href: home + "#create-request", Allow: shared.PermRequestCreate},
			{Label: "My Requests", Href: home + "#my-requests", Allow: shared.PermRequestRead},
		}, nil
	case shared.RoleChecker:
		return "Checker console", []MenuItem{
			{Label: "Current Requests", Href: home + "#current", Allow: shared.PermRequestRead},
			{Label: "Request History", Href: home + "#history", Allow: shared.PermRequestRead},
		}, nil
	case shared.RoleAdmin:
		return "Requests overview", []MenuItem{
			{Label: "Requests", Href: home, Allow: shared.PermRequestRead},
			{Label: "Users & Roles", Href: "/dashboard/users", Allow: shared.PermUserRead},
			{Label: "Permissions Matrix", Href: "/dashboard/permissions", Allow: shared.PermRoleRead},
		}, nil
	}
	return "", nil, ErrUnknownRole
}

// BuildShell assembles the shell for identity, keeping only the menu items
// perms allows. The result is advisory; handlers still go through the gate.
func BuildShell(identity rbac.Identity, perms rbac.PermissionSet) (Shell, error) {
	heading, items, err := roleMenu(identity.RoleName)
	if err != nil {
		return Shell{}, err
	}
	home, _ := HomePath(identity.RoleName)
	menu := make([]MenuItem, 0, len(items))
	for _, item := range items {
		if perms.Allows(item.Allow) {
			menu = append(menu, item)
		}
	}
	return Shell{
		User:        identity,
		Heading:     heading,
		Home:        home,
		Menu:        menu,
		Permissions: perms,
	}, nil
}
