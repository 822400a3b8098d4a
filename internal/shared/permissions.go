package shared

// Request lifecycle permissions.
const (
	PermRequestCreate  = "request:create"
	PermRequestRead    = "request:read"
	PermRequestUpdate  = "request:update"
	PermRequestDelete  = "request:delete"
	PermRequestAssign  = "request:assign"
	PermRequestApprove = "request:approve"
	PermRequestReject  = "request:reject"
	// PermRequestReopen is catalogued but no transition consumes it.
	PermRequestReopen = "request:reopen"
)

// Administration permissions.
const (
	PermUserCreate     = "user:create"
	PermUserRead       = "user:read"
	PermUserUpdate     = "user:update"
	PermUserDelete     = "user:delete"
	PermUserChangeRole = "user:change-role"

	PermRoleCreate           = "role:create"
	PermRoleRead             = "role:read"
	PermRoleUpdate           = "role:update"
	PermRoleDelete           = "role:delete"
	PermRoleAssignPermission = "role:assign-permission"

	PermPermissionCreate = "permission:create"
	PermPermissionRead   = "permission:read"
	PermPermissionUpdate = "permission:update"
	PermPermissionDelete = "permission:delete"

	PermReportView   = "report:view"
	PermReportExport = "report:export"
	PermAuditLogRead = "audit:log:read"

	PermSettingsRead   = "settings:read"
	PermSettingsUpdate = "settings:update"

	PermNotificationSend    = "notification:send"
	PermNotificationReadAll = "notification:read-all"
)

// Role names known to the lifecycle and navigation code.
const (
	RoleMaker   = "maker"
	RoleChecker = "checker"
	RoleAdmin   = "admin"
)

// RequestScopes lists the request lifecycle permissions.
func RequestScopes() []string {
	return []string{
		PermRequestCreate,
		PermRequestRead,
		PermRequestUpdate,
		PermRequestDelete,
		PermRequestAssign,
		PermRequestApprove,
		PermRequestReject,
		PermRequestReopen,
	}
}
