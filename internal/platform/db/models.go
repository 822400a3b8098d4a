package db

import "time"

// Gorm models mirror schema.sql for the embedded SQLite store.

// RoleModel is a row of roles.
type RoleModel struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string `gorm:"not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (RoleModel) TableName() string { return "roles" }

// PermissionModel is a row of permissions.
type PermissionModel struct {
	ID          int64  `gorm:"primaryKey"`
	Action      string `gorm:"uniqueIndex;not null"`
	Description string `gorm:"not null;default:''"`
	CreatedAt   time.Time
}

func (PermissionModel) TableName() string { return "permissions" }

// RolePermissionModel links roles and permissions.
type RolePermissionModel struct {
	RoleID       int64 `gorm:"primaryKey;autoIncrement:false"`
	PermissionID int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt    time.Time
}

func (RolePermissionModel) TableName() string { return "role_permissions" }

// UserModel is a row of users.
type UserModel struct {
	ID           int64  `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null;default:''"`
	RoleID       int64  `gorm:"not null;index"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

// RequestModel is a row of requests.
type RequestModel struct {
	ID        int64  `gorm:"primaryKey"`
	Field     string `gorm:"not null"`
	Status    string `gorm:"not null;default:pending"`
	MakerID   int64  `gorm:"not null;index"`
	CheckerID *int64
	Version   int `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RequestModel) TableName() string { return "requests" }

// ApprovalModel is a row of approvals.
type ApprovalModel struct {
	ID        int64  `gorm:"primaryKey"`
	RequestID int64  `gorm:"not null;index"`
	ActorID   int64  `gorm:"not null"`
	Action    string `gorm:"not null"`
	Note      string `gorm:"not null;default:''"`
	At        time.Time
}

func (ApprovalModel) TableName() string { return "approvals" }

// AuthSessionModel is a row of auth_sessions.
type AuthSessionModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;index"`
	IP        string `gorm:"column:ip;not null;default:''"`
	UserAgent string `gorm:"not null;default:''"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (AuthSessionModel) TableName() string { return "auth_sessions" }

// NotificationModel is a row of notifications.
type NotificationModel struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"not null;index"`
	RequestID *int64
	Kind      string `gorm:"not null"`
	Message   string `gorm:"not null"`
	ReadAt    *time.Time
	CreatedAt time.Time
}

func (NotificationModel) TableName() string { return "notifications" }

// AuditLogModel is a row of audit_logs. Meta holds JSON text.
type AuditLogModel struct {
	ID         int64  `gorm:"primaryKey"`
	ActorID    int64  `gorm:"not null"`
	Action     string `gorm:"not null"`
	Entity     string `gorm:"not null"`
	EntityID   string `gorm:"not null"`
	Meta       string `gorm:"not null;default:'{}'"`
	OccurredAt time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }

// AllModels lists every model in dependency order.
func AllModels() []any {
	return []any{
		&RoleModel{},
		&PermissionModel{},
		&RolePermissionModel{},
		&UserModel{},
		&RequestModel{},
		&ApprovalModel{},
		&AuthSessionModel{},
		&NotificationModel{},
		&AuditLogModel{},
	}
}
