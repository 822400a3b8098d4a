package shared

import (
	"encoding/json"
	"errors"
	"time"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Validate checks mandatory fields.
func (l AuditLog) Validate() error {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}

// MetaJSON encodes Meta, yielding "{}" when empty.
func (l AuditLog) MetaJSON() ([]byte, error) {
	if len(l.Meta) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(l.Meta)
}

// Timestamp returns At or now when unset.
func (l AuditLog) Timestamp() time.Time {
	if l.At.IsZero() {
		return time.Now().UTC()
	}
	return l.At
}
