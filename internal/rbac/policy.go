package rbac

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/barq-desk/barq/internal/shared"
)

//go:embed policy/default.yaml
var defaultPolicy []byte

// Policy declares the permission catalogue and the role grants.
type Policy struct {
	Permissions []PolicyPermission `yaml:"permissions"`
	Roles       []PolicyRole       `yaml:"roles"`
}

// PolicyPermission is one catalogue entry.
type PolicyPermission struct {
	Action      string `yaml:"action"`
	Description string `yaml:"description"`
}

// PolicyRole lists the grants of one role. GrantAll grants the whole catalogue.
type PolicyRole struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Grants      []string `yaml:"grants"`
	GrantAll    bool     `yaml:"grantAll"`
}

// SyncMode selects how Sync treats existing grants.
type SyncMode string

const (
	// SyncOff skips synchronisation.
	SyncOff SyncMode = "off"
	// SyncEnsure inserts missing roles, permissions and grants only.
	SyncEnsure SyncMode = "ensure"
	// SyncReplace makes each declared role's grants exactly the declared set.
	SyncReplace SyncMode = "replace"
)

// ParseSyncMode validates a configured mode.
func ParseSyncMode(raw string) (SyncMode, error) {
	switch mode := SyncMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case SyncOff, SyncEnsure, SyncReplace:
		return mode, nil
	case "":
		return SyncEnsure, nil
	default:
		return "", fmt.Errorf("rbac: unknown sync mode %q", raw)
	}
}

// SyncReport summarises a synchronisation run.
type SyncReport struct {
	Roles       int
	Permissions int
	Granted     int
}

// DefaultPolicy returns the embedded registry declaration.
func DefaultPolicy() (Policy, error) {
	return ParsePolicy(defaultPolicy)
}

// LoadPolicy reads a policy file; an empty path yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("rbac: read policy: %w", err)
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes and validates a YAML policy.
func ParsePolicy(raw []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("rbac: decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that names are unique and every grant is catalogued.
func (p Policy) Validate() error {
	catalogue := make(map[string]struct{}, len(p.Permissions))
	for _, perm := range p.Permissions {
		action := strings.TrimSpace(perm.Action)
		if action == "" {
			return errors.New("rbac: policy permission with empty action")
		}
		if _, dup := catalogue[action]; dup {
			return fmt.Errorf("rbac: duplicate permission %q", action)
		}
		catalogue[action] = struct{}{}
	}
	roles := make(map[string]struct{}, len(p.Roles))
	for _, role := range p.Roles {
		name := normalizeName(role.Name)
		if name == "" {
			return errors.New("rbac: policy role with empty name")
		}
		if _, dup := roles[name]; dup {
			return fmt.Errorf("rbac: duplicate role %q", name)
		}
		roles[name] = struct{}{}
		for _, grant := range role.Grants {
			if _, ok := catalogue[strings.TrimSpace(grant)]; !ok {
				return fmt.Errorf("rbac: role %q grants uncatalogued permission %q", name, grant)
			}
		}
	}
	return nil
}

// GrantsFor returns the effective grants declared for a role.
func (p Policy) GrantsFor(role string) []string {
	role = normalizeName(role)
	for _, r := range p.Roles {
		if normalizeName(r.Name) != role {
			continue
		}
		if r.GrantAll {
			all := make([]string, 0, len(p.Permissions))
			for _, perm := range p.Permissions {
				all = append(all, strings.TrimSpace(perm.Action))
			}
			return NewPermissionSet(all...).Slice()
		}
		return NewPermissionSet(r.Grants...).Slice()
	}
	return nil
}

// Sync writes the policy into the store.
func (s *Service) Sync(ctx context.Context, p Policy, mode SyncMode) (SyncReport, error) {
	var report SyncReport
	if mode == SyncOff {
		return report, nil
	}
	if err := p.Validate(); err != nil {
		return report, err
	}

	ids := make(map[string]int64, len(p.Permissions))
	for _, perm := range p.Permissions {
		stored, err := s.store.EnsurePermission(ctx, strings.TrimSpace(perm.Action), strings.TrimSpace(perm.Description))
		if err != nil {
			return report, fmt.Errorf("rbac: ensure permission %s: %w", perm.Action, err)
		}
		ids[stored.Action] = stored.ID
		report.Permissions++
	}

	for _, declared := range p.Roles {
		role, err := s.store.EnsureRole(ctx, normalizeName(declared.Name), strings.TrimSpace(declared.Description))
		if err != nil {
			return report, fmt.Errorf("rbac: ensure role %s: %w", declared.Name, err)
		}
		report.Roles++

		grants := p.GrantsFor(role.Name)
		permIDs := make([]int64, 0, len(grants))
		for _, action := range grants {
			permIDs = append(permIDs, ids[action])
		}

		if mode == SyncReplace {
			entry := auditSync(role, grants)
			if err := s.store.ReplaceRolePermissions(ctx, role.ID, permIDs, entry); err != nil {
				return report, fmt.Errorf("rbac: replace grants for %s: %w", role.Name, err)
			}
			report.Granted += len(permIDs)
			continue
		}
		n, err := s.store.GrantRolePermissions(ctx, role.ID, permIDs)
		if err != nil {
			return report, fmt.Errorf("rbac: grant %s: %w", role.Name, err)
		}
		report.Granted += n
	}

	s.logger.Info("rbac policy synchronised",
		slog.String("mode", string(mode)),
		slog.Int("roles", report.Roles),
		slog.Int("permissions", report.Permissions),
		slog.Int("granted", report.Granted))
	return report, nil
}

func auditSync(role Role, grants []string) shared.AuditLog {
	return shared.AuditLog{
		Action:   "role.permissions.sync",
		Entity:   "role",
		EntityID: strconv.FormatInt(role.ID, 10),
		Meta:     map[string]any{"role": role.Name, "grants": grants},
	}
}
