package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// rbacModel is role based access control with tenants as casbin domains.
const rbacModel = `
[request_definition]
r = sub, dom, obj

[policy_definition]
p = sub, dom, obj

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub, r.dom) && r.dom == p.dom && r.obj == p.obj
`

// Authorizer answers permission checks and keeps policies in sync with role changes.
type Authorizer interface {
	Allowed(tenantID, userID string, perm domain.Permission) (bool, error)
	SyncRole(role domain.Role) error
	RemoveRole(tenantID, roleID string) error
	SyncUserRoles(tenantID, userID string, roleIDs []string) error
}

// Enforcer is the casbin backed Authorizer. Policies live in memory and are
// rebuilt from the role tables by Reload.
type Enforcer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	roles    repository.RoleRepository
	users    repository.UserRepository
	logger   *zap.Logger
}

var _ Authorizer = (*Enforcer)(nil)

// NewEnforcer creates an empty enforcer. Call Reload to load stored policies.
func NewEnforcer(roles repository.RoleRepository, users repository.UserRepository, logger *zap.Logger) (*Enforcer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e, err := newCasbinEnforcer()
	if err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: e, roles: roles, users: users, logger: logger}, nil
}

func newCasbinEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	return e, nil
}

func roleSubject(roleID string) string { return "role:" + roleID }
func userSubject(userID string) string { return "user:" + userID }

// Allowed reports whether the user holds perm inside the tenant.
func (e *Enforcer) Allowed(tenantID, userID string, perm domain.Permission) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	allowed, err := e.enforcer.Enforce(userSubject(userID), tenantID, string(perm))
	if err != nil {
		e.logger.Error("permission check failed", zap.Error(err), zap.String("user_id", userID), zap.String("permission", string(perm)))
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return allowed, nil
}

// SyncRole replaces the permission policies of a role.
func (e *Enforcer) SyncRole(role domain.Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return syncRole(e.enforcer, role)
}

func syncRole(enf *casbin.Enforcer, role domain.Role) error {
	sub := roleSubject(role.ID)
	if _, err := enf.RemoveFilteredPolicy(0, sub, role.TenantID); err != nil {
		return fmt.Errorf("failed to clear role policies: %w", err)
	}
	if len(role.Permissions) == 0 {
		return nil
	}
	rules := make([][]string, 0, len(role.Permissions))
	seen := make(map[domain.Permission]struct{}, len(role.Permissions))
	for _, perm := range role.Permissions {
		if _, dup := seen[perm]; dup {
			continue
		}
		seen[perm] = struct{}{}
		rules = append(rules, []string{sub, role.TenantID, string(perm)})
	}
	if _, err := enf.AddPolicies(rules); err != nil {
		return fmt.Errorf("failed to add role policies: %w", err)
	}
	return nil
}

// RemoveRole drops the policies and assignments of a deleted role.
func (e *Enforcer) RemoveRole(tenantID, roleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := roleSubject(roleID)
	if _, err := e.enforcer.RemoveFilteredPolicy(0, sub, tenantID); err != nil {
		return fmt.Errorf("failed to remove role policies: %w", err)
	}
	if _, err := e.enforcer.RemoveFilteredGroupingPolicy(1, sub, tenantID); err != nil {
		return fmt.Errorf("failed to remove role assignments: %w", err)
	}
	return nil
}

// SyncUserRoles replaces the role assignments of a user in the tenant.
func (e *Enforcer) SyncUserRoles(tenantID, userID string, roleIDs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := userSubject(userID)
	if _, err := e.enforcer.RemoveFilteredGroupingPolicy(0, sub, "", tenantID); err != nil {
		return fmt.Errorf("failed to clear user roles: %w", err)
	}
	if len(roleIDs) == 0 {
		return nil
	}
	rules := make([][]string, 0, len(roleIDs))
	seen := make(map[string]struct{}, len(roleIDs))
	for _, roleID := range roleIDs {
		if _, dup := seen[roleID]; dup {
			continue
		}
		seen[roleID] = struct{}{}
		rules = append(rules, []string{sub, roleSubject(roleID), tenantID})
	}
	if _, err := e.enforcer.AddGroupingPolicies(rules); err != nil {
		return fmt.Errorf("failed to add user roles: %w", err)
	}
	return nil
}

// Reload rebuilds every policy from the role and assignment tables and swaps it in.
func (e *Enforcer) Reload(ctx context.Context) error {
	roles, err := e.roles.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roles: %w", err)
	}
	assignments, err := e.users.ListRoleAssignments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list role assignments: %w", err)
	}

	fresh, err := newCasbinEnforcer()
	if err != nil {
		return err
	}
	for _, role := range roles {
		if err := syncRole(fresh, role); err != nil {
			return err
		}
	}
	if len(assignments) > 0 {
		rules := make([][]string, 0, len(assignments))
		for _, a := range assignments {
			rules = append(rules, []string{userSubject(a.UserID), roleSubject(a.RoleID), a.TenantID})
		}
		if _, err := fresh.AddGroupingPolicies(rules); err != nil {
			return fmt.Errorf("failed to load role assignments: %w", err)
		}
	}

	e.mu.Lock()
	e.enforcer = fresh
	e.mu.Unlock()

	e.logger.Info("authorization policies reloaded", zap.Int("roles", len(roles)), zap.Int("assignments", len(assignments)))
	return nil
}
