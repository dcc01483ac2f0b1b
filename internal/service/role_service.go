package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// RoleService manages tenant roles and keeps the authorizer in sync.
type RoleService struct {
	roles      repository.RoleRepository
	authorizer auth.Authorizer
}

// RoleDependencies bundles collaborators.
type RoleDependencies struct {
	RoleRepo   repository.RoleRepository
	Authorizer auth.Authorizer
}

// RoleInput describes a custom role.
type RoleInput struct {
	Name        string
	Description string
	Permissions []domain.Permission
}

// UpdateRoleInput carries optional role changes; a nil Permissions slice leaves them unchanged.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Permissions []domain.Permission
}

// NewRoleService constructs the service.
func NewRoleService(deps RoleDependencies) *RoleService {
	return &RoleService{roles: deps.RoleRepo, authorizer: deps.Authorizer}
}

// CreateRole adds a custom role.
func (s *RoleService) CreateRole(ctx context.Context, actor domain.Actor, input RoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(input.Name)
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "is required"
	} else if domain.IsBuiltInRoleName(name) {
		fields["name"] = "is reserved for a built-in role"
	}
	perms, msg := validatePermissions(input.Permissions)
	if msg != "" {
		fields["permissions"] = msg
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, actor.TenantID, name, ""); err != nil {
		return nil, err
	}

	role := &domain.Role{
		TenantID:    actor.TenantID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Permissions: perms,
	}
	role.CreatedBy = actor.ID
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.sync(*role); err != nil {
		return nil, err
	}
	return role, nil
}

// GetRole loads one role.
func (s *RoleService) GetRole(ctx context.Context, actor domain.Actor, id string) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "role", id)
	}
	return role, nil
}

// ListRoles returns every role of the tenant.
func (s *RoleService) ListRoles(ctx context.Context, actor domain.Actor) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx, actor.TenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return roles, nil
}

// UpdateRole edits a role. Built-in roles keep their name, and the Admin role
// keeps every permission.
func (s *RoleService) UpdateRole(ctx context.Context, actor domain.Actor, id string, input UpdateRoleInput) (*domain.Role, error) {
	role, err := s.GetRole(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		switch {
		case role.IsBuiltIn && name != role.Name:
			return nil, apperrors.NewForbidden("built-in roles cannot be renamed")
		case name == "":
			fields["name"] = "is required"
		case !role.IsBuiltIn && domain.IsBuiltInRoleName(name):
			fields["name"] = "is reserved for a built-in role"
		case !strings.EqualFold(name, role.Name):
			if err := s.ensureNameFree(ctx, actor.TenantID, name, role.ID); err != nil {
				return nil, err
			}
		}
		if name != "" {
			role.Name = name
		}
	}
	if input.Description != nil {
		role.Description = strings.TrimSpace(*input.Description)
	}
	if input.Permissions != nil {
		if role.IsBuiltIn && role.Name == domain.BuiltInRoleAdmin.Name() {
			return nil, apperrors.NewForbidden("the Admin role always holds every permission")
		}
		perms, msg := validatePermissions(input.Permissions)
		if msg != "" {
			fields["permissions"] = msg
		}
		role.Permissions = perms
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}

	role.UpdatedBy = actor.ID
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.sync(*role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a custom role that no user holds.
func (s *RoleService) DeleteRole(ctx context.Context, actor domain.Actor, id string) error {
	role, err := s.GetRole(ctx, actor, id)
	if err != nil {
		return err
	}
	if role.IsBuiltIn {
		return apperrors.NewForbidden("built-in roles cannot be deleted")
	}
	count, err := s.roles.CountAssignments(ctx, actor.TenantID, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return apperrors.NewConflict("role is assigned to users", map[string]any{"users": count})
	}
	if err := s.roles.Delete(ctx, actor.TenantID, id); err != nil {
		return notFound(err, "role", id)
	}
	if s.authorizer != nil {
		if err := s.authorizer.RemoveRole(actor.TenantID, id); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	return nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, tenantID, name, selfID string) error {
	existing, err := s.roles.GetByName(ctx, tenantID, name)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if existing.ID == selfID {
		return nil
	}
	return apperrors.NewConflict("role name already in use", map[string]any{"name": name})
}

func (s *RoleService) sync(role domain.Role) error {
	if s.authorizer == nil {
		return nil
	}
	if err := s.authorizer.SyncRole(role); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// validatePermissions de-duplicates perms and reports the first unknown one.
func validatePermissions(perms []domain.Permission) ([]domain.Permission, string) {
	seen := make(map[domain.Permission]struct{}, len(perms))
	out := make([]domain.Permission, 0, len(perms))
	for _, p := range perms {
		if !domain.IsValidPermission(p) {
			return nil, "unknown permission " + string(p)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, ""
}
