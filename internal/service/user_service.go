package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// UserService manages helpdesk operator accounts.
type UserService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	tenants    repository.TenantRepository
	authorizer auth.Authorizer
	mailer     TemplateMailer
	bcryptCost int
	logger     *zap.Logger
}

// UserDependencies bundles collaborators.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	RoleRepo   repository.RoleRepository
	TenantRepo repository.TenantRepository
	Authorizer auth.Authorizer
	Mailer     TemplateMailer
	BcryptCost int
	Logger     *zap.Logger
}

// CreateUserInput describes a new user.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	TimeZone string
	RoleIDs  []string
	IsActive *bool
}

// UpdateUserInput carries optional user changes.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	TimeZone *string
	IsActive *bool
}

// UserListFilter narrows ListUsers.
type UserListFilter struct {
	Search string
	RoleID *string
	Active *bool
	Page   domain.Page
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		roles:      deps.RoleRepo,
		tenants:    deps.TenantRepo,
		authorizer: deps.Authorizer,
		mailer:     deps.Mailer,
		bcryptCost: deps.BcryptCost,
		logger:     logger.Named("users"),
	}
}

// CreateUser creates a user, assigns roles and sends an invitation email.
func (s *UserService) CreateUser(ctx context.Context, actor domain.Actor, input CreateUserInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	fields := map[string]string{}
	if input.Name == "" {
		fields["name"] = "is required"
	}
	if input.Email == "" {
		fields["email"] = "is required"
	}
	if len(input.Password) < minPasswordLength {
		fields["password"] = "must be at least 8 characters"
	}
	if !validTimeZone(input.TimeZone) {
		fields["time_zone"] = "unknown time zone"
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}

	roleIDs, err := s.resolveRoles(ctx, actor.TenantID, input.RoleIDs)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, actor.TenantID, input.Email, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	user := &domain.User{
		TenantID:     actor.TenantID,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		IsActive:     active,
		TimeZone:     input.TimeZone,
		RoleIDs:      roleIDs,
	}
	user.CreatedBy = actor.ID
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.syncRoles(user.TenantID, user.ID, user.RoleIDs); err != nil {
		return nil, err
	}
	s.sendInvite(ctx, user)
	return user, nil
}

// GetUser loads a user of the actor's tenant.
func (s *UserService) GetUser(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return user, nil
}

// ListUsers pages through users.
func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor, filter UserListFilter) (domain.PagedResult[domain.User], error) {
	items, total, err := s.users.List(ctx, actor.TenantID, repository.UserFilter{
		Search: strings.TrimSpace(filter.Search),
		RoleID: filter.RoleID,
		Active: filter.Active,
		Page:   filter.Page,
	})
	if err != nil {
		return domain.PagedResult[domain.User]{}, apperrors.MapError(err)
	}
	return domain.NewPagedResult(items, filter.Page, total), nil
}

// UpdateUser changes profile fields. Users cannot deactivate themselves.
func (s *UserService) UpdateUser(ctx context.Context, actor domain.Actor, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.GetUser(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name == "" {
			fields["name"] = "is required"
		} else {
			user.Name = name
		}
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if email == "" {
			fields["email"] = "is required"
		} else if !strings.EqualFold(email, user.Email) {
			if err := s.ensureEmailFree(ctx, actor.TenantID, email, user.ID); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if input.TimeZone != nil {
		if !validTimeZone(*input.TimeZone) {
			fields["time_zone"] = "unknown time zone"
		} else {
			user.TimeZone = *input.TimeZone
		}
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	if input.IsActive != nil {
		if !*input.IsActive && user.ID == actor.UserID() {
			return nil, apperrors.NewForbidden("cannot deactivate your own account")
		}
		user.IsActive = *input.IsActive
	}
	user.UpdatedBy = actor.ID
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// DeleteUser soft deletes a user and drops their role grants.
func (s *UserService) DeleteUser(ctx context.Context, actor domain.Actor, id string) error {
	if id == actor.UserID() {
		return apperrors.NewForbidden("cannot delete your own account")
	}
	if err := s.users.SoftDelete(ctx, actor.TenantID, id, actor.ID); err != nil {
		return notFound(err, "user", id)
	}
	return s.syncRoles(actor.TenantID, id, nil)
}

// SetUserRoles replaces the user's roles.
func (s *UserService) SetUserRoles(ctx context.Context, actor domain.Actor, id string, roleIDs []string) (*domain.User, error) {
	user, err := s.GetUser(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolveRoles(ctx, actor.TenantID, roleIDs)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRoles(ctx, actor.TenantID, user.ID, resolved); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.syncRoles(actor.TenantID, user.ID, resolved); err != nil {
		return nil, err
	}
	user.RoleIDs = resolved
	return user, nil
}

// resolveRoles de-duplicates ids and checks every role exists in the tenant.
func (s *UserService) resolveRoles(ctx context.Context, tenantID string, roleIDs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(roleIDs))
	out := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.roles.GetByID(ctx, tenantID, id); err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.NewFieldErrors(map[string]string{"role_ids": "unknown role " + id})
			}
			return nil, apperrors.MapError(err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, tenantID, email, selfID string) error {
	existing, err := s.users.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if existing.ID == selfID {
		return nil
	}
	return apperrors.NewConflict("email already in use", map[string]any{"email": email})
}

func (s *UserService) syncRoles(tenantID, userID string, roleIDs []string) error {
	if s.authorizer == nil {
		return nil
	}
	if err := s.authorizer.SyncUserRoles(tenantID, userID, roleIDs); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *UserService) sendInvite(ctx context.Context, user *domain.User) {
	if s.mailer == nil || s.tenants == nil {
		return
	}
	tenant, err := s.tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		s.logger.Warn("load tenant for invite failed", zap.String("tenant_id", user.TenantID), zap.Error(err))
		return
	}
	data := map[string]any{"recipient": user, "tenant": tenant}
	if err := s.mailer.SendTemplate(ctx, user.TenantID, domain.EmailUserInvited, user.Email, data); err != nil {
		s.logger.Error("send invite failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}
