package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// TenantService bootstraps tenants and manages tenant wide settings.
type TenantService struct {
	tenants    repository.TenantRepository
	roles      repository.RoleRepository
	users      repository.UserRepository
	authorizer auth.Authorizer
	bcryptCost int
	logger     *zap.Logger
}

// TenantDependencies bundles collaborators.
type TenantDependencies struct {
	TenantRepo repository.TenantRepository
	RoleRepo   repository.RoleRepository
	UserRepo   repository.UserRepository
	Authorizer auth.Authorizer
	BcryptCost int
	Logger     *zap.Logger
}

// CreateTenantInput describes a new tenant and its first administrator.
type CreateTenantInput struct {
	Name          string
	Slug          string
	TimeZone      string
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// UpdateTenantInput carries optional tenant changes.
type UpdateTenantInput struct {
	Name     *string
	TimeZone *string
}

// TenantBootstrap is the result of creating a tenant.
type TenantBootstrap struct {
	Tenant *domain.Tenant
	Admin  *domain.User
	Roles  []domain.Role
}

// NewTenantService constructs the service.
func NewTenantService(deps TenantDependencies) *TenantService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{
		tenants:    deps.TenantRepo,
		roles:      deps.RoleRepo,
		users:      deps.UserRepo,
		authorizer: deps.Authorizer,
		bcryptCost: deps.BcryptCost,
		logger:     logger.Named("tenant"),
	}
}

// CreateTenant creates the tenant, seeds the built-in roles and creates an admin user holding the Admin role.
func (s *TenantService) CreateTenant(ctx context.Context, input CreateTenantInput) (*TenantBootstrap, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	input.AdminEmail = strings.TrimSpace(input.AdminEmail)

	fields := map[string]string{}
	if input.Name == "" {
		fields["name"] = "is required"
	}
	if !slugPattern.MatchString(input.Slug) {
		fields["slug"] = "must be 2-63 lowercase letters, digits or dashes"
	}
	if !validTimeZone(input.TimeZone) {
		fields["time_zone"] = "unknown time zone"
	}
	if strings.TrimSpace(input.AdminName) == "" {
		fields["admin_name"] = "is required"
	}
	if input.AdminEmail == "" {
		fields["admin_email"] = "is required"
	}
	if len(input.AdminPassword) < minPasswordLength {
		fields["admin_password"] = "must be at least 8 characters"
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}

	if _, err := s.tenants.GetBySlug(ctx, input.Slug); err == nil {
		return nil, apperrors.NewConflict("tenant slug already taken", map[string]any{"slug": input.Slug})
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	tenant := &domain.Tenant{Name: input.Name, Slug: input.Slug, TimeZone: tz, IsActive: true}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, apperrors.MapError(err)
	}

	result := &TenantBootstrap{Tenant: tenant}
	var adminRoleID string
	for _, builtIn := range domain.BuiltInRoles() {
		role := builtIn.Role(tenant.ID)
		if err := s.roles.Create(ctx, &role); err != nil {
			return nil, apperrors.MapError(err)
		}
		if err := s.syncRole(role); err != nil {
			return nil, err
		}
		if builtIn.Name() == domain.BuiltInRoleAdmin.Name() {
			adminRoleID = role.ID
		}
		result.Roles = append(result.Roles, role)
	}

	hash, err := auth.HashPassword(input.AdminPassword, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	admin := &domain.User{
		TenantID:     tenant.ID,
		Name:         strings.TrimSpace(input.AdminName),
		Email:        input.AdminEmail,
		PasswordHash: hash,
		IsActive:     true,
		TimeZone:     tz,
		RoleIDs:      []string{adminRoleID},
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.authorizer != nil {
		if err := s.authorizer.SyncUserRoles(tenant.ID, admin.ID, admin.RoleIDs); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	result.Admin = admin

	s.logger.Info("tenant created", zap.String("tenant_id", tenant.ID), zap.String("slug", tenant.Slug))
	return result, nil
}

// GetTenant returns the actor's tenant.
func (s *TenantService) GetTenant(ctx context.Context, actor domain.Actor) (*domain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, actor.TenantID)
	if err != nil {
		return nil, notFound(err, "tenant", actor.TenantID)
	}
	return tenant, nil
}

// UpdateTenant renames the tenant or changes its time zone.
func (s *TenantService) UpdateTenant(ctx context.Context, actor domain.Actor, input UpdateTenantInput) (*domain.Tenant, error) {
	tenant, err := s.GetTenant(ctx, actor)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name == "" {
			fields["name"] = "is required"
		} else {
			tenant.Name = name
		}
	}
	if input.TimeZone != nil {
		if *input.TimeZone == "" || !validTimeZone(*input.TimeZone) {
			fields["time_zone"] = "unknown time zone"
		} else {
			tenant.TimeZone = *input.TimeZone
		}
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	tenant.UpdatedBy = actor.ID
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, apperrors.MapError(err)
	}
	return tenant, nil
}

// GetBusinessHours returns the tenant schedule, defaulting to weekdays 09:00-17:00.
func (s *TenantService) GetBusinessHours(ctx context.Context, actor domain.Actor) (*domain.BusinessHours, error) {
	bh, err := s.tenants.GetBusinessHours(ctx, actor.TenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return bh, nil
}

// UpdateBusinessHours replaces the tenant schedule after checking it forms a valid calendar.
func (s *TenantService) UpdateBusinessHours(ctx context.Context, actor domain.Actor, hours domain.BusinessHours) (*domain.BusinessHours, error) {
	hours.TenantID = actor.TenantID
	if hours.TimeZone == "" {
		hours.TimeZone = "UTC"
	}
	if !validTimeZone(hours.TimeZone) {
		return nil, apperrors.NewFieldErrors(map[string]string{"time_zone": "unknown time zone"})
	}
	if _, err := sla.NewCalendar(hours); err != nil {
		return nil, apperrors.NewFieldErrors(map[string]string{"days": err.Error()})
	}
	if err := s.tenants.SaveBusinessHours(ctx, &hours); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &hours, nil
}

func (s *TenantService) syncRole(role domain.Role) error {
	if s.authorizer == nil {
		return nil
	}
	if err := s.authorizer.SyncRole(role); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}
