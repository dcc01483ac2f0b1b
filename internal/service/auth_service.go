package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const resetTokenBytes = 32

// AuthService coordinates login and password flows.
type AuthService struct {
	tenants    repository.TenantRepository
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	tokenMgr   *auth.TokenManager
	mailer     TemplateMailer
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	publicURL  string
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	TenantRepo        repository.TenantRepository
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	Mailer            TemplateMailer
	Logger            *zap.Logger
}

// LoginInput identifies a user inside a tenant.
type LoginInput struct {
	TenantSlug string
	Email      string
	Password   string
}

// LoginResult is an issued access token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		tenants:    deps.TenantRepo,
		users:      deps.UserRepo,
		resets:     deps.PasswordResetRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		mailer:     deps.Mailer,
		logger:     logger.Named("auth"),
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		publicURL:  cfg.Notification.PublicURL,
		now:        time.Now,
	}
}

// Login authenticates a user by email and password within the tenant named by slug.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	invalid := apperrors.NewUnauthorized("invalid credentials")

	tenant, err := s.tenants.GetBySlug(ctx, strings.TrimSpace(input.TenantSlug))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, invalid
		}
		return nil, apperrors.MapError(err)
	}
	if !tenant.IsActive {
		return nil, invalid
	}
	user, err := s.users.GetByEmail(ctx, tenant.ID, strings.TrimSpace(input.Email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, invalid
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, invalid
	}
	if err := auth.ComparePassword(user.PasswordHash, input.Password); err != nil {
		return nil, invalid
	}

	token, exp, err := s.tokenMgr.GenerateToken(tenant.ID, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.users.TouchLogin(ctx, tenant.ID, user.ID); err != nil {
		s.logger.Warn("record login time failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: user}, nil
}

// RequestPasswordReset stores a single-use token and emails a reset link. Unknown
// tenants or emails succeed silently so the endpoint cannot be used to probe accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, tenantSlug, email string) error {
	tenant, err := s.tenants.GetBySlug(ctx, strings.TrimSpace(tenantSlug))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.MapError(err)
	}
	user, err := s.users.GetByEmail(ctx, tenant.ID, strings.TrimSpace(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil
	}

	raw, hash, err := auth.NewOpaqueToken(resetTokenBytes)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	token := &domain.PasswordResetToken{
		TenantID:  tenant.ID,
		UserID:    user.ID,
		Token:     hash,
		ExpiresAt: s.now().Add(s.resetTTL).UTC(),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return apperrors.MapError(err)
	}

	if s.mailer == nil {
		return nil
	}
	data := map[string]any{
		"recipient":  user,
		"tenant":     tenant,
		"reset_url":  s.resetURL(raw),
		"expires_at": token.ExpiresAt.In(tenant.Location()).Format(time.RFC1123),
	}
	if err := s.mailer.SendTemplate(ctx, tenant.ID, domain.EmailPasswordReset, user.Email, data); err != nil {
		s.logger.Error("send password reset email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ConfirmPasswordReset redeems the token and sets the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.NewFieldErrors(map[string]string{"password": "must be at least 8 characters"})
	}
	invalid := apperrors.NewFieldErrors(map[string]string{"token": "is invalid or expired"})

	token, err := s.resets.GetByToken(ctx, auth.HashToken(strings.TrimSpace(rawToken)))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return invalid
		}
		return apperrors.MapError(err)
	}
	if !token.Usable(s.now()) {
		return invalid
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, token.TenantID, token.UserID, hash); err != nil {
		return notFound(err, "user", token.UserID)
	}
	return apperrors.MapError(s.resets.MarkUsed(ctx, token.ID))
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Actor, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.NewFieldErrors(map[string]string{"new_password": "must be at least 8 characters"})
	}
	user, err := s.users.GetByID(ctx, actor.TenantID, actor.UserID())
	if err != nil {
		return notFound(err, "user", actor.UserID())
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewFieldErrors(map[string]string{"current_password": "is incorrect"})
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return apperrors.MapError(s.users.UpdatePassword(ctx, user.TenantID, user.ID, hash))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) resetURL(raw string) string {
	return strings.TrimRight(s.publicURL, "/") + "/reset-password?token=" + url.QueryEscape(raw)
}
