package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// APIKeyService issues and revokes API keys.
type APIKeyService struct {
	keys  repository.APIKeyRepository
	users repository.UserRepository
	now   func() time.Time
}

// APIKeyDependencies bundles collaborators.
type APIKeyDependencies struct {
	APIKeyRepo repository.APIKeyRepository
	UserRepo   repository.UserRepository
}

// CreateAPIKeyInput describes a new key. UserID defaults to the acting user.
type CreateAPIKeyInput struct {
	Name      string
	UserID    *string
	ExpiresAt *time.Time
}

// CreatedAPIKey carries the raw key, which is never retrievable again.
type CreatedAPIKey struct {
	Key *domain.APIKey
	Raw string
}

// NewAPIKeyService constructs the service.
func NewAPIKeyService(deps APIKeyDependencies) *APIKeyService {
	return &APIKeyService{keys: deps.APIKeyRepo, users: deps.UserRepo, now: time.Now}
}

// CreateAPIKey mints a key acting as an active user of the tenant.
func (s *APIKeyService) CreateAPIKey(ctx context.Context, actor domain.Actor, input CreateAPIKeyInput) (*CreatedAPIKey, error) {
	fields := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		fields["name"] = "is required"
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(s.now()) {
		fields["expires_at"] = "must be in the future"
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}

	userID := actor.UserID()
	if input.UserID != nil {
		userID = *input.UserID
	}
	user, err := s.users.GetByID(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	if !user.IsActive {
		return nil, apperrors.NewConflict("user is inactive", map[string]any{"user_id": userID})
	}

	generated, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	key := &domain.APIKey{
		TenantID:  actor.TenantID,
		UserID:    user.ID,
		Name:      name,
		Prefix:    generated.Prefix,
		KeyHash:   generated.Hash,
		ExpiresAt: input.ExpiresAt,
	}
	key.CreatedBy = actor.ID
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &CreatedAPIKey{Key: key, Raw: generated.Raw}, nil
}

// ListAPIKeys lists keys of the tenant, optionally for one user.
func (s *APIKeyService) ListAPIKeys(ctx context.Context, actor domain.Actor, userID *string) ([]domain.APIKey, error) {
	keys, err := s.keys.List(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return keys, nil
}

// RevokeAPIKey disables a key immediately.
func (s *APIKeyService) RevokeAPIKey(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.keys.Revoke(ctx, actor.TenantID, id, actor.ID); err != nil {
		return notFound(err, "api key", id)
	}
	return nil
}
