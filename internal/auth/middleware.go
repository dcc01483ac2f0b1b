package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"

	// HeaderAPIKey carries a raw API key.
	HeaderAPIKey = "X-API-Key"
)

// Principal represents the authenticated caller.
type Principal struct {
	TenantID    string
	SubjectType domain.SubjectType
	User        *domain.User
	APIKey      *domain.APIKey
}

// Actor converts the principal into the actor recorded on changes.
func (p *Principal) Actor() domain.Actor {
	id := p.User.ID
	actorType := domain.ActorTypeUser
	if p.SubjectType == domain.SubjectTypeAPIKey {
		actorType = domain.ActorTypeAPIKey
	}
	return domain.Actor{TenantID: p.TenantID, Type: actorType, ID: &id}
}

// AuthMiddleware validates bearer tokens or API keys and loads principals.
type AuthMiddleware struct {
	tokens     *TokenManager
	users      repository.UserRepository
	apiKeys    repository.APIKeyRepository
	authorizer Authorizer
	limiter    RateLimiter
	logger     *zap.Logger
	now        func() time.Time
}

// AuthMiddlewareDependencies bundles collaborators of the middleware.
type AuthMiddlewareDependencies struct {
	Tokens     *TokenManager
	Users      repository.UserRepository
	APIKeys    repository.APIKeyRepository
	Authorizer Authorizer
	// Limiter is optional; nil disables API key rate limiting.
	Limiter RateLimiter
	Logger  *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(deps AuthMiddlewareDependencies) *AuthMiddleware {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:     deps.Tokens,
		users:      deps.Users,
		apiKeys:    deps.APIKeys,
		authorizer: deps.Authorizer,
		limiter:    deps.Limiter,
		logger:     logger,
		now:        time.Now,
	}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	var (
		principal *Principal
		err       error
	)
	if raw := c.Get(HeaderAPIKey); raw != "" {
		principal, err = m.fromAPIKey(c.UserContext(), raw)
	} else {
		principal, err = m.fromBearer(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	}
	if err != nil {
		return err
	}

	c.Locals(principalKey, principal)
	c.Locals(observability.LocalsTenantID, principal.TenantID)
	return c.Next()
}

func (m *AuthMiddleware) fromBearer(ctx context.Context, header string) (*Principal, error) {
	if header == "" {
		return nil, apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.activeUser(ctx, claims.TenantID, claims.UserID())
	if err != nil {
		return nil, err
	}
	return &Principal{TenantID: claims.TenantID, SubjectType: domain.SubjectTypeUser, User: user}, nil
}

func (m *AuthMiddleware) fromAPIKey(ctx context.Context, raw string) (*Principal, error) {
	prefix, err := ParseAPIKeyPrefix(raw)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid api key")
	}
	key, err := m.apiKeys.GetByPrefix(ctx, prefix)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized("invalid api key")
		}
		return nil, apperrors.MapError(err)
	}
	if !VerifyAPIKey(raw, key.KeyHash) || !key.Usable(m.now()) {
		return nil, apperrors.NewUnauthorized("invalid api key")
	}

	if m.limiter != nil {
		allowed, err := m.limiter.Allow(ctx, key.ID)
		if err != nil {
			// fail open when redis is unavailable
			m.logger.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, apperrors.NewTooManyRequests("api key rate limit exceeded")
		}
	}

	user, err := m.activeUser(ctx, key.TenantID, key.UserID)
	if err != nil {
		return nil, err
	}
	if err := m.apiKeys.TouchLastUsed(ctx, key.ID); err != nil {
		m.logger.Warn("failed to record api key usage", zap.String("api_key_id", key.ID), zap.Error(err))
	}
	return &Principal{TenantID: key.TenantID, SubjectType: domain.SubjectTypeAPIKey, User: user, APIKey: key}, nil
}

func (m *AuthMiddleware) activeUser(ctx context.Context, tenantID, userID string) (*domain.User, error) {
	user, err := m.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("user is inactive")
	}
	return user, nil
}

// RequirePermission ensures the principal's roles grant perm within its tenant.
func (m *AuthMiddleware) RequirePermission(perm domain.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		allowed, err := m.authorizer.Allowed(principal.TenantID, principal.User.ID, perm)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if !allowed {
			return apperrors.NewForbidden("missing permission " + string(perm))
		}
		return c.Next()
	}
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// MustPrincipal returns the principal set by Handle. Only use on authenticated routes.
func MustPrincipal(c *fiber.Ctx) *Principal {
	principal, _ := PrincipalFromContext(c)
	return principal
}
