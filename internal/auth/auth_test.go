package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken("tenant-1", "user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, "user-1", claims.UserID())

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpiredTokens(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	tm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := tm.GenerateToken("tenant-1", "user-1")
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestPassword_HashAndCompare(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct horse"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestNewOpaqueToken(t *testing.T) {
	raw, hash, err := NewOpaqueToken(16)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, HashToken(raw), hash)
	assert.NotEqual(t, raw, hash)
}

func TestAPIKey_GenerateParseVerify(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)

	prefix, err := ParseAPIKeyPrefix(key.Raw)
	require.NoError(t, err)
	assert.Equal(t, key.Prefix, prefix)
	assert.True(t, VerifyAPIKey(key.Raw, key.Hash))
	assert.False(t, VerifyAPIKey(key.Raw+"x", key.Hash))

	for _, bad := range []string{"", "hdk_abc", "xyz_abc_def", "hdk__secret", "hdk_a_b_c"} {
		_, err := ParseAPIKeyPrefix(bad)
		assert.ErrorIs(t, err, ErrMalformedAPIKey, bad)
	}
}

func TestEnforcer_TenantScopedRoles(t *testing.T) {
	e, err := NewEnforcer(nil, nil, nil)
	require.NoError(t, err)

	agent := domain.BuiltInRoleAgent.Role("t1")
	agent.ID = "r-agent"
	require.NoError(t, e.SyncRole(agent))
	require.NoError(t, e.SyncUserRoles("t1", "u1", []string{"r-agent"}))

	ok, err := e.Allowed("t1", "u1", domain.PermTicketsManage)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = e.Allowed("t1", "u1", domain.PermUsersManage)
	assert.False(t, ok)

	// same user id in another tenant has nothing
	ok, _ = e.Allowed("t2", "u1", domain.PermTicketsView)
	assert.False(t, ok)

	agent.Permissions = []domain.Permission{domain.PermTicketsView}
	require.NoError(t, e.SyncRole(agent))
	ok, _ = e.Allowed("t1", "u1", domain.PermTicketsManage)
	assert.False(t, ok)

	require.NoError(t, e.SyncUserRoles("t1", "u1", nil))
	ok, _ = e.Allowed("t1", "u1", domain.PermTicketsView)
	assert.False(t, ok)

	require.NoError(t, e.SyncUserRoles("t1", "u1", []string{"r-agent"}))
	require.NoError(t, e.RemoveRole("t1", "r-agent"))
	ok, _ = e.Allowed("t1", "u1", domain.PermTicketsView)
	assert.False(t, ok)
}

type fakeRoles struct {
	repository.RoleRepository
	roles []domain.Role
}

func (f *fakeRoles) ListAll(context.Context) ([]domain.Role, error) { return f.roles, nil }

type fakeUsers struct {
	repository.UserRepository
	users       map[string]*domain.User
	assignments []repository.RoleAssignment
}

func (f *fakeUsers) GetByID(_ context.Context, tenantID, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsers) ListRoleAssignments(context.Context) ([]repository.RoleAssignment, error) {
	return f.assignments, nil
}

type fakeKeys struct {
	repository.APIKeyRepository
	keys    map[string]*domain.APIKey
	touched []string
}

func (f *fakeKeys) GetByPrefix(_ context.Context, prefix string) (*domain.APIKey, error) {
	k, ok := f.keys[prefix]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return k, nil
}

func (f *fakeKeys) TouchLastUsed(_ context.Context, id string) error {
	f.touched = append(f.touched, id)
	return nil
}

type stubLimiter struct {
	allow bool
	err   error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.allow, s.err }

func TestEnforcer_Reload(t *testing.T) {
	admin := domain.BuiltInRoleAdmin.Role("t1")
	admin.ID = "r-admin"
	users := &fakeUsers{assignments: []repository.RoleAssignment{{TenantID: "t1", UserID: "u1", RoleID: "r-admin"}}}
	e, err := NewEnforcer(&fakeRoles{roles: []domain.Role{admin}}, users, nil)
	require.NoError(t, err)

	ok, _ := e.Allowed("t1", "u1", domain.PermSettingsManage)
	assert.False(t, ok)

	require.NoError(t, e.Reload(context.Background()))
	ok, _ = e.Allowed("t1", "u1", domain.PermSettingsManage)
	assert.True(t, ok)
}

type fixture struct {
	app    *fiber.App
	tokens *TokenManager
	key    GeneratedAPIKey
	keys   *fakeKeys
}

func newFixture(t *testing.T, limiter RateLimiter) fixture {
	t.Helper()
	users := &fakeUsers{users: map[string]*domain.User{
		"u1": {ID: "u1", TenantID: "t1", IsActive: true},
		"u2": {ID: "u2", TenantID: "t1", IsActive: false},
	}}
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	revoked, err := GenerateAPIKey()
	require.NoError(t, err)
	keys := &fakeKeys{keys: map[string]*domain.APIKey{
		key.Prefix:     {ID: "k1", TenantID: "t1", UserID: "u1", Prefix: key.Prefix, KeyHash: key.Hash},
		revoked.Prefix: {ID: "k2", TenantID: "t1", UserID: "u1", Prefix: revoked.Prefix, KeyHash: revoked.Hash, RevokedAt: &past},
	}}

	enf, err := NewEnforcer(nil, nil, nil)
	require.NoError(t, err)
	role := domain.BuiltInRoleReadOnly.Role("t1")
	role.ID = "r1"
	require.NoError(t, enf.SyncRole(role))
	require.NoError(t, enf.SyncUserRoles("t1", "u1", []string{"r1"}))

	tokens := NewTokenManager("secret", 5)
	mw := NewAuthMiddleware(AuthMiddlewareDependencies{
		Tokens: tokens, Users: users, APIKeys: keys, Authorizer: enf, Limiter: limiter,
	})

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Code)
	}})
	app.Use(mw.Handle)
	app.Get("/tickets", mw.RequirePermission(domain.PermTicketsView), func(c *fiber.Ctx) error {
		p := MustPrincipal(c)
		return c.SendString(string(p.SubjectType) + ":" + p.User.ID)
	})
	app.Get("/users", mw.RequirePermission(domain.PermUsersManage), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return fixture{app: app, tokens: tokens, key: GeneratedAPIKey{Raw: key.Raw}, keys: keys}
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t, stubLimiter{allow: true})
	token, _, err := f.tokens.GenerateToken("t1", "u1")
	require.NoError(t, err)
	inactive, _, err := f.tokens.GenerateToken("t1", "u2")
	require.NoError(t, err)
	foreign, _, err := f.tokens.GenerateToken("t2", "u1")
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header map[string]string
		status int
	}{
		{"missing credentials", "/tickets", nil, http.StatusUnauthorized},
		{"malformed header", "/tickets", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized},
		{"bearer ok", "/tickets", map[string]string{"Authorization": "Bearer " + token}, http.StatusOK},
		{"inactive user", "/tickets", map[string]string{"Authorization": "Bearer " + inactive}, http.StatusUnauthorized},
		{"wrong tenant", "/tickets", map[string]string{"Authorization": "Bearer " + foreign}, http.StatusUnauthorized},
		{"missing permission", "/users", map[string]string{"Authorization": "Bearer " + token}, http.StatusForbidden},
		{"api key ok", "/tickets", map[string]string{HeaderAPIKey: f.key.Raw}, http.StatusOK},
		{"api key unknown", "/tickets", map[string]string{HeaderAPIKey: "hdk_deadbeef_00"}, http.StatusUnauthorized},
		{"api key malformed", "/tickets", map[string]string{HeaderAPIKey: "nope"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			resp, err := f.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	assert.Contains(t, f.keys.touched, "k1")
}

func TestAuthMiddleware_RevokedKey(t *testing.T) {
	f := newFixture(t, nil)
	var revokedRaw string
	for _, k := range f.keys.keys {
		if k.RevokedAt != nil {
			k.KeyHash = HashToken("hdk_" + k.Prefix + "_secret")
			revokedRaw = "hdk_" + k.Prefix + "_secret"
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
	req.Header.Set(HeaderAPIKey, revokedRaw)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_RateLimit(t *testing.T) {
	f := newFixture(t, stubLimiter{allow: false})
	req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
	req.Header.Set(HeaderAPIKey, f.key.Raw)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// a limiter outage lets the request through
	f = newFixture(t, stubLimiter{err: errors.New("redis down")})
	req = httptest.NewRequest(http.MethodGet, "/tickets", nil)
	req.Header.Set(HeaderAPIKey, f.key.Raw)
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
