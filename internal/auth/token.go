package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const (
	tokenIssuer     = "helpdesk"
	defaultTokenTTL = time.Hour
	clockLeeway     = 30 * time.Second
)

// TokenManager issues and verifies HS256 access tokens for tenant users.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenManager builds a manager. A non-positive ttl means one hour.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	ttl := time.Duration(ttlMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(clockLeeway),
		),
		now: time.Now,
	}
}

// Claims carries the tenant binding next to the registered claims.
type Claims struct {
	TenantID string             `json:"tid"`
	Kind     domain.SubjectType `json:"kind"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for userID within tenantID.
func (tm *TokenManager) GenerateToken(tenantID, userID string) (string, time.Time, error) {
	now := tm.now().UTC()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		TenantID: tenantID,
		Kind:     domain.SubjectTypeUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, err := tm.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	}); err != nil {
		return nil, err
	}
	if claims.TenantID == "" || claims.Subject == "" || claims.Kind != domain.SubjectTypeUser {
		return nil, errors.New("token is not bound to a tenant user")
	}
	return claims, nil
}

// UserID returns the subject user id.
func (c *Claims) UserID() string {
	return c.RegisteredClaims.Subject
}
