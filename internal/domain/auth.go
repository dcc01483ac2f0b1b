package domain

import "time"

// SubjectType tells interactive users apart from API-key callers.
type SubjectType string

const (
	SubjectTypeUser   SubjectType = "USER"
	SubjectTypeAPIKey SubjectType = "API_KEY"
)

// PasswordResetToken is a single-use credential mailed to a user. Only the
// SHA-256 hash of the raw token is stored in Token.
type PasswordResetToken struct {
	ID        string
	TenantID  string
	UserID    string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be redeemed at now.
func (t PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
