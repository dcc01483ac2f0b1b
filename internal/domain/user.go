package domain

import "time"

// User is a helpdesk operator: agent, manager or administrator of a tenant.
type User struct {
	ID           string
	TenantID     string
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	TimeZone     string
	RoleIDs      []string
	LastLoginAt  *time.Time
	Audit
	SoftDelete
}

// Location resolves the user's time zone, falling back to UTC.
func (u User) Location() *time.Location {
	if u.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
