package domain

import "time"

// Tenant is an isolated helpdesk organization. Every other entity belongs to one.
type Tenant struct {
	ID       string
	Name     string
	Slug     string
	TimeZone string
	IsActive bool
	Audit
}

// Location resolves the tenant time zone, falling back to UTC.
func (t Tenant) Location() *time.Location {
	if t.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
