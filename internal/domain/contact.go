package domain

import "strings"

// Contact is an external customer who raises tickets and books appointments.
type Contact struct {
	ID        string
	TenantID  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	Notes     string
	Audit
	SoftDelete
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
