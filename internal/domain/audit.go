package domain

import "time"

// Audit carries the creation and modification trail shared by persisted entities.
type Audit struct {
	CreatedAt time.Time
	CreatedBy *string
	UpdatedAt time.Time
	UpdatedBy *string
}

// SoftDelete marks an entity as deleted without removing the row.
type SoftDelete struct {
	DeletedAt *time.Time
	DeletedBy *string
}

// IsDeleted reports whether the entity has been soft-deleted.
func (s SoftDelete) IsDeleted() bool {
	return s.DeletedAt != nil
}

// Page describes a 1-based page request.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPageNumber keeps OFFSET far from integer overflow.
	MaxPageNumber   = 100000
)

// Normalize clamps the page into supported bounds.
func (p Page) Normalize() Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Limit returns the SQL LIMIT for the page.
func (p Page) Limit() int {
	return p.Normalize().Size
}

// Offset returns the SQL OFFSET for the page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

// PagedResult is a page of items plus the total matching count.
type PagedResult[T any] struct {
	Items    []T
	Page     int
	PageSize int
	Total    int
}

// NewPagedResult wraps items for the given page.
func NewPagedResult[T any](items []T, page Page, total int) PagedResult[T] {
	n := page.Normalize()
	if items == nil {
		items = []T{}
	}
	return PagedResult[T]{Items: items, Page: n.Number, PageSize: n.Size, Total: total}
}

// Actor identifies who performs an operation inside a tenant.
type Actor struct {
	TenantID string
	Type     ActorType
	ID       *string
}

// SystemActor is the actor used by background jobs.
func SystemActor(tenantID string) Actor {
	return Actor{TenantID: tenantID, Type: ActorTypeSystem}
}

// UserID returns the acting user id, or empty for the system actor.
func (a Actor) UserID() string {
	if a.ID == nil {
		return ""
	}
	return *a.ID
}
