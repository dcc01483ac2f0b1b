package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/api/validation"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// ContactService manages customer contacts.
type ContactService struct {
	contacts repository.ContactRepository
}

// ContactDependencies bundles collaborators.
type ContactDependencies struct {
	ContactRepo repository.ContactRepository
}

// ContactInput is the full set of editable contact fields.
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	Notes     string
}

// ContactListFilter narrows ListContacts.
type ContactListFilter struct {
	Search  string
	Company string
	Page    domain.Page
}

// NewContactService constructs the service.
func NewContactService(deps ContactDependencies) *ContactService {
	return &ContactService{contacts: deps.ContactRepo}
}

// CreateContact adds a contact. Emails are unique per tenant.
func (s *ContactService) CreateContact(ctx context.Context, actor domain.Actor, input ContactInput) (*domain.Contact, error) {
	input = input.trimmed()
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, actor.TenantID, input.Email, ""); err != nil {
		return nil, err
	}
	contact := &domain.Contact{TenantID: actor.TenantID}
	input.apply(contact)
	contact.CreatedBy = actor.ID
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, apperrors.MapError(err)
	}
	return contact, nil
}

// UpdateContact replaces the contact fields.
func (s *ContactService) UpdateContact(ctx context.Context, actor domain.Actor, id string, input ContactInput) (*domain.Contact, error) {
	contact, err := s.GetContact(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	input = input.trimmed()
	if err := input.validate(); err != nil {
		return nil, err
	}
	if !strings.EqualFold(input.Email, contact.Email) {
		if err := s.ensureEmailFree(ctx, actor.TenantID, input.Email, contact.ID); err != nil {
			return nil, err
		}
	}
	input.apply(contact)
	contact.UpdatedBy = actor.ID
	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, apperrors.MapError(err)
	}
	return contact, nil
}

// GetContact loads one contact.
func (s *ContactService) GetContact(ctx context.Context, actor domain.Actor, id string) (*domain.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "contact", id)
	}
	return contact, nil
}

// ListContacts pages through contacts.
func (s *ContactService) ListContacts(ctx context.Context, actor domain.Actor, filter ContactListFilter) (domain.PagedResult[domain.Contact], error) {
	items, total, err := s.contacts.List(ctx, actor.TenantID, repository.ContactFilter{
		Search:  strings.TrimSpace(filter.Search),
		Company: strings.TrimSpace(filter.Company),
		Page:    filter.Page,
	})
	if err != nil {
		return domain.PagedResult[domain.Contact]{}, apperrors.MapError(err)
	}
	return domain.NewPagedResult(items, filter.Page, total), nil
}

// DeleteContact soft deletes a contact.
func (s *ContactService) DeleteContact(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.contacts.SoftDelete(ctx, actor.TenantID, id, actor.ID); err != nil {
		return notFound(err, "contact", id)
	}
	return nil
}

func (s *ContactService) ensureEmailFree(ctx context.Context, tenantID, email, selfID string) error {
	if email == "" {
		return nil
	}
	existing, err := s.contacts.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if existing.ID == selfID {
		return nil
	}
	return apperrors.NewConflict("contact email already in use", map[string]any{"email": email})
}

func (in ContactInput) trimmed() ContactInput {
	return ContactInput{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:     strings.TrimSpace(in.Phone),
		Company:   strings.TrimSpace(in.Company),
		Notes:     strings.TrimSpace(in.Notes),
	}
}

func (in ContactInput) validate() error {
	fields := map[string]string{}
	if in.FirstName == "" && in.LastName == "" {
		fields["first_name"] = "first or last name is required"
	}
	if in.Email != "" {
		if !validation.IsEmail(in.Email) {
			fields["email"] = "must be a valid email address"
		}
	}
	return fieldErrors(fields)
}

func (in ContactInput) apply(c *domain.Contact) {
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Email = in.Email
	c.Phone = in.Phone
	c.Company = in.Company
	c.Notes = in.Notes
}
