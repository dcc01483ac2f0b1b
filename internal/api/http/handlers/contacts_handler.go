package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// ContactsHandler manages customer contacts.
type ContactsHandler struct {
	service *service.ContactService
}

// NewContactsHandler constructs handler.
func NewContactsHandler(contactService *service.ContactService) *ContactsHandler {
	return &ContactsHandler{service: contactService}
}

// CreateContact POST /contacts.
func (h *ContactsHandler) CreateContact(c *fiber.Ctx) error {
	var req dto.ContactRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	contact, err := h.service.CreateContact(c.UserContext(), actor(c), contactInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": contactResponse(contact)})
}

// ListContacts GET /contacts.
func (h *ContactsHandler) ListContacts(c *fiber.Ctx) error {
	q := newQuery(c)
	filter := service.ContactListFilter{
		Search:  c.Query("search"),
		Company: c.Query("company"),
		Page:    q.page(),
	}
	if err := q.err(); err != nil {
		return err
	}
	result, err := h.service.ListContacts(c.UserContext(), actor(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(paged(result, contactResponse))
}

// GetContact GET /contacts/:id.
func (h *ContactsHandler) GetContact(c *fiber.Ctx) error {
	contact, err := h.service.GetContact(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": contactResponse(contact)})
}

// UpdateContact PUT /contacts/:id.
func (h *ContactsHandler) UpdateContact(c *fiber.Ctx) error {
	var req dto.ContactRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	contact, err := h.service.UpdateContact(c.UserContext(), actor(c), c.Params("id"), contactInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": contactResponse(contact)})
}

// DeleteContact DELETE /contacts/:id.
func (h *ContactsHandler) DeleteContact(c *fiber.Ctx) error {
	if err := h.service.DeleteContact(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func contactInput(req dto.ContactRequest) service.ContactInput {
	return service.ContactInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Notes:     req.Notes,
	}
}

func contactResponse(contact *domain.Contact) dto.ContactResponse {
	return dto.ContactResponse{
		ID:        contact.ID,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		FullName:  contact.FullName(),
		Email:     contact.Email,
		Phone:     contact.Phone,
		Company:   contact.Company,
		Notes:     contact.Notes,
		CreatedAt: contact.CreatedAt,
		UpdatedAt: contact.UpdatedAt,
	}
}
