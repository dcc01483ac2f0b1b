package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// NotificationsHandler serves in-app notifications and email template management.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// ListNotifications GET /notifications.
func (h *NotificationsHandler) ListNotifications(c *fiber.Ctx) error {
	q := newQuery(c)
	unread := q.optionalBool("unread")
	page := q.page()
	if err := q.err(); err != nil {
		return err
	}
	result, err := h.service.ListMyNotifications(c.UserContext(), actor(c), unread != nil && *unread, page)
	if err != nil {
		return err
	}
	return c.JSON(paged(result, notificationResponse))
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(c.UserContext(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.service.MarkRead(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	updated, err := h.service.MarkAllRead(c.UserContext(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": updated}})
}

// ListTemplates GET /email-templates.
func (h *NotificationsHandler) ListTemplates(c *fiber.Ctx) error {
	views, err := h.service.ListEmailTemplates(c.UserContext(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mapAll(views, emailTemplateResponse)})
}

// GetTemplate GET /email-templates/:key.
func (h *NotificationsHandler) GetTemplate(c *fiber.Ctx) error {
	view, err := h.service.GetEmailTemplate(c.UserContext(), actor(c), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": emailTemplateResponse(view)})
}

// PutTemplate PUT /email-templates/:key.
func (h *NotificationsHandler) PutTemplate(c *fiber.Ctx) error {
	var req dto.EmailTemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	view, err := h.service.PutEmailTemplate(c.UserContext(), actor(c), c.Params("key"), req.Subject, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": emailTemplateResponse(view)})
}

// DeleteTemplate DELETE /email-templates/:key restores the built-in template.
func (h *NotificationsHandler) DeleteTemplate(c *fiber.Ctx) error {
	if err := h.service.DeleteEmailTemplate(c.UserContext(), actor(c), c.Params("key")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// PreviewTemplate POST /email-templates/:key/preview.
func (h *NotificationsHandler) PreviewTemplate(c *fiber.Ctx) error {
	var req dto.EmailTemplatePreviewRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	msg, err := h.service.PreviewEmailTemplate(c.UserContext(), actor(c), c.Params("key"), req.Subject, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EmailPreviewResponse{Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text}})
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		Link:      n.Link,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func emailTemplateResponse(view *service.EmailTemplateView) dto.EmailTemplateResponse {
	return dto.EmailTemplateResponse{
		Key:        view.Key,
		Subject:    view.Subject,
		Body:       view.Body,
		Overridden: view.Overridden,
		UpdatedAt:  view.UpdatedAt,
	}
}
