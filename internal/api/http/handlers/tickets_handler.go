package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// TicketsHandler manages tickets, their assignment and SLA state.
type TicketsHandler struct {
	tickets    *service.TicketService
	assignment *service.AssignmentService
	sla        *service.SLAService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignment *service.AssignmentService, sla *service.SLAService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignment: assignment, sla: sla}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor(c), service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
		Channel:     req.Channel,
		ContactID:   req.ContactID,
		TeamID:      req.TeamID,
		AssigneeID:  req.AssigneeID,
		Tags:        req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	result, err := h.tickets.ListTickets(c.UserContext(), actor(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(paged(result, ticketResponse))
}

// GetTicket GET /tickets/:id. Accepts the ticket id or its number.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateTicket(c.UserContext(), actor(c), c.Params("id"), service.TicketUpdateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Channel:     req.Channel,
		ContactID:   req.ContactID,
		Tags:        req.Tags,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.tickets.DeleteTicket(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	var req dto.ChangeStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.ChangeStatus(c.UserContext(), actor(c), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ChangePriority POST /tickets/:id/priority.
func (h *TicketsHandler) ChangePriority(c *fiber.Ctx) error {
	var req dto.ChangePriorityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.ChangePriority(c.UserContext(), actor(c), c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// RecordFirstResponse POST /tickets/:id/first-response.
func (h *TicketsHandler) RecordFirstResponse(c *fiber.Ctx) error {
	ticket, err := h.tickets.RecordFirstResponse(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignment.AssignUser(c.UserContext(), actor(c), c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ChangeTeam POST /tickets/:id/team.
func (h *TicketsHandler) ChangeTeam(c *fiber.Ctx) error {
	var req dto.ChangeTeamRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignment.AssignTeam(c.UserContext(), actor(c), c.Params("id"), req.TeamID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AutoAssign POST /tickets/:id/auto-assign.
func (h *TicketsHandler) AutoAssign(c *fiber.Ctx) error {
	ticket, err := h.assignment.AutoAssign(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListHistory GET /tickets/:id/history?change_type=STATUS_CHANGE,SLA_CHANGE&since=...
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	q := newQuery(c)
	filter := repository.HistoryFilter{Since: q.optionalTime("since")}
	for _, ct := range q.list("change_type") {
		filter.ChangeTypes = append(filter.ChangeTypes, domain.TicketChangeType(strings.ToUpper(ct)))
	}
	if err := q.err(); err != nil {
		return err
	}
	entries, err := h.tickets.ListHistory(c.UserContext(), actor(c), c.Params("id"), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mapAll(entries, historyResponse)})
}

// GetSLA GET /tickets/:id/sla.
func (h *TicketsHandler) GetSLA(c *fiber.Ctx) error {
	status, err := h.sla.TicketSLA(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSLAStatusResponse{
		TicketID:         status.TicketID,
		Status:           status.Evaluation.Status,
		Target:           string(status.Evaluation.Target),
		DueAt:            status.Evaluation.DueAt,
		RemainingSeconds: int64(status.Evaluation.Remaining.Seconds()),
		PercentUsed:      status.Evaluation.PercentUsed,
		SLA:              ticketSLAResponse(status.SLA),
	}})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	q := newQuery(c)
	filter := service.TicketListFilter{
		TeamID:      q.optionalString("team_id"),
		AssigneeID:  q.optionalString("assignee_id"),
		ContactID:   q.optionalString("contact_id"),
		Tag:         c.Query("tag"),
		Search:      c.Query("search"),
		CreatedFrom: q.optionalTime("created_from"),
		CreatedTo:   q.optionalTime("created_to"),
		Page:        q.page(),
	}
	for _, part := range q.list("status") {
		status := domain.TicketStatus(strings.ToUpper(part))
		if !status.IsValid() {
			q.fields["status"] = "unknown status " + part
			continue
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, part := range q.list("priority") {
		priority := domain.TicketPriority(strings.ToUpper(part))
		if !priority.IsValid() {
			q.fields["priority"] = "unknown priority " + part
			continue
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if raw := q.optionalString("sla_status"); raw != nil {
		status := domain.SLAStatus(strings.ToUpper(*raw))
		switch status {
		case domain.SLAStatusNone, domain.SLAStatusOnTrack, domain.SLAStatusAtRisk, domain.SLAStatusBreached, domain.SLAStatusMet:
			filter.SLAStatus = &status
		default:
			q.fields["sla_status"] = "must be one of NONE ON_TRACK AT_RISK BREACHED MET"
		}
	}
	if filter.AssigneeID != nil && *filter.AssigneeID == "me" {
		id := actor(c).UserID()
		filter.AssigneeID = &id
	}
	return filter, q.err()
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	return dto.TicketResponse{
		ID:               ticket.ID,
		Number:           ticket.Number,
		Subject:          ticket.Subject,
		Description:      ticket.Description,
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		Channel:          ticket.Channel,
		ContactID:        ticket.ContactID,
		TeamID:           ticket.TeamID,
		AssigneeID:       ticket.AssigneeID,
		Tags:             tags,
		FirstRespondedAt: ticket.FirstRespondedAt,
		ResolvedAt:       ticket.ResolvedAt,
		ClosedAt:         ticket.ClosedAt,
		SLA:              ticketSLAResponse(ticket.SLA),
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
	}
}

func ticketSLAResponse(sla domain.TicketSLA) dto.TicketSLAResponse {
	return dto.TicketSLAResponse{
		RuleID:             sla.RuleID,
		FirstResponseDueAt: sla.FirstResponseDueAt,
		ResolutionDueAt:    sla.ResolutionDueAt,
		BusinessHoursOnly:  sla.BusinessHoursOnly,
		WarnedAt:           sla.WarnedAt,
		BreachedAt:         sla.BreachedAt,
	}
}

func historyResponse(entry *domain.TicketHistory) dto.TicketHistoryResponse {
	return dto.TicketHistoryResponse{
		ID:            entry.ID,
		ChangeType:    entry.ChangeType,
		ChangedByType: entry.ChangedByType,
		ChangedByID:   entry.ChangedByID,
		OldValue:      entry.OldValue,
		NewValue:      entry.NewValue,
		CreatedAt:     entry.CreatedAt,
	}
}
