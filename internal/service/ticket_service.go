package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const ticketNumberAttempts = 3

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	contacts   repository.ContactRepository
	teams      repository.TeamRepository
	users      repository.UserRepository
	historyRep repository.TicketHistoryRepository
	history    historyWriter
	sla        *SLAService
	assignment *AssignmentService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	ContactRepo repository.ContactRepository
	TeamRepo    repository.TeamRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	SLA         *SLAService
	Assignment  *AssignmentService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
	Channel     domain.TicketChannel
	ContactID   *string
	TeamID      *string
	AssigneeID  *string
	Tags        []string
}

// TicketUpdateInput carries optional detail changes. A nil Tags slice leaves tags unchanged.
type TicketUpdateInput struct {
	Subject     *string
	Description *string
	Channel     *domain.TicketChannel
	ContactID   *string
	Tags        []string
}

// TicketListFilter describes ticket listing filters.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	TeamID      *string
	AssigneeID  *string
	ContactID   *string
	Tag         string
	Search      string
	SLAStatus   *domain.SLAStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        domain.Page
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		contacts:   deps.ContactRepo,
		teams:      deps.TeamRepo,
		users:      deps.UserRepo,
		historyRep: deps.HistoryRepo,
		history:    historyWriter{repo: deps.HistoryRepo},
		sla:        deps.SLA,
		assignment: deps.Assignment,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("tickets"),
		now:        time.Now,
	}
}

// CreateTicket opens a ticket, applies the matching SLA rule and routes it.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		TenantID:    actor.TenantID,
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		Channel:     input.Channel,
		ContactID:   trimPtr(input.ContactID),
		TeamID:      trimPtr(input.TeamID),
		AssigneeID:  trimPtr(input.AssigneeID),
		Tags:        normalizeTags(input.Tags),
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Channel == "" {
		ticket.Channel = domain.ChannelWeb
		if actor.Type == domain.ActorTypeAPIKey {
			ticket.Channel = domain.ChannelAPI
		}
	}

	fields := map[string]string{}
	if ticket.Subject == "" {
		fields["subject"] = "is required"
	}
	if !ticket.Priority.IsValid() {
		fields["priority"] = "must be one of LOW, MEDIUM, HIGH, URGENT"
	}
	if !ticket.Channel.IsValid() {
		fields["channel"] = "must be one of EMAIL, PHONE, WEB, CHAT, API"
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, actor.TenantID, ticket.ContactID, ticket.TeamID, ticket.AssigneeID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if s.sla != nil {
		if err := s.sla.ApplyToTicket(ctx, ticket, now, now); err != nil {
			return nil, err
		}
	}
	ticket.CreatedBy = actor.ID
	if err := s.insert(ctx, ticket); err != nil {
		return nil, err
	}

	if err := s.history.record(ctx, actor, ticket, domain.ChangeTypeCreated, nil, map[string]any{
		"status":   ticket.Status,
		"priority": ticket.Priority,
		"team_id":  ticket.TeamID,
	}); err != nil {
		return nil, apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, ticketEvent(events.EventTicketCreated, actor, ticket, events.TicketCreatedPayload{
		Number:   ticket.Number,
		Subject:  ticket.Subject,
		TeamID:   ticket.TeamID,
		Priority: ticket.Priority,
	}))

	switch {
	case ticket.AssigneeID != nil:
		publishEvent(ctx, s.dispatcher, ticketEvent(events.EventTicketAssigned, actor, ticket, events.TicketAssignedPayload{
			AssigneeID: ticket.AssigneeID,
			TeamID:     ticket.TeamID,
		}))
	case s.assignment != nil:
		if err := s.assignment.AutoAssignIfRoundRobin(ctx, actor, ticket); err != nil {
			s.logger.Warn("auto assignment failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return ticket, nil
}

// GetTicket loads a ticket by id or by its HD- number.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, idOrNumber string) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if strings.HasPrefix(strings.ToUpper(idOrNumber), ticketNumberPrefix) {
		ticket, err = s.tickets.GetByNumber(ctx, actor.TenantID, idOrNumber)
	} else {
		ticket, err = s.tickets.GetByID(ctx, actor.TenantID, idOrNumber)
	}
	if err != nil {
		return nil, notFound(err, "ticket", idOrNumber)
	}
	return ticket, nil
}

// ListTickets pages through tickets.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) (domain.PagedResult[domain.Ticket], error) {
	items, total, err := s.tickets.List(ctx, actor.TenantID, repository.TicketFilter{
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		TeamID:      filter.TeamID,
		AssigneeID:  filter.AssigneeID,
		ContactID:   filter.ContactID,
		Tag:         strings.ToLower(strings.TrimSpace(filter.Tag)),
		Search:      strings.TrimSpace(filter.Search),
		SLAStatus:   filter.SLAStatus,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Page:        filter.Page,
	})
	if err != nil {
		return domain.PagedResult[domain.Ticket]{}, apperrors.MapError(err)
	}
	return domain.NewPagedResult(items, filter.Page, total), nil
}

// UpdateTicket edits subject, description, channel, contact and tags.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	oldValue := map[string]any{}
	newValue := map[string]any{}
	fields := map[string]string{}

	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if subject == "" {
			fields["subject"] = "is required"
		} else if subject != ticket.Subject {
			oldValue["subject"], newValue["subject"] = ticket.Subject, subject
			ticket.Subject = subject
		}
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description != ticket.Description {
			oldValue["description"], newValue["description"] = ticket.Description, description
			ticket.Description = description
		}
	}
	if input.Channel != nil {
		if !input.Channel.IsValid() {
			fields["channel"] = "must be one of EMAIL, PHONE, WEB, CHAT, API"
		} else if *input.Channel != ticket.Channel {
			oldValue["channel"], newValue["channel"] = ticket.Channel, *input.Channel
			ticket.Channel = *input.Channel
		}
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	if input.ContactID != nil {
		contactID := trimPtr(input.ContactID)
		if err := s.checkReferences(ctx, actor.TenantID, contactID, nil, nil); err != nil {
			return nil, err
		}
		if !sameID(contactID, ticket.ContactID) {
			oldValue["contact_id"], newValue["contact_id"] = ticket.ContactID, contactID
			ticket.ContactID = contactID
		}
	}
	if input.Tags != nil {
		tags := normalizeTags(input.Tags)
		oldValue["tags"], newValue["tags"] = ticket.Tags, tags
		ticket.Tags = tags
	}
	if len(newValue) == 0 {
		return ticket, nil
	}

	ticket.UpdatedBy = actor.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.history.record(ctx, actor, ticket, domain.ChangeTypeDetails, oldValue, newValue); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// DeleteTicket soft deletes a ticket.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, id string) error {
	ticket, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.tickets.SoftDelete(ctx, actor.TenantID, ticket.ID, actor.ID); err != nil {
		return notFound(err, "ticket", id)
	}
	return apperrors.MapError(s.history.record(ctx, actor, ticket, domain.ChangeTypeDeleted, nil, nil))
}

// ChangeStatus moves a ticket through its lifecycle. Resolving or closing stamps
// the completion time; reopening clears it and restarts the SLA clocks.
func (s *TicketService) ChangeStatus(ctx context.Context, actor domain.Actor, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.IsValid() {
		return nil, apperrors.NewFieldErrors(map[string]string{"status": "unknown status"})
	}
	ticket, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	old := ticket.Status
	if old == status {
		return ticket, nil
	}
	if !old.CanTransitionTo(status) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{"from": old, "to": status})
	}

	now := s.now().UTC()
	switch {
	case status == domain.TicketStatusResolved:
		ticket.ResolvedAt = &now
	case status == domain.TicketStatusClosed:
		ticket.ClosedAt = &now
		if ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
		}
	case old.IsReopen(status):
		ticket.ResolvedAt = nil
		ticket.ClosedAt = nil
		if s.sla != nil {
			if err := s.sla.ApplyToTicket(ctx, ticket, now, now); err != nil {
				return nil, err
			}
		}
	}
	ticket.Status = status
	ticket.UpdatedBy = actor.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.history.record(ctx, actor, ticket, domain.ChangeTypeStatus,
		map[string]any{"status": old},
		map[string]any{"status": status},
	); err != nil {
		return nil, apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, ticketEvent(events.EventTicketStatusChanged, actor, ticket, events.TicketStatusChangedPayload{
		OldStatus: old,
		NewStatus: status,
	}))
	return ticket, nil
}

// ChangePriority updates the priority and recomputes SLA targets from the original clock start.
func (s *TicketService) ChangePriority(ctx context.Context, actor domain.Actor, id string, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !priority.IsValid() {
		return nil, apperrors.NewFieldErrors(map[string]string{"priority": "must be one of LOW, MEDIUM, HIGH, URGENT"})
	}
	ticket, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	old := ticket.Priority
	if old == priority {
		return ticket, nil
	}
	ticket.Priority = priority
	if s.sla != nil && !ticket.Status.IsTerminal() {
		if err := s.sla.ApplyToTicket(ctx, ticket, slaStart(ticket), s.now().UTC()); err != nil {
			return nil, err
		}
	}
	ticket.UpdatedBy = actor.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.history.record(ctx, actor, ticket, domain.ChangeTypePriority,
		map[string]any{"priority": old},
		map[string]any{"priority": priority},
	); err != nil {
		return nil, apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, ticketEvent(events.EventTicketPriorityChanged, actor, ticket, events.TicketPriorityChangedPayload{
		OldPriority: old,
		NewPriority: priority,
	}))
	return ticket, nil
}

// RecordFirstResponse stamps the first agent response once; later calls are no-ops.
func (s *TicketService) RecordFirstResponse(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if ticket.FirstRespondedAt != nil {
		return ticket, nil
	}
	now := s.now().UTC()
	ticket.FirstRespondedAt = &now
	ticket.UpdatedBy = actor.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.history.record(ctx, actor, ticket, domain.ChangeTypeResponded, nil,
		map[string]any{"first_responded_at": now},
	); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListHistory returns the audit trail of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, id string, filter repository.HistoryFilter) ([]domain.TicketHistory, error) {
	for _, ct := range filter.ChangeTypes {
		if !ct.IsValid() {
			return nil, apperrors.NewFieldErrors(map[string]string{"change_type": "unknown change type " + string(ct)})
		}
	}
	ticket, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.historyRep.ListByTicket(ctx, actor.TenantID, ticket.ID, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) load(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	return ticket, nil
}

// insert retries with a fresh number when the generated one collides.
func (s *TicketService) insert(ctx context.Context, ticket *domain.Ticket) error {
	var err error
	for attempt := 0; attempt < ticketNumberAttempts; attempt++ {
		ticket.Number = generateTicketNumber()
		if err = s.tickets.Create(ctx, ticket); err == nil {
			return nil
		}
		if apperrors.ToDomainError(err).Code != "CONFLICT" {
			break
		}
	}
	return apperrors.MapError(err)
}

func (s *TicketService) checkReferences(ctx context.Context, tenantID string, contactID, teamID, assigneeID *string) error {
	if contactID != nil {
		if _, err := s.contacts.GetByID(ctx, tenantID, *contactID); err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewFieldErrors(map[string]string{"contact_id": "unknown contact"})
			}
			return apperrors.MapError(err)
		}
	}
	if teamID != nil {
		team, err := s.teams.GetByID(ctx, tenantID, *teamID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewFieldErrors(map[string]string{"team_id": "unknown team"})
			}
			return apperrors.MapError(err)
		}
		if !team.IsActive {
			return apperrors.NewFieldErrors(map[string]string{"team_id": "team is inactive"})
		}
	}
	if assigneeID != nil {
		user, err := s.users.GetByID(ctx, tenantID, *assigneeID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewFieldErrors(map[string]string{"assignee_id": "unknown user"})
			}
			return apperrors.MapError(err)
		}
		if !user.IsActive {
			return apperrors.NewFieldErrors(map[string]string{"assignee_id": "user is inactive"})
		}
	}
	return nil
}

const ticketNumberPrefix = "HD-"

func generateTicketNumber() string {
	return ticketNumberPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
