package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	teams      repository.TeamRepository
	history    historyWriter
	sla        *SLAService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	TeamRepo    repository.TeamRepository
	HistoryRepo repository.TicketHistoryRepository
	SLA         *SLAService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		teams:      deps.TeamRepo,
		history:    historyWriter{repo: deps.HistoryRepo},
		sla:        deps.SLA,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("assignment"),
		now:        time.Now,
	}
}

// AssignUser sets or clears (nil) the ticket assignee. The assignee must be an active user.
func (s *AssignmentService) AssignUser(ctx context.Context, actor domain.Actor, ticketID string, assigneeID *string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	assigneeID = trimPtr(assigneeID)
	if assigneeID != nil {
		user, err := s.users.GetByID(ctx, actor.TenantID, *assigneeID)
		if err != nil {
			return nil, notFound(err, "user", *assigneeID)
		}
		if !user.IsActive {
			return nil, apperrors.NewConflict("assignee inactive", map[string]any{"user_id": user.ID})
		}
	}
	if sameID(ticket.AssigneeID, assigneeID) {
		return ticket, nil
	}

	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = assigneeID
	ticket.UpdatedBy = actor.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordAssigneeChange(ctx, actor, ticket, oldAssignee); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishAssigned(ctx, actor, ticket, false)
	return ticket, nil
}

// AssignTeam routes the ticket to another team (nil clears it). The assignee is
// cleared, SLA targets are recomputed and round-robin teams pick a new assignee.
func (s *AssignmentService) AssignTeam(ctx context.Context, actor domain.Actor, ticketID string, teamID *string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	teamID = trimPtr(teamID)
	var team *domain.Team
	if teamID != nil {
		if team, err = s.activeTeam(ctx, actor.TenantID, *teamID); err != nil {
			return nil, err
		}
	}
	if sameID(ticket.TeamID, teamID) {
		return ticket, nil
	}

	oldTeam := ticket.TeamID
	oldAssignee := ticket.AssigneeID
	ticket.TeamID = teamID
	ticket.AssigneeID = nil
	if s.sla != nil && !ticket.Status.IsTerminal() {
		if err := s.sla.ApplyToTicket(ctx, ticket, slaStart(ticket), s.now().UTC()); err != nil {
			return nil, err
		}
	}
	ticket.UpdatedBy = actor.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.history.record(ctx, actor, ticket, domain.ChangeTypeTeam,
		map[string]any{"team_id": oldTeam},
		map[string]any{"team_id": ticket.TeamID},
	); err != nil {
		return nil, apperrors.MapError(err)
	}
	if oldAssignee != nil {
		if err := s.recordAssigneeChange(ctx, actor, ticket, oldAssignee); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	publishEvent(ctx, s.dispatcher, ticketEvent(events.EventTicketTeamChanged, actor, ticket, events.TicketTeamChangedPayload{
		OldTeamID: oldTeam,
		NewTeamID: ticket.TeamID,
	}))

	if team != nil && team.AssignmentStrategy == domain.AssignmentRoundRobin {
		if err := s.routeNew(ctx, actor, ticket, team); err != nil {
			return nil, err
		}
	}
	return ticket, nil
}

// AutoAssign picks the next round-robin member of the ticket's team regardless
// of the team strategy. A team without eligible members is a CONFLICT.
func (s *AssignmentService) AutoAssign(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.TeamID == nil {
		return nil, apperrors.NewConflict("ticket has no team", map[string]any{"ticket_id": ticket.ID})
	}
	if _, err := s.activeTeam(ctx, actor.TenantID, *ticket.TeamID); err != nil {
		return nil, err
	}
	if err := s.assignNext(ctx, actor, ticket); err != nil {
		if errors.Is(err, repository.ErrNoAssignableMember) {
			return nil, apperrors.NewConflict("no assignable team member", map[string]any{"team_id": *ticket.TeamID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// AutoAssignIfRoundRobin assigns a freshly routed, unassigned ticket when its
// team uses round-robin. Missing candidates leave the ticket unassigned.
func (s *AssignmentService) AutoAssignIfRoundRobin(ctx context.Context, actor domain.Actor, ticket *domain.Ticket) error {
	if ticket.TeamID == nil || ticket.AssigneeID != nil {
		return nil
	}
	team, err := s.teams.GetByID(ctx, ticket.TenantID, *ticket.TeamID)
	if err != nil {
		return notFound(err, "team", *ticket.TeamID)
	}
	if !team.IsActive || team.AssignmentStrategy != domain.AssignmentRoundRobin {
		return nil
	}
	return s.routeNew(ctx, actor, ticket, team)
}

func (s *AssignmentService) routeNew(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, team *domain.Team) error {
	err := s.assignNext(ctx, actor, ticket)
	if errors.Is(err, repository.ErrNoAssignableMember) {
		s.logger.Info("round-robin found no assignable member",
			zap.String("tenant_id", ticket.TenantID),
			zap.String("ticket_id", ticket.ID),
			zap.String("team_id", team.ID),
		)
		return nil
	}
	return apperrors.MapError(err)
}

func (s *AssignmentService) assignNext(ctx context.Context, actor domain.Actor, ticket *domain.Ticket) error {
	member, err := s.teams.AssignRoundRobin(ctx, ticket.TenantID, *ticket.TeamID, s.now().UTC())
	if err != nil {
		return err
	}
	if ticket.AssigneeID != nil && *ticket.AssigneeID == member.UserID {
		return nil
	}
	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &member.UserID
	ticket.UpdatedBy = actor.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return err
	}
	if err := s.recordAssigneeChange(ctx, actor, ticket, oldAssignee); err != nil {
		return err
	}
	s.publishAssigned(ctx, actor, ticket, true)
	return nil
}

func (s *AssignmentService) loadTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, actor.TenantID, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	return ticket, nil
}

func (s *AssignmentService) activeTeam(ctx context.Context, tenantID, teamID string) (*domain.Team, error) {
	team, err := s.teams.GetByID(ctx, tenantID, teamID)
	if err != nil {
		return nil, notFound(err, "team", teamID)
	}
	if !team.IsActive {
		return nil, apperrors.NewConflict("team inactive", map[string]any{"team_id": teamID})
	}
	return team, nil
}

func (s *AssignmentService) recordAssigneeChange(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, oldAssignee *string) error {
	return s.history.record(ctx, actor, ticket, domain.ChangeTypeAssignee,
		map[string]any{"assignee_id": oldAssignee},
		map[string]any{"assignee_id": ticket.AssigneeID},
	)
}

func (s *AssignmentService) publishAssigned(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, auto bool) {
	publishEvent(ctx, s.dispatcher, ticketEvent(events.EventTicketAssigned, actor, ticket, events.TicketAssignedPayload{
		AssigneeID:   ticket.AssigneeID,
		TeamID:       ticket.TeamID,
		AutoAssigned: auto,
	}))
}

// slaStart keeps the original SLA clock start when targets are recomputed.
func slaStart(ticket *domain.Ticket) time.Time {
	if ticket.SLA.StartedAt != nil {
		return *ticket.SLA.StartedAt
	}
	return ticket.CreatedAt
}
