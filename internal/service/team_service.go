package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TeamService manages teams and their memberships.
type TeamService struct {
	teams repository.TeamRepository
	users repository.UserRepository
}

// TeamDependencies bundles collaborators.
type TeamDependencies struct {
	TeamRepo repository.TeamRepository
	UserRepo repository.UserRepository
}

// TeamInput describes a new team.
type TeamInput struct {
	Name               string
	Description        string
	AssignmentStrategy domain.AssignmentStrategy
	IsActive           *bool
}

// UpdateTeamInput carries optional team changes.
type UpdateTeamInput struct {
	Name               *string
	Description        *string
	AssignmentStrategy *domain.AssignmentStrategy
	IsActive           *bool
}

// TeamListFilter narrows ListTeams.
type TeamListFilter struct {
	Search string
	Active *bool
	Page   domain.Page
}

// MemberInput adds a user to a team. Flags default to true.
type MemberInput struct {
	UserID       string
	IsAssignable *bool
	IsActive     *bool
}

// UpdateMemberInput toggles membership flags.
type UpdateMemberInput struct {
	IsAssignable *bool
	IsActive     *bool
}

// NewTeamService constructs the service.
func NewTeamService(deps TeamDependencies) *TeamService {
	return &TeamService{teams: deps.TeamRepo, users: deps.UserRepo}
}

// CreateTeam adds a team. The strategy defaults to manual.
func (s *TeamService) CreateTeam(ctx context.Context, actor domain.Actor, input TeamInput) (*domain.Team, error) {
	fields := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		fields["name"] = "is required"
	}
	strategy := input.AssignmentStrategy
	if strategy == "" {
		strategy = domain.AssignmentManual
	}
	if !strategy.IsValid() {
		fields["assignment_strategy"] = "must be manual or round_robin"
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	team := &domain.Team{
		TenantID:           actor.TenantID,
		Name:               name,
		Description:        strings.TrimSpace(input.Description),
		AssignmentStrategy: strategy,
		IsActive:           input.IsActive == nil || *input.IsActive,
	}
	team.CreatedBy = actor.ID
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, apperrors.MapError(err)
	}
	return team, nil
}

// GetTeam loads one team.
func (s *TeamService) GetTeam(ctx context.Context, actor domain.Actor, id string) (*domain.Team, error) {
	team, err := s.teams.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "team", id)
	}
	return team, nil
}

// ListTeams pages through teams.
func (s *TeamService) ListTeams(ctx context.Context, actor domain.Actor, filter TeamListFilter) (domain.PagedResult[domain.Team], error) {
	items, total, err := s.teams.List(ctx, actor.TenantID, repository.TeamFilter{
		Search: strings.TrimSpace(filter.Search),
		Active: filter.Active,
		Page:   filter.Page,
	})
	if err != nil {
		return domain.PagedResult[domain.Team]{}, apperrors.MapError(err)
	}
	return domain.NewPagedResult(items, filter.Page, total), nil
}

// UpdateTeam edits a team.
func (s *TeamService) UpdateTeam(ctx context.Context, actor domain.Actor, id string, input UpdateTeamInput) (*domain.Team, error) {
	team, err := s.GetTeam(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name == "" {
			fields["name"] = "is required"
		} else {
			team.Name = name
		}
	}
	if input.Description != nil {
		team.Description = strings.TrimSpace(*input.Description)
	}
	if input.AssignmentStrategy != nil {
		if !input.AssignmentStrategy.IsValid() {
			fields["assignment_strategy"] = "must be manual or round_robin"
		} else {
			team.AssignmentStrategy = *input.AssignmentStrategy
		}
	}
	if input.IsActive != nil {
		team.IsActive = *input.IsActive
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	team.UpdatedBy = actor.ID
	if err := s.teams.Update(ctx, team); err != nil {
		return nil, apperrors.MapError(err)
	}
	return team, nil
}

// DeleteTeam soft deletes a team.
func (s *TeamService) DeleteTeam(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.teams.SoftDelete(ctx, actor.TenantID, id, actor.ID); err != nil {
		return notFound(err, "team", id)
	}
	return nil
}

// AddMember adds a tenant user to the team.
func (s *TeamService) AddMember(ctx context.Context, actor domain.Actor, teamID string, input MemberInput) (*domain.TeamMembership, error) {
	if _, err := s.GetTeam(ctx, actor, teamID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, apperrors.NewFieldErrors(map[string]string{"user_id": "is required"})
	}
	user, err := s.users.GetByID(ctx, actor.TenantID, input.UserID)
	if err != nil {
		return nil, notFound(err, "user", input.UserID)
	}
	if _, err := s.teams.GetMember(ctx, actor.TenantID, teamID, user.ID); err == nil {
		return nil, apperrors.NewConflict("user is already a member", map[string]any{"user_id": user.ID})
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	member := &domain.TeamMembership{
		TeamID:       teamID,
		UserID:       user.ID,
		UserName:     user.Name,
		UserActive:   user.IsActive,
		IsAssignable: input.IsAssignable == nil || *input.IsAssignable,
		IsActive:     input.IsActive == nil || *input.IsActive,
	}
	if err := s.teams.AddMember(ctx, actor.TenantID, member); err != nil {
		return nil, apperrors.MapError(err)
	}
	return member, nil
}

// UpdateMember toggles whether a member is active or receives automatic assignments.
func (s *TeamService) UpdateMember(ctx context.Context, actor domain.Actor, teamID, userID string, input UpdateMemberInput) (*domain.TeamMembership, error) {
	member, err := s.teams.GetMember(ctx, actor.TenantID, teamID, userID)
	if err != nil {
		return nil, notFound(err, "team member", userID)
	}
	if input.IsAssignable != nil {
		member.IsAssignable = *input.IsAssignable
	}
	if input.IsActive != nil {
		member.IsActive = *input.IsActive
	}
	if err := s.teams.UpdateMember(ctx, actor.TenantID, member); err != nil {
		return nil, notFound(err, "team member", userID)
	}
	return member, nil
}

// RemoveMember removes a user from the team.
func (s *TeamService) RemoveMember(ctx context.Context, actor domain.Actor, teamID, userID string) error {
	if err := s.teams.RemoveMember(ctx, actor.TenantID, teamID, userID); err != nil {
		return notFound(err, "team member", userID)
	}
	return nil
}

// ListMembers lists memberships in join order.
func (s *TeamService) ListMembers(ctx context.Context, actor domain.Actor, teamID string) ([]domain.TeamMembership, error) {
	if _, err := s.GetTeam(ctx, actor, teamID); err != nil {
		return nil, err
	}
	members, err := s.teams.ListMembers(ctx, actor.TenantID, teamID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return members, nil
}
