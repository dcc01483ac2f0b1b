package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// TeamsHandler manages teams and their members.
type TeamsHandler struct {
	service *service.TeamService
}

// NewTeamsHandler constructs handler.
func NewTeamsHandler(teamService *service.TeamService) *TeamsHandler {
	return &TeamsHandler{service: teamService}
}

// CreateTeam POST /teams.
func (h *TeamsHandler) CreateTeam(c *fiber.Ctx) error {
	var req dto.CreateTeamRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	team, err := h.service.CreateTeam(c.UserContext(), actor(c), service.TeamInput{
		Name:               req.Name,
		Description:        req.Description,
		AssignmentStrategy: req.AssignmentStrategy,
		IsActive:           req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": teamResponse(team)})
}

// ListTeams GET /teams.
func (h *TeamsHandler) ListTeams(c *fiber.Ctx) error {
	q := newQuery(c)
	filter := service.TeamListFilter{
		Search: c.Query("search"),
		Active: q.optionalBool("active"),
		Page:   q.page(),
	}
	if err := q.err(); err != nil {
		return err
	}
	result, err := h.service.ListTeams(c.UserContext(), actor(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(paged(result, teamResponse))
}

// GetTeam GET /teams/:id.
func (h *TeamsHandler) GetTeam(c *fiber.Ctx) error {
	team, err := h.service.GetTeam(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teamResponse(team)})
}

// UpdateTeam PATCH /teams/:id.
func (h *TeamsHandler) UpdateTeam(c *fiber.Ctx) error {
	var req dto.UpdateTeamRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	team, err := h.service.UpdateTeam(c.UserContext(), actor(c), c.Params("id"), service.UpdateTeamInput{
		Name:               req.Name,
		Description:        req.Description,
		AssignmentStrategy: req.AssignmentStrategy,
		IsActive:           req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teamResponse(team)})
}

// DeleteTeam DELETE /teams/:id.
func (h *TeamsHandler) DeleteTeam(c *fiber.Ctx) error {
	if err := h.service.DeleteTeam(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListMembers GET /teams/:id/members.
func (h *TeamsHandler) ListMembers(c *fiber.Ctx) error {
	members, err := h.service.ListMembers(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mapAll(members, memberResponse)})
}

// AddMember POST /teams/:id/members.
func (h *TeamsHandler) AddMember(c *fiber.Ctx) error {
	var req dto.AddMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	member, err := h.service.AddMember(c.UserContext(), actor(c), c.Params("id"), service.MemberInput{
		UserID:       req.UserID,
		IsAssignable: req.IsAssignable,
		IsActive:     req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": memberResponse(member)})
}

// UpdateMember PATCH /teams/:id/members/:userId.
func (h *TeamsHandler) UpdateMember(c *fiber.Ctx) error {
	var req dto.UpdateMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	member, err := h.service.UpdateMember(c.UserContext(), actor(c), c.Params("id"), c.Params("userId"), service.UpdateMemberInput{
		IsAssignable: req.IsAssignable,
		IsActive:     req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponse(member)})
}

// RemoveMember DELETE /teams/:id/members/:userId.
func (h *TeamsHandler) RemoveMember(c *fiber.Ctx) error {
	if err := h.service.RemoveMember(c.UserContext(), actor(c), c.Params("id"), c.Params("userId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func teamResponse(team *domain.Team) dto.TeamResponse {
	return dto.TeamResponse{
		ID:                 team.ID,
		Name:               team.Name,
		Description:        team.Description,
		AssignmentStrategy: team.AssignmentStrategy,
		IsActive:           team.IsActive,
		CreatedAt:          team.CreatedAt,
		UpdatedAt:          team.UpdatedAt,
	}
}

func memberResponse(member *domain.TeamMembership) dto.TeamMemberResponse {
	return dto.TeamMemberResponse{
		UserID:         member.UserID,
		UserName:       member.UserName,
		UserActive:     member.UserActive,
		IsAssignable:   member.IsAssignable,
		IsActive:       member.IsActive,
		LastAssignedAt: member.LastAssignedAt,
		JoinedAt:       member.JoinedAt,
	}
}
