package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// SLAEvaluateJob is the scheduler job name run by POST /sla/evaluate.
const SLAEvaluateJob = "sla.evaluate"

// JobTrigger runs a registered background job immediately.
type JobTrigger interface {
	Trigger(ctx context.Context, name string) bool
}

// SLAHandler manages SLA rules.
type SLAHandler struct {
	service *service.SLAService
	jobs    JobTrigger
}

// NewSLAHandler constructs handler.
func NewSLAHandler(slaService *service.SLAService, jobs JobTrigger) *SLAHandler {
	return &SLAHandler{service: slaService, jobs: jobs}
}

// CreateRule POST /sla/rules.
func (h *SLAHandler) CreateRule(c *fiber.Ctx) error {
	var req dto.SLARuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rule, err := h.service.CreateRule(c.UserContext(), actor(c), slaRuleInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": slaRuleResponse(rule)})
}

// ListRules GET /sla/rules.
func (h *SLAHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.service.ListRules(c.UserContext(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mapAll(rules, slaRuleResponse)})
}

// GetRule GET /sla/rules/:id.
func (h *SLAHandler) GetRule(c *fiber.Ctx) error {
	rule, err := h.service.GetRule(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaRuleResponse(rule)})
}

// UpdateRule PUT /sla/rules/:id.
func (h *SLAHandler) UpdateRule(c *fiber.Ctx) error {
	var req dto.SLARuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rule, err := h.service.UpdateRule(c.UserContext(), actor(c), c.Params("id"), slaRuleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaRuleResponse(rule)})
}

// DeleteRule DELETE /sla/rules/:id.
func (h *SLAHandler) DeleteRule(c *fiber.Ctx) error {
	if err := h.service.DeleteRule(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Evaluate POST /sla/evaluate. Runs the breach scan synchronously unless
// another instance holds the job lock.
func (h *SLAHandler) Evaluate(c *fiber.Ctx) error {
	if h.jobs == nil || !h.jobs.Trigger(c.UserContext(), SLAEvaluateJob) {
		return apperrors.NewConflict("sla evaluation already running", nil)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "completed"}})
}

func slaRuleInput(req dto.SLARuleRequest) service.SLARuleInput {
	return service.SLARuleInput{
		Name:                 req.Name,
		Description:          req.Description,
		SortOrder:            req.SortOrder,
		IsActive:             req.IsActive,
		Conditions:           req.Conditions,
		FirstResponseMinutes: req.FirstResponseMinutes,
		ResolutionMinutes:    req.ResolutionMinutes,
		BusinessHoursOnly:    req.BusinessHoursOnly,
	}
}

func slaRuleResponse(rule *domain.SLARule) dto.SLARuleResponse {
	conditions := rule.Conditions
	if conditions.Conditions == nil {
		conditions.Conditions = []domain.Condition{}
	}
	return dto.SLARuleResponse{
		ID:                   rule.ID,
		Name:                 rule.Name,
		Description:          rule.Description,
		SortOrder:            rule.SortOrder,
		IsActive:             rule.IsActive,
		Conditions:           conditions,
		FirstResponseMinutes: rule.FirstResponseMinutes,
		ResolutionMinutes:    rule.ResolutionMinutes,
		BusinessHoursOnly:    rule.BusinessHoursOnly,
		CreatedAt:            rule.CreatedAt,
		UpdatedAt:            rule.UpdatedAt,
	}
}
