package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const defaultEvaluateBatch = 200

// SLAService manages SLA rules, applies them to tickets and runs breach evaluation.
type SLAService struct {
	rules      repository.SLARuleRepository
	tickets    repository.TicketRepository
	tenants    repository.TenantRepository
	history    historyWriter
	engine     *sla.Engine
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	batchSize  int
	now        func() time.Time
}

// SLADependencies bundles collaborators.
type SLADependencies struct {
	RuleRepo    repository.SLARuleRepository
	TicketRepo  repository.TicketRepository
	TenantRepo  repository.TenantRepository
	HistoryRepo repository.TicketHistoryRepository
	Engine      *sla.Engine
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	BatchSize   int
}

// SLARuleInput is the full set of editable rule fields. Conditions is the raw JSON condition set.
type SLARuleInput struct {
	Name                 string
	Description          string
	SortOrder            int
	IsActive             *bool
	Conditions           json.RawMessage
	FirstResponseMinutes int
	ResolutionMinutes    int
	BusinessHoursOnly    bool
}

// TicketSLAStatus is the evaluated SLA of one ticket.
type TicketSLAStatus struct {
	TicketID   string
	SLA        domain.TicketSLA
	Evaluation sla.Evaluation
}

// EvaluationSummary counts what one evaluation run changed.
type EvaluationSummary struct {
	Scanned  int
	Warned   int
	Breached int
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := deps.Engine
	if engine == nil {
		engine = sla.NewEngine(sla.DefaultWarningRatio)
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultEvaluateBatch
	}
	return &SLAService{
		rules:      deps.RuleRepo,
		tickets:    deps.TicketRepo,
		tenants:    deps.TenantRepo,
		history:    historyWriter{repo: deps.HistoryRepo},
		engine:     engine,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.Named("sla"),
		batchSize:  batch,
		now:        time.Now,
	}
}

// CreateRule adds an SLA rule.
func (s *SLAService) CreateRule(ctx context.Context, actor domain.Actor, input SLARuleInput) (*domain.SLARule, error) {
	rule := &domain.SLARule{TenantID: actor.TenantID, IsActive: true}
	if err := applyRuleInput(rule, input); err != nil {
		return nil, err
	}
	rule.CreatedBy = actor.ID
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// UpdateRule replaces a rule's definition. Existing tickets keep their computed targets.
func (s *SLAService) UpdateRule(ctx context.Context, actor domain.Actor, id string, input SLARuleInput) (*domain.SLARule, error) {
	rule, err := s.GetRule(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := applyRuleInput(rule, input); err != nil {
		return nil, err
	}
	rule.UpdatedBy = actor.ID
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// GetRule loads one rule.
func (s *SLAService) GetRule(ctx context.Context, actor domain.Actor, id string) (*domain.SLARule, error) {
	rule, err := s.rules.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "sla rule", id)
	}
	return rule, nil
}

// ListRules returns the tenant's rules in evaluation order.
func (s *SLAService) ListRules(ctx context.Context, actor domain.Actor) ([]domain.SLARule, error) {
	rules, err := s.rules.List(ctx, actor.TenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// DeleteRule soft deletes a rule.
func (s *SLAService) DeleteRule(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.rules.SoftDelete(ctx, actor.TenantID, id, actor.ID); err != nil {
		return notFound(err, "sla rule", id)
	}
	return nil
}

// ApplyToTicket selects the first matching active rule and recomputes the
// ticket's targets with clocks starting at start. Warning and breach markers
// that still hold at now are kept. The ticket is not persisted.
func (s *SLAService) ApplyToTicket(ctx context.Context, ticket *domain.Ticket, start, now time.Time) error {
	rules, err := s.rules.ListActive(ctx, ticket.TenantID)
	if err != nil {
		return apperrors.MapError(err)
	}
	rule := sla.SelectRule(rules, ticket)
	var cal *sla.Calendar
	if rule != nil && rule.BusinessHoursOnly {
		if cal, err = s.calendar(ctx, ticket.TenantID); err != nil {
			return err
		}
	}
	s.engine.Reapply(ticket, rule, cal, start, now)
	return nil
}

// TicketSLA evaluates a ticket's SLA at the current time.
func (s *SLAService) TicketSLA(ctx context.Context, actor domain.Actor, ticketID string) (*TicketSLAStatus, error) {
	ticket, err := s.tickets.GetByID(ctx, actor.TenantID, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	var cal *sla.Calendar
	if ticket.SLA.BusinessHoursOnly {
		if cal, err = s.calendar(ctx, ticket.TenantID); err != nil {
			return nil, err
		}
	}
	return &TicketSLAStatus{
		TicketID:   ticket.ID,
		SLA:        ticket.SLA,
		Evaluation: s.engine.Evaluate(ticket, cal, s.now()),
	}, nil
}

// Evaluate scans open tickets of every tenant, marks first warnings and
// breaches and publishes an event for each.
func (s *SLAService) Evaluate(ctx context.Context) (EvaluationSummary, error) {
	var (
		summary   EvaluationSummary
		afterID   string
		calendars = map[string]*sla.Calendar{}
	)
	now := s.now().UTC()
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch, err := s.tickets.ListSLAOpen(ctx, afterID, s.batchSize)
		if err != nil {
			return summary, apperrors.MapError(err)
		}
		for i := range batch {
			ticket := &batch[i]
			summary.Scanned++
			afterID = ticket.ID

			var cal *sla.Calendar
			if ticket.SLA.BusinessHoursOnly {
				cal = s.cachedCalendar(ctx, calendars, ticket.TenantID)
			}
			switch s.mark(ctx, ticket, s.engine.Evaluate(ticket, cal, now), now) {
			case events.EventSLABreached:
				summary.Breached++
			case events.EventSLAWarning:
				summary.Warned++
			}
		}
		if len(batch) < s.batchSize {
			break
		}
	}
	s.metrics.RecordSLABreaches(summary.Breached)
	s.metrics.RecordSLAWarnings(summary.Warned)
	if summary.Breached > 0 || summary.Warned > 0 {
		s.logger.Info("sla evaluation finished",
			zap.Int("scanned", summary.Scanned),
			zap.Int("warned", summary.Warned),
			zap.Int("breached", summary.Breached),
		)
	}
	return summary, nil
}

// mark records the evaluation result once per ticket and returns the published event type, if any.
func (s *SLAService) mark(ctx context.Context, ticket *domain.Ticket, eval sla.Evaluation, now time.Time) events.EventType {
	var eventType events.EventType
	switch {
	case eval.Status == domain.SLAStatusBreached && ticket.SLA.BreachedAt == nil:
		ticket.SLA.BreachedAt = &now
		ticket.SLA.FirstResponseBreach = eval.Target == sla.TargetFirstResponse
		eventType = events.EventSLABreached
	case eval.Status == domain.SLAStatusAtRisk && ticket.SLA.WarnedAt == nil:
		ticket.SLA.WarnedAt = &now
		eventType = events.EventSLAWarning
	default:
		return ""
	}
	if err := s.tickets.MarkSLA(ctx, ticket); err != nil {
		s.logger.Error("persist sla marker failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return ""
	}

	actor := domain.SystemActor(ticket.TenantID)
	newValue := map[string]any{"status": eval.Status, "target": eval.Target}
	if eval.DueAt != nil {
		newValue["due_at"] = eval.DueAt
	}
	if err := s.history.record(ctx, actor, ticket, domain.ChangeTypeSLA, nil, newValue); err != nil {
		s.logger.Warn("record sla history failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	payload := events.SLAPayload{Target: string(eval.Target)}
	if ticket.SLA.RuleID != nil {
		payload.RuleID = *ticket.SLA.RuleID
	}
	if eval.DueAt != nil {
		payload.DueAt = *eval.DueAt
	}
	publishEvent(ctx, s.dispatcher, ticketEvent(eventType, actor, ticket, payload))
	return eventType
}

func (s *SLAService) calendar(ctx context.Context, tenantID string) (*sla.Calendar, error) {
	bh, err := s.tenants.GetBusinessHours(ctx, tenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	cal, err := sla.NewCalendar(*bh)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return cal, nil
}

// cachedCalendar falls back to wall-clock time (nil) when the schedule cannot be loaded.
func (s *SLAService) cachedCalendar(ctx context.Context, cache map[string]*sla.Calendar, tenantID string) *sla.Calendar {
	if cal, ok := cache[tenantID]; ok {
		return cal
	}
	cal, err := s.calendar(ctx, tenantID)
	if err != nil {
		s.logger.Warn("load business hours failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	cache[tenantID] = cal
	return cal
}

func applyRuleInput(rule *domain.SLARule, input SLARuleInput) error {
	fields := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		fields["name"] = "is required"
	}
	if input.FirstResponseMinutes < 0 {
		fields["first_response_minutes"] = "must not be negative"
	}
	if input.ResolutionMinutes < 0 {
		fields["resolution_minutes"] = "must not be negative"
	}
	if input.FirstResponseMinutes <= 0 && input.ResolutionMinutes <= 0 {
		fields["resolution_minutes"] = "at least one target is required"
	}
	conditions, msg := parseConditions(input.Conditions)
	if msg != "" {
		fields["conditions"] = msg
	}
	if err := fieldErrors(fields); err != nil {
		return err
	}

	rule.Name = name
	rule.Description = strings.TrimSpace(input.Description)
	rule.SortOrder = input.SortOrder
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	rule.Conditions = conditions
	rule.FirstResponseMinutes = input.FirstResponseMinutes
	rule.ResolutionMinutes = input.ResolutionMinutes
	rule.BusinessHoursOnly = input.BusinessHoursOnly
	return nil
}

// parseConditions validates the raw JSON against the condition schema. An absent
// document is an empty set, which matches every ticket.
func parseConditions(raw json.RawMessage) (domain.ConditionSet, string) {
	set := domain.ConditionSet{Match: domain.MatchAll, Conditions: []domain.Condition{}}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return set, ""
	}
	msgs, err := sla.ValidateConditions(trimmed)
	if err != nil {
		return set, "must be a JSON object"
	}
	if len(msgs) > 0 {
		return set, strings.Join(msgs, "; ")
	}
	if err := json.Unmarshal(trimmed, &set); err != nil {
		return set, "must be a JSON object"
	}
	if set.Match == "" {
		set.Match = domain.MatchAll
	}
	if set.Conditions == nil {
		set.Conditions = []domain.Condition{}
	}
	return set, ""
}
