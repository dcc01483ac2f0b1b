package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DefaultWarningRatio is the elapsed share of a target at which a ticket becomes at risk.
const DefaultWarningRatio = 0.75

// Target identifies which SLA clock an evaluation refers to.
type Target string

const (
	TargetNone          Target = ""
	TargetFirstResponse Target = "first_response"
	TargetResolution    Target = "resolution"
)

// Evaluation is the SLA state of a ticket at a point in time.
type Evaluation struct {
	Status      domain.SLAStatus
	Target      Target
	DueAt       *time.Time
	Remaining   time.Duration
	PercentUsed float64
}

// Engine applies rules to tickets and evaluates their status.
type Engine struct {
	WarningRatio float64
}

// NewEngine builds an engine; a non-positive ratio selects DefaultWarningRatio.
func NewEngine(warningRatio float64) *Engine {
	if warningRatio <= 0 || warningRatio >= 1 {
		warningRatio = DefaultWarningRatio
	}
	return &Engine{WarningRatio: warningRatio}
}

// Apply computes the SLA targets for ticket from rule, starting the clocks at start.
// A nil rule clears the SLA.
func (e *Engine) Apply(ticket *domain.Ticket, rule *domain.SLARule, cal *Calendar, start time.Time) {
	if rule == nil {
		ticket.SLA = domain.TicketSLA{}
		return
	}
	add := func(minutes int) *time.Time {
		if minutes <= 0 {
			return nil
		}
		var due time.Time
		if rule.BusinessHoursOnly && cal != nil {
			due = cal.AddBusinessMinutes(start, minutes)
		} else {
			due = start.Add(time.Duration(minutes) * time.Minute)
		}
		due = due.UTC()
		return &due
	}
	ruleID := rule.ID
	started := start.UTC()
	ticket.SLA = domain.TicketSLA{
		RuleID:            &ruleID,
		StartedAt:         &started,
		BusinessHoursOnly: rule.BusinessHoursOnly,
		ResolutionDueAt:   add(rule.ResolutionMinutes),
	}
	if ticket.FirstRespondedAt == nil {
		ticket.SLA.FirstResponseDueAt = add(rule.FirstResponseMinutes)
	}
}

// Reapply recomputes the targets like Apply and keeps the warning and breach
// markers that still hold for the new targets at now. A marker is dropped only
// when the recomputed target is no longer at risk or breached.
func (e *Engine) Reapply(ticket *domain.Ticket, rule *domain.SLARule, cal *Calendar, start, now time.Time) {
	prev := ticket.SLA
	e.Apply(ticket, rule, cal, start)
	if ticket.SLA.RuleID == nil {
		return
	}
	switch e.Evaluate(ticket, cal, now).Status {
	case domain.SLAStatusBreached:
		ticket.SLA.WarnedAt = prev.WarnedAt
		ticket.SLA.BreachedAt = prev.BreachedAt
		ticket.SLA.FirstResponseBreach = prev.FirstResponseBreach
	case domain.SLAStatusAtRisk:
		ticket.SLA.WarnedAt = prev.WarnedAt
	}
}

// Evaluate returns the worst status across the ticket's pending SLA targets at now.
func (e *Engine) Evaluate(ticket *domain.Ticket, cal *Calendar, now time.Time) Evaluation {
	s := ticket.SLA
	if s.RuleID == nil || (s.FirstResponseDueAt == nil && s.ResolutionDueAt == nil) {
		return Evaluation{Status: domain.SLAStatusNone}
	}
	span := func(from, to time.Time) time.Duration {
		if s.BusinessHoursOnly && cal != nil {
			return cal.BusinessDuration(from, to)
		}
		if !to.After(from) {
			return 0
		}
		return to.Sub(from)
	}
	start := ticket.CreatedAt
	if s.StartedAt != nil {
		start = *s.StartedAt
	}

	var evals []Evaluation
	if s.FirstResponseDueAt != nil {
		evals = append(evals, e.evaluateTarget(TargetFirstResponse, start, *s.FirstResponseDueAt, respondedAt(ticket), now, span))
	}
	if s.ResolutionDueAt != nil {
		evals = append(evals, e.evaluateTarget(TargetResolution, start, *s.ResolutionDueAt, completedAt(ticket), now, span))
	}
	worst := evals[0]
	for _, ev := range evals[1:] {
		if rank(ev.Status) > rank(worst.Status) {
			worst = ev
		}
	}
	return worst
}

func (e *Engine) evaluateTarget(target Target, start, due time.Time, done *time.Time, now time.Time, span func(time.Time, time.Time) time.Duration) Evaluation {
	dueAt := due
	ev := Evaluation{Target: target, DueAt: &dueAt}
	if done != nil {
		if done.After(due) {
			ev.Status = domain.SLAStatusBreached
		} else {
			ev.Status = domain.SLAStatusMet
		}
		ev.PercentUsed = percent(span(start, *done), span(start, due))
		return ev
	}
	if now.After(due) {
		ev.Status = domain.SLAStatusBreached
		ev.Remaining = -span(due, now)
		ev.PercentUsed = 100
		return ev
	}
	ev.Remaining = span(now, due)
	ev.PercentUsed = percent(span(start, now), span(start, due))
	if ev.PercentUsed >= e.WarningRatio*100 {
		ev.Status = domain.SLAStatusAtRisk
	} else {
		ev.Status = domain.SLAStatusOnTrack
	}
	return ev
}

// respondedAt stops the first-response clock. A ticket resolved or closed
// without a recorded response counts as answered at completion.
func respondedAt(ticket *domain.Ticket) *time.Time {
	if ticket.FirstRespondedAt != nil {
		return ticket.FirstRespondedAt
	}
	return completedAt(ticket)
}

func completedAt(ticket *domain.Ticket) *time.Time {
	if !ticket.Status.IsTerminal() {
		return nil
	}
	if ticket.ResolvedAt != nil {
		return ticket.ResolvedAt
	}
	return ticket.ClosedAt
}

func percent(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 100
	}
	p := float64(elapsed) / float64(total) * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

func rank(s domain.SLAStatus) int {
	switch s {
	case domain.SLAStatusBreached:
		return 4
	case domain.SLAStatusAtRisk:
		return 3
	case domain.SLAStatusOnTrack:
		return 2
	case domain.SLAStatusMet:
		return 1
	}
	return 0
}
