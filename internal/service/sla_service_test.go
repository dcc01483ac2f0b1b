package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

func TestEvaluate_WarnsThenBreachesOnce(t *testing.T) {
	f := newTicketFixture()
	f.sla.batchSize = 1
	ticket := f.create(t, TicketCreateInput{Subject: "Waiting on us"})
	require.NotNil(t, ticket.SLA.FirstResponseDueAt)
	assert.Equal(t, testNow.Add(time.Hour), *ticket.SLA.FirstResponseDueAt)

	f.tickets.add(domain.Ticket{
		ID: "ticket-9", TenantID: tenantA, Number: "HD-DONE", Status: domain.TicketStatusResolved,
		Audit: domain.Audit{CreatedAt: testNow}, SLA: ticket.SLA,
	})

	f.sla.now = func() time.Time { return testNow.Add(50 * time.Minute) }
	summary, err := f.sla.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EvaluationSummary{Scanned: 1, Warned: 1}, summary)

	summary, err = f.sla.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EvaluationSummary{Scanned: 1}, summary)

	f.sla.now = func() time.Time { return testNow.Add(61 * time.Minute) }
	summary, err = f.sla.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EvaluationSummary{Scanned: 1, Breached: 1}, summary)

	stored := f.tickets.get(ticket.ID)
	require.NotNil(t, stored.SLA.WarnedAt)
	require.NotNil(t, stored.SLA.BreachedAt)
	assert.True(t, stored.SLA.FirstResponseBreach)

	summary, err = f.sla.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Scanned)

	var slaEvents []events.Event
	for _, e := range f.dispatcher.events {
		if e.Type == events.EventSLAWarning || e.Type == events.EventSLABreached {
			slaEvents = append(slaEvents, e)
		}
	}
	require.Len(t, slaEvents, 2)
	assert.Equal(t, events.EventSLAWarning, slaEvents[0].Type)
	breach, ok := slaEvents[1].Payload.(events.SLAPayload)
	require.True(t, ok)
	assert.Equal(t, "rule-default", breach.RuleID)
	assert.Equal(t, string(sla.TargetFirstResponse), breach.Target)
	assert.Equal(t, testNow.Add(time.Hour), breach.DueAt)

	changes := f.history.changes()
	assert.Equal(t, domain.ChangeTypeSLA, changes[len(changes)-1])
	assert.Equal(t, domain.ChangeTypeSLA, changes[len(changes)-2])
}

func TestTicketSLA_ReportsWorstTarget(t *testing.T) {
	f := newTicketFixture()
	ticket := f.create(t, TicketCreateInput{Subject: "Urgent", Priority: domain.TicketPriorityUrgent})
	require.Equal(t, "rule-urgent", *ticket.SLA.RuleID)

	f.sla.now = func() time.Time { return testNow.Add(20 * time.Minute) }
	status, err := f.sla.TicketSLA(context.Background(), userActor(tenantA, "agent-1"), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusBreached, status.Evaluation.Status)
	assert.Equal(t, sla.TargetFirstResponse, status.Evaluation.Target)

	_, err = f.sla.TicketSLA(context.Background(), userActor("tenant-b", "x"), ticket.ID)
	assert.Error(t, err)
}

func TestCreateRule_Validates(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")

	_, err := f.sla.CreateRule(context.Background(), actor, SLARuleInput{
		Name:       " ",
		Conditions: json.RawMessage(`{"match":"sometimes","conditions":[]}`),
	})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "conditions")
	assert.Equal(t, "at least one target is required", fields["resolution_minutes"])

	_, err = f.sla.CreateRule(context.Background(), actor, SLARuleInput{
		Name:              "Bad",
		ResolutionMinutes: 60,
		Conditions:        json.RawMessage(`[1,2]`),
	})
	assert.Contains(t, fieldsOf(t, err), "conditions")
}

func TestChangePriority_KeepsBreachMarkers(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "Slow one"})

	later := testNow.Add(5 * time.Hour)
	f.sla.now = func() time.Time { return later }
	f.svc.now = func() time.Time { return later }
	summary, err := f.sla.Evaluate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Breached)
	breachedAt := f.tickets.get(ticket.ID).SLA.BreachedAt
	require.NotNil(t, breachedAt)

	_, err = f.svc.ChangePriority(context.Background(), actor, ticket.ID, domain.TicketPriorityHigh)
	require.NoError(t, err)
	stored := f.tickets.get(ticket.ID)
	require.NotNil(t, stored.SLA.BreachedAt)
	assert.Equal(t, *breachedAt, *stored.SLA.BreachedAt)
	assert.True(t, stored.SLA.FirstResponseBreach)

	summary, err = f.sla.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Breached)

	breaches := 0
	for _, e := range f.dispatcher.events {
		if e.Type == events.EventSLABreached {
			breaches++
		}
	}
	assert.Equal(t, 1, breaches)
}

func TestChangeStatus_ReopenRestartsClock(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "Comes back"})

	later := testNow.Add(5 * time.Hour)
	f.sla.now = func() time.Time { return later }
	f.svc.now = func() time.Time { return later }
	_, err := f.sla.Evaluate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f.tickets.get(ticket.ID).SLA.BreachedAt)

	_, err = f.svc.ChangeStatus(context.Background(), actor, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(context.Background(), actor, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)

	stored := f.tickets.get(ticket.ID)
	assert.Nil(t, stored.SLA.BreachedAt)
	assert.Nil(t, stored.SLA.WarnedAt)
	assert.Equal(t, later.Add(4*time.Hour), *stored.SLA.ResolutionDueAt)
}

func TestTicketSLA_ResolvedWithoutReplyMeetsFirstResponse(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "Fixed it myself"})

	f.svc.now = func() time.Time { return testNow.Add(10 * time.Minute) }
	_, err := f.svc.ChangeStatus(context.Background(), actor, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)

	f.sla.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	status, err := f.sla.TicketSLA(context.Background(), actor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusMet, status.Evaluation.Status)
}
