package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const tenantA = "tenant-a"

type ticketFixture struct {
	tickets    *fakeTickets
	history    *fakeHistory
	users      *fakeUsers
	contacts   *fakeContacts
	teams      *fakeTeams
	rules      *fakeRules
	dispatcher *recordingDispatcher
	sla        *SLAService
	assignment *AssignmentService
	svc        *TicketService
}

func newTicketFixture() *ticketFixture {
	f := &ticketFixture{
		tickets: newFakeTickets(),
		history: &fakeHistory{},
		users: newFakeUsers(
			domain.User{ID: "agent-1", TenantID: tenantA, Name: "Agent One", IsActive: true},
			domain.User{ID: "agent-2", TenantID: tenantA, Name: "Agent Two", IsActive: true},
			domain.User{ID: "gone", TenantID: tenantA, Name: "Former", IsActive: false},
		),
		contacts: newFakeContacts(domain.Contact{ID: "contact-1", TenantID: tenantA, FirstName: "Ada", Email: "ada@example.com"}),
		teams: newFakeTeams(
			domain.Team{ID: "team-rr", TenantID: tenantA, Name: "Support", AssignmentStrategy: domain.AssignmentRoundRobin, IsActive: true},
			domain.Team{ID: "team-manual", TenantID: tenantA, Name: "Billing", AssignmentStrategy: domain.AssignmentManual, IsActive: true},
			domain.Team{ID: "team-off", TenantID: tenantA, Name: "Legacy", AssignmentStrategy: domain.AssignmentManual, IsActive: false},
		),
		rules: &fakeRules{rules: []domain.SLARule{
			{
				ID: "rule-urgent", TenantID: tenantA, Name: "Urgent", SortOrder: 1, IsActive: true,
				Conditions: domain.ConditionSet{Match: domain.MatchAll, Conditions: []domain.Condition{
					{Field: domain.FieldPriority, Operator: domain.OpEquals, Value: "URGENT"},
				}},
				FirstResponseMinutes: 15, ResolutionMinutes: 30,
			},
			{ID: "rule-default", TenantID: tenantA, Name: "Default", SortOrder: 10, IsActive: true,
				FirstResponseMinutes: 60, ResolutionMinutes: 240},
		}},
		dispatcher: &recordingDispatcher{},
	}
	f.sla = NewSLAService(SLADependencies{
		RuleRepo:    f.rules,
		TicketRepo:  f.tickets,
		TenantRepo:  &fakeTenants{},
		HistoryRepo: f.history,
		Dispatcher:  f.dispatcher,
	})
	f.assignment = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  f.tickets,
		UserRepo:    f.users,
		TeamRepo:    f.teams,
		HistoryRepo: f.history,
		SLA:         f.sla,
		Dispatcher:  f.dispatcher,
	})
	f.assignment.now = func() time.Time { return testNow }
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:  f.tickets,
		ContactRepo: f.contacts,
		TeamRepo:    f.teams,
		UserRepo:    f.users,
		HistoryRepo: f.history,
		SLA:         f.sla,
		Assignment:  f.assignment,
		Dispatcher:  f.dispatcher,
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *ticketFixture) create(t *testing.T, input TicketCreateInput) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), userActor(tenantA, "agent-1"), input)
	require.NoError(t, err)
	return ticket
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	require.Equal(t, "VALIDATION_FAILED", de.Code)
	fields, ok := de.Details["fields"].(map[string]string)
	require.True(t, ok)
	return fields
}

func TestCreateTicket_AppliesDefaultsAndSLA(t *testing.T) {
	f := newTicketFixture()

	ticket := f.create(t, TicketCreateInput{Subject: "  Printer on fire ", Tags: []string{"Hardware", "hardware", " "}})

	assert.True(t, strings.HasPrefix(ticket.Number, "HD-"))
	assert.Len(t, ticket.Number, len("HD-")+8)
	assert.Equal(t, "Printer on fire", ticket.Subject)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.ChannelWeb, ticket.Channel)
	assert.Equal(t, []string{"hardware"}, ticket.Tags)

	require.NotNil(t, ticket.SLA.RuleID)
	assert.Equal(t, "rule-default", *ticket.SLA.RuleID)
	assert.Equal(t, testNow.Add(time.Hour), *ticket.SLA.FirstResponseDueAt)
	assert.Equal(t, testNow.Add(4*time.Hour), *ticket.SLA.ResolutionDueAt)

	assert.Equal(t, []domain.TicketChangeType{domain.ChangeTypeCreated}, f.history.changes())
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.dispatcher.types())
}

func TestCreateTicket_APIKeyDefaultsToAPIChannel(t *testing.T) {
	f := newTicketFixture()
	actor := domain.Actor{TenantID: tenantA, Type: domain.ActorTypeAPIKey, ID: strPtr("key-1")}

	ticket, err := f.svc.CreateTicket(context.Background(), actor, TicketCreateInput{Subject: "From integration"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelAPI, ticket.Channel)
}

func TestCreateTicket_ReportsEveryInvalidField(t *testing.T) {
	f := newTicketFixture()

	_, err := f.svc.CreateTicket(context.Background(), userActor(tenantA, "agent-1"), TicketCreateInput{
		Subject:  " ",
		Priority: "CRITICAL",
		Channel:  "FAX",
	})

	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "subject")
	assert.Contains(t, fields, "priority")
	assert.Contains(t, fields, "channel")
	assert.Empty(t, f.tickets.items)
}

func TestCreateTicket_RejectsUnknownReferences(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")

	_, err := f.svc.CreateTicket(context.Background(), actor, TicketCreateInput{Subject: "x", ContactID: strPtr("nope")})
	assert.Contains(t, fieldsOf(t, err), "contact_id")

	_, err = f.svc.CreateTicket(context.Background(), actor, TicketCreateInput{Subject: "x", TeamID: strPtr("team-off")})
	assert.Equal(t, "team is inactive", fieldsOf(t, err)["team_id"])

	_, err = f.svc.CreateTicket(context.Background(), actor, TicketCreateInput{Subject: "x", AssigneeID: strPtr("gone")})
	assert.Equal(t, "user is inactive", fieldsOf(t, err)["assignee_id"])
}

func TestCreateTicket_RoundRobinTeamAssignsInTurn(t *testing.T) {
	f := newTicketFixture()
	f.teams.addMember("team-rr", "agent-1", true)
	f.teams.addMember("team-rr", "agent-2", true)

	first := f.create(t, TicketCreateInput{Subject: "one", TeamID: strPtr("team-rr")})
	f.assignment.now = func() time.Time { return testNow.Add(time.Minute) }
	second := f.create(t, TicketCreateInput{Subject: "two", TeamID: strPtr("team-rr")})

	require.NotNil(t, first.AssigneeID)
	require.NotNil(t, second.AssigneeID)
	assert.Equal(t, "agent-1", *first.AssigneeID)
	assert.Equal(t, "agent-2", *second.AssigneeID)
	assert.Equal(t, "agent-2", *f.tickets.get(second.ID).AssigneeID)
	assert.Contains(t, f.dispatcher.types(), events.EventTicketAssigned)
}

func TestCreateTicket_RoundRobinWithoutCandidatesStaysUnassigned(t *testing.T) {
	f := newTicketFixture()
	f.teams.addMember("team-rr", "agent-1", false)

	ticket := f.create(t, TicketCreateInput{Subject: "nobody home", TeamID: strPtr("team-rr")})
	assert.Nil(t, ticket.AssigneeID)
}

func TestCreateTicket_ManualTeamIsNotAutoAssigned(t *testing.T) {
	f := newTicketFixture()
	f.teams.addMember("team-manual", "agent-1", true)

	ticket := f.create(t, TicketCreateInput{Subject: "invoice", TeamID: strPtr("team-manual")})
	assert.Nil(t, ticket.AssigneeID)
}

func TestGetTicket_ByNumber(t *testing.T) {
	f := newTicketFixture()
	created := f.create(t, TicketCreateInput{Subject: "lookup"})

	got, err := f.svc.GetTicket(context.Background(), userActor(tenantA, "agent-1"), created.Number)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.svc.GetTicket(context.Background(), userActor("tenant-b", "x"), created.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestChangeStatus_ResolveThenReopenRestartsSLA(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "flaky vpn"})

	resolvedAt := testNow.Add(2 * time.Hour)
	f.svc.now = func() time.Time { return resolvedAt }
	resolved, err := f.svc.ChangeStatus(context.Background(), actor, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, resolvedAt, *resolved.ResolvedAt)

	reopenedAt := testNow.Add(26 * time.Hour)
	f.svc.now = func() time.Time { return reopenedAt }
	reopened, err := f.svc.ChangeStatus(context.Background(), actor, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Nil(t, reopened.ClosedAt)
	assert.Equal(t, reopenedAt, *reopened.SLA.StartedAt)
	assert.Equal(t, reopenedAt.Add(4*time.Hour), *reopened.SLA.ResolutionDueAt)

	assert.Equal(t, []domain.TicketChangeType{
		domain.ChangeTypeCreated,
		domain.ChangeTypeStatus,
		domain.ChangeTypeStatus,
	}, f.history.changes())
}

func TestChangeStatus_ClosedTicketCanOnlyReopen(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "done"})

	closed, err := f.svc.ChangeStatus(context.Background(), actor, ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	assert.NotNil(t, closed.ClosedAt)
	assert.NotNil(t, closed.ResolvedAt)

	_, err = f.svc.ChangeStatus(context.Background(), actor, ticket.ID, domain.TicketStatusPending)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)

	_, err = f.svc.ChangeStatus(context.Background(), actor, ticket.ID, "ARCHIVED")
	assert.Contains(t, fieldsOf(t, err), "status")
}

func TestChangeStatus_SameStatusIsNoop(t *testing.T) {
	f := newTicketFixture()
	ticket := f.create(t, TicketCreateInput{Subject: "noop"})

	_, err := f.svc.ChangeStatus(context.Background(), userActor(tenantA, "agent-1"), ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Zero(t, f.tickets.updates)
}

func TestChangePriority_RecomputesFromOriginalStart(t *testing.T) {
	f := newTicketFixture()
	ticket := f.create(t, TicketCreateInput{Subject: "outage"})

	f.svc.now = func() time.Time { return testNow.Add(10 * time.Minute) }
	updated, err := f.svc.ChangePriority(context.Background(), userActor(tenantA, "agent-1"), ticket.ID, domain.TicketPriorityUrgent)
	require.NoError(t, err)

	assert.Equal(t, "rule-urgent", *updated.SLA.RuleID)
	assert.Equal(t, testNow, *updated.SLA.StartedAt)
	assert.Equal(t, testNow.Add(30*time.Minute), *updated.SLA.ResolutionDueAt)
	assert.Contains(t, f.dispatcher.types(), events.EventTicketPriorityChanged)
}

func TestRecordFirstResponse_IsIdempotent(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "hello"})

	first, err := f.svc.RecordFirstResponse(context.Background(), actor, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, first.FirstRespondedAt)

	f.svc.now = func() time.Time { return testNow.Add(time.Hour) }
	second, err := f.svc.RecordFirstResponse(context.Background(), actor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, testNow, *second.FirstRespondedAt)

	history, err := f.svc.ListHistory(context.Background(), actor, ticket.ID, repository.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpdateTicket_RecordsOnlyChangedFields(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "old", Description: "same"})

	_, err := f.svc.UpdateTicket(context.Background(), actor, ticket.ID, TicketUpdateInput{Description: strPtr("same")})
	require.NoError(t, err)
	assert.Zero(t, f.tickets.updates)

	updated, err := f.svc.UpdateTicket(context.Background(), actor, ticket.ID, TicketUpdateInput{
		Subject:   strPtr("new"),
		ContactID: strPtr("contact-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Subject)
	assert.Equal(t, "contact-1", *updated.ContactID)

	entries, err := f.svc.ListHistory(context.Background(), actor, ticket.ID, repository.HistoryFilter{})
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.ChangeTypeDetails, last.ChangeType)
	assert.Equal(t, "old", last.OldValue["subject"])
	assert.NotContains(t, last.NewValue, "description")
}

func TestDeleteTicket_HidesTicket(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "spam"})

	require.NoError(t, f.svc.DeleteTicket(context.Background(), actor, ticket.ID))
	_, err := f.svc.GetTicket(context.Background(), actor, ticket.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListHistory_FiltersByChangeType(t *testing.T) {
	f := newTicketFixture()
	actor := userActor(tenantA, "agent-1")
	ticket := f.create(t, TicketCreateInput{Subject: "filter me"})
	_, err := f.svc.UpdateTicket(context.Background(), actor, ticket.ID, TicketUpdateInput{Subject: strPtr("renamed")})
	require.NoError(t, err)

	entries, err := f.svc.ListHistory(context.Background(), actor, ticket.ID, repository.HistoryFilter{
		ChangeTypes: []domain.TicketChangeType{domain.ChangeTypeDetails},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "renamed", entries[0].NewValue["subject"])

	_, err = f.svc.ListHistory(context.Background(), actor, ticket.ID, repository.HistoryFilter{
		ChangeTypes: []domain.TicketChangeType{"BOGUS"},
	})
	assert.Contains(t, fieldsOf(t, err), "change_type")
}
