package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type fakeNotifications struct {
	repository.NotificationRepository
	mu    sync.Mutex
	items []domain.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotifications) forUser(userID string) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fakeTemplates struct {
	repository.EmailTemplateRepository
	items map[string]domain.EmailTemplateOverride
}

func (f *fakeTemplates) Get(_ context.Context, tenantID, key string) (*domain.EmailTemplateOverride, error) {
	o, ok := f.items[tenantID+"/"+key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &o, nil
}

func (f *fakeTemplates) List(_ context.Context, tenantID string) ([]domain.EmailTemplateOverride, error) {
	var out []domain.EmailTemplateOverride
	for _, o := range f.items {
		if o.TenantID == tenantID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeTemplates) Upsert(_ context.Context, o *domain.EmailTemplateOverride) error {
	o.UpdatedAt = testNow
	f.items[o.TenantID+"/"+o.Key] = *o
	return nil
}

func (f *fakeTemplates) Delete(_ context.Context, tenantID, key string) error {
	if _, ok := f.items[tenantID+"/"+key]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.items, tenantID+"/"+key)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (s *fakeSender) Send(_ context.Context, email notify.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, email)
	return s.err
}

type notificationFixture struct {
	*ticketFixture
	notifications *fakeNotifications
	templates     *fakeTemplates
	sender        *fakeSender
	service       *NotificationService
}

func newNotificationFixture() *notificationFixture {
	tf := newTicketFixture()
	tf.users.items["agent-1"].Email = "one@example.com"
	tf.users.items["agent-2"].Email = "two@example.com"

	f := &notificationFixture{
		ticketFixture: tf,
		notifications: &fakeNotifications{},
		templates:     &fakeTemplates{items: map[string]domain.EmailTemplateOverride{}},
		sender:        &fakeSender{},
	}
	f.service = NewNotificationService(NotificationDependencies{
		NotificationRepo:  f.notifications,
		EmailTemplateRepo: f.templates,
		UserRepo:          tf.users,
		TenantRepo: &fakeTenants{tenants: map[string]*domain.Tenant{
			tenantA: {ID: tenantA, Name: "Acme", TimeZone: "UTC"},
		}},
		TicketRepo: tf.tickets,
		TeamRepo:   tf.teams,
		Sender:     f.sender,
		Dispatcher: tf.dispatcher,
		PublicURL:  "https://help.example.com/",
	})
	f.service.now = func() time.Time { return testNow }
	f.service.RegisterHandlers()
	return f
}

func TestTicketAssigned_NotifiesAssignee(t *testing.T) {
	f := newNotificationFixture()

	ticket := f.create(t, TicketCreateInput{Subject: "Broken laptop", AssigneeID: strPtr("agent-2")})

	got := f.notifications.forUser("agent-2")
	require.Len(t, got, 1)
	assert.Equal(t, domain.NotificationTicketAssigned, got[0].Type)
	assert.Equal(t, "["+ticket.Number+"] assigned to you", got[0].Title)
	assert.Contains(t, got[0].Body, "Broken laptop")
	assert.Equal(t, "https://help.example.com/tickets/"+ticket.Number, got[0].Link)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "two@example.com", f.sender.sent[0].To)
	assert.Contains(t, f.sender.sent[0].Message.HTML, "<strong>"+ticket.Number+"</strong>")
}

func TestTicketAssigned_SkipsSelfAssignment(t *testing.T) {
	f := newNotificationFixture()

	f.create(t, TicketCreateInput{Subject: "Mine", AssigneeID: strPtr("agent-1")})

	assert.Empty(t, f.notifications.items)
	assert.Empty(t, f.sender.sent)
}

func TestTicketAssigned_UsesTenantOverride(t *testing.T) {
	f := newNotificationFixture()
	_, err := f.service.PutEmailTemplate(context.Background(), userActor(tenantA, "agent-1"), "ticket_assigned",
		"Heads up: {{ ticket.Number }}", "{{ recipient.Name }}, please look at {{ ticket.Subject }}")
	require.NoError(t, err)

	ticket := f.create(t, TicketCreateInput{Subject: "Override me", AssigneeID: strPtr("agent-2")})

	got := f.notifications.forUser("agent-2")
	require.Len(t, got, 1)
	assert.Equal(t, "Heads up: "+ticket.Number, got[0].Title)
	assert.Equal(t, "Agent Two, please look at Override me", got[0].Body)
}

func TestEmailFailureStillStoresNotification(t *testing.T) {
	f := newNotificationFixture()
	f.sender.err = errors.New("smtp down")

	f.create(t, TicketCreateInput{Subject: "Mail is down", AssigneeID: strPtr("agent-2")})

	assert.Len(t, f.notifications.forUser("agent-2"), 1)
}

func TestSLABreach_NotifiesActiveTeamMembers(t *testing.T) {
	f := newNotificationFixture()
	f.teams.addMember("team-manual", "agent-1", true)
	f.teams.addMember("team-manual", "agent-2", false)
	f.teams.members["team-manual"] = append(f.teams.members["team-manual"], domain.TeamMembership{
		TeamID: "team-manual", UserID: "gone", UserActive: false, IsActive: true,
	})
	ticket := f.create(t, TicketCreateInput{Subject: "Slow", TeamID: strPtr("team-manual")})

	due := testNow.Add(-time.Hour)
	require.NoError(t, f.dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventSLABreached,
		TenantID:  tenantA,
		SubjectID: ticket.ID,
		Actor:     domain.SystemActor(tenantA),
		Payload:   events.SLAPayload{RuleID: "rule-default", Target: "resolution", DueAt: due},
	}))

	for _, user := range []string{"agent-1", "agent-2"} {
		got := f.notifications.forUser(user)
		require.Len(t, got, 1, user)
		assert.Equal(t, domain.NotificationSLABreached, got[0].Type)
		assert.Equal(t, "["+ticket.Number+"] SLA breached", got[0].Title)
	}
	assert.Empty(t, f.notifications.forUser("gone"))
}

func TestEmailTemplates_OverrideLifecycle(t *testing.T) {
	f := newNotificationFixture()
	actor := userActor(tenantA, "agent-1")

	_, err := f.service.GetEmailTemplate(context.Background(), actor, "nope")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.service.PutEmailTemplate(context.Background(), actor, "sla_warning", "ok", "{% if %}")
	assert.Contains(t, fieldsOf(t, err), "body")

	_, err = f.service.PutEmailTemplate(context.Background(), actor, "SLA_Warning", "Custom", "Body")
	require.NoError(t, err)

	views, err := f.service.ListEmailTemplates(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, views, len(domain.BuiltInEmailTemplates()))
	for _, v := range views {
		assert.Equal(t, v.Key == "sla_warning", v.Overridden, v.Key)
	}

	require.NoError(t, f.service.DeleteEmailTemplate(context.Background(), actor, "sla_warning"))
	view, err := f.service.GetEmailTemplate(context.Background(), actor, "sla_warning")
	require.NoError(t, err)
	assert.False(t, view.Overridden)
	assert.Equal(t, domain.EmailSLAWarning.DefaultSubject(), view.Subject)

	err = f.service.DeleteEmailTemplate(context.Background(), actor, "sla_warning")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPreviewEmailTemplate_RendersSampleData(t *testing.T) {
	f := newNotificationFixture()
	actor := userActor(tenantA, "agent-1")

	msg, err := f.service.PreviewEmailTemplate(context.Background(), actor, "ticket_assigned", "", "")
	require.NoError(t, err)
	assert.Equal(t, "[HD-1A2B3C4D] assigned to you", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Jane Doe")

	msg, err = f.service.PreviewEmailTemplate(context.Background(), actor, "password_reset", "Reset for {{ recipient.Email }}", "")
	require.NoError(t, err)
	assert.Equal(t, "Reset for jane@example.com", msg.Subject)
	assert.Contains(t, msg.HTML, `href="https://help.example.com/reset-password?token=sample"`)
}

func TestNotificationInbox_RequiresUser(t *testing.T) {
	f := newNotificationFixture()

	_, err := f.service.UnreadCount(context.Background(), domain.SystemActor(tenantA))
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}
