package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const emailTimeLayout = "Mon, 02 Jan 2006 15:04 MST"

// NotificationService turns domain events into in-app notifications and emails,
// and manages the tenant's email template overrides.
type NotificationService struct {
	notifications repository.NotificationRepository
	templates     repository.EmailTemplateRepository
	users         repository.UserRepository
	tenants       repository.TenantRepository
	tickets       repository.TicketRepository
	teams         repository.TeamRepository
	appointments  repository.AppointmentRepository
	exports       repository.ExportJobRepository
	imports       repository.ImportJobRepository
	renderer      *notify.Renderer
	sender        notify.Sender
	dispatcher    events.Dispatcher
	publicURL     string
	logger        *zap.Logger
	now           func() time.Time
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	NotificationRepo  repository.NotificationRepository
	EmailTemplateRepo repository.EmailTemplateRepository
	UserRepo          repository.UserRepository
	TenantRepo        repository.TenantRepository
	TicketRepo        repository.TicketRepository
	TeamRepo          repository.TeamRepository
	AppointmentRepo   repository.AppointmentRepository
	ExportRepo        repository.ExportJobRepository
	ImportRepo        repository.ImportJobRepository
	Renderer          *notify.Renderer
	Sender            notify.Sender
	Dispatcher        events.Dispatcher
	PublicURL         string
	Logger            *zap.Logger
}

// EmailTemplateView is the effective template of a tenant.
type EmailTemplateView struct {
	Key        string
	Subject    string
	Body       string
	Overridden bool
	UpdatedAt  *time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = notify.NewRenderer()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		templates:     deps.EmailTemplateRepo,
		users:         deps.UserRepo,
		tenants:       deps.TenantRepo,
		tickets:       deps.TicketRepo,
		teams:         deps.TeamRepo,
		appointments:  deps.AppointmentRepo,
		exports:       deps.ExportRepo,
		imports:       deps.ImportRepo,
		renderer:      renderer,
		sender:        deps.Sender,
		dispatcher:    deps.Dispatcher,
		publicURL:     strings.TrimRight(deps.PublicURL, "/"),
		logger:        logger.Named("notifications"),
		now:           time.Now,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventSLAWarning, n.handleSLA)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLA)
	n.dispatcher.Subscribe(events.EventAppointmentBooked, n.handleAppointmentBooked)
	n.dispatcher.Subscribe(events.EventExportReady, n.handleExportReady)
	n.dispatcher.Subscribe(events.EventImportFinished, n.handleImportFinished)
}

// SendTemplate renders the tenant's version of tpl and emails it.
func (n *NotificationService) SendTemplate(ctx context.Context, tenantID string, tpl domain.BuiltInEmailTemplate, to string, data map[string]any) error {
	msg, err := n.render(ctx, tenantID, tpl, data)
	if err != nil {
		return err
	}
	return n.send(ctx, to, msg)
}

// ListMyNotifications pages through the acting user's notifications, newest first.
func (n *NotificationService) ListMyNotifications(ctx context.Context, actor domain.Actor, unreadOnly bool, page domain.Page) (domain.PagedResult[domain.Notification], error) {
	userID, err := requireUser(actor)
	if err != nil {
		return domain.PagedResult[domain.Notification]{}, err
	}
	items, total, err := n.notifications.List(ctx, actor.TenantID, userID, repository.NotificationFilter{
		UnreadOnly: unreadOnly,
		Page:       page,
	})
	if err != nil {
		return domain.PagedResult[domain.Notification]{}, apperrors.MapError(err)
	}
	return domain.NewPagedResult(items, page, total), nil
}

// UnreadCount returns the number of unread notifications of the acting user.
func (n *NotificationService) UnreadCount(ctx context.Context, actor domain.Actor) (int, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return 0, err
	}
	count, err := n.notifications.CountUnread(ctx, actor.TenantID, userID)
	return count, apperrors.MapError(err)
}

// MarkRead acknowledges one notification.
func (n *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id string) error {
	userID, err := requireUser(actor)
	if err != nil {
		return err
	}
	if err := n.notifications.MarkRead(ctx, actor.TenantID, userID, id); err != nil {
		return notFound(err, "notification", id)
	}
	return nil
}

// MarkAllRead acknowledges every unread notification and returns how many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor domain.Actor) (int64, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return 0, err
	}
	updated, err := n.notifications.MarkAllRead(ctx, actor.TenantID, userID)
	return updated, apperrors.MapError(err)
}

// ListEmailTemplates returns every built-in template with the tenant's overrides applied.
func (n *NotificationService) ListEmailTemplates(ctx context.Context, actor domain.Actor) ([]EmailTemplateView, error) {
	overrides, err := n.templates.List(ctx, actor.TenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byKey := make(map[string]domain.EmailTemplateOverride, len(overrides))
	for _, o := range overrides {
		byKey[o.Key] = o
	}
	views := make([]EmailTemplateView, 0, len(domain.BuiltInEmailTemplates()))
	for _, tpl := range domain.BuiltInEmailTemplates() {
		if o, ok := byKey[tpl.Key()]; ok {
			views = append(views, overrideView(o))
			continue
		}
		views = append(views, defaultView(tpl))
	}
	return views, nil
}

// GetEmailTemplate returns the effective template for key.
func (n *NotificationService) GetEmailTemplate(ctx context.Context, actor domain.Actor, key string) (*EmailTemplateView, error) {
	tpl, err := parseTemplateKey(key)
	if err != nil {
		return nil, err
	}
	override, err := n.templates.Get(ctx, actor.TenantID, tpl.Key())
	if err != nil {
		if apperrors.IsNotFound(err) {
			view := defaultView(tpl)
			return &view, nil
		}
		return nil, apperrors.MapError(err)
	}
	view := overrideView(*override)
	return &view, nil
}

// PutEmailTemplate stores a tenant override after checking both templates compile.
func (n *NotificationService) PutEmailTemplate(ctx context.Context, actor domain.Actor, key, subject, body string) (*EmailTemplateView, error) {
	tpl, err := parseTemplateKey(key)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if strings.TrimSpace(subject) == "" {
		fields["subject"] = "is required"
	}
	if strings.TrimSpace(body) == "" {
		fields["body"] = "is required"
	}
	if len(fields) == 0 {
		fields = n.renderer.Validate(subject, body)
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	override := &domain.EmailTemplateOverride{
		TenantID:  actor.TenantID,
		Key:       tpl.Key(),
		Subject:   subject,
		Body:      body,
		UpdatedBy: actor.ID,
	}
	if err := n.templates.Upsert(ctx, override); err != nil {
		return nil, apperrors.MapError(err)
	}
	view := overrideView(*override)
	return &view, nil
}

// DeleteEmailTemplate drops the override so the built-in template applies again.
func (n *NotificationService) DeleteEmailTemplate(ctx context.Context, actor domain.Actor, key string) error {
	tpl, err := parseTemplateKey(key)
	if err != nil {
		return err
	}
	if err := n.templates.Delete(ctx, actor.TenantID, tpl.Key()); err != nil {
		return apperrors.NotFoundOr(err, "email template override", map[string]any{"key": tpl.Key()})
	}
	return nil
}

// PreviewEmailTemplate renders subject and body, or the effective template when
// they are empty, against sample data.
func (n *NotificationService) PreviewEmailTemplate(ctx context.Context, actor domain.Actor, key, subject, body string) (notify.Message, error) {
	tpl, err := parseTemplateKey(key)
	if err != nil {
		return notify.Message{}, err
	}
	if subject == "" || body == "" {
		effective, err := n.GetEmailTemplate(ctx, actor, tpl.Key())
		if err != nil {
			return notify.Message{}, err
		}
		if subject == "" {
			subject = effective.Subject
		}
		if body == "" {
			body = effective.Body
		}
	}
	if err := fieldErrors(n.renderer.Validate(subject, body)); err != nil {
		return notify.Message{}, err
	}
	msg, err := n.renderer.Render(subject, body, n.sampleData(actor.TenantID))
	if err != nil {
		return notify.Message{}, apperrors.NewFieldErrors(map[string]string{"body": err.Error()})
	}
	return msg, nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || payload.AssigneeID == nil {
		return nil
	}
	// Self assignment needs no notice.
	if event.Actor.ID != nil && *event.Actor.ID == *payload.AssigneeID {
		return nil
	}
	ticket, err := n.tickets.GetByID(ctx, event.TenantID, event.SubjectID)
	if err != nil {
		return err
	}
	user, err := n.users.GetByID(ctx, event.TenantID, *payload.AssigneeID)
	if err != nil {
		return err
	}
	return n.deliver(ctx, user, domain.NotificationTicketAssigned, domain.EmailTicketAssigned,
		n.link("/tickets/"+ticket.Number),
		map[string]any{"ticket": ticket},
	)
}

func (n *NotificationService) handleSLA(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAPayload)
	if !ok {
		return nil
	}
	ticket, err := n.tickets.GetByID(ctx, event.TenantID, event.SubjectID)
	if err != nil {
		return err
	}
	tenant, err := n.tenants.GetByID(ctx, event.TenantID)
	if err != nil {
		return err
	}
	recipients, err := n.ticketWatchers(ctx, ticket)
	if err != nil {
		return err
	}

	notificationType, tpl := domain.NotificationSLAWarning, domain.EmailSLAWarning
	if event.Type == events.EventSLABreached {
		notificationType, tpl = domain.NotificationSLABreached, domain.EmailSLABreached
	}
	data := map[string]any{
		"ticket": ticket,
		"target": payload.Target,
		"due_at": payload.DueAt.In(tenant.Location()).Format(emailTimeLayout),
		"due_in": notify.Relative(payload.DueAt, n.now()),
	}
	link := n.link("/tickets/" + ticket.Number)
	for i := range recipients {
		if err := n.deliver(ctx, &recipients[i], notificationType, tpl, link, data); err != nil {
			return err
		}
	}
	return nil
}

func (n *NotificationService) handleAppointmentBooked(ctx context.Context, event events.Event) error {
	appt, err := n.appointments.GetByID(ctx, event.TenantID, event.SubjectID)
	if err != nil {
		return err
	}
	staff, err := n.users.GetByID(ctx, event.TenantID, appt.StaffUserID)
	if err != nil {
		return err
	}
	loc := staff.Location()
	return n.deliver(ctx, staff, domain.NotificationAppointmentBooked, domain.EmailAppointmentBooked,
		n.link("/appointments/"+appt.ID),
		map[string]any{
			"appointment": appt,
			"starts_at":   appt.StartsAt.In(loc).Format(emailTimeLayout),
			"ends_at":     appt.EndsAt.In(loc).Format(emailTimeLayout),
		},
	)
}

func (n *NotificationService) handleExportReady(ctx context.Context, event events.Event) error {
	job, err := n.exports.GetByID(ctx, event.TenantID, event.SubjectID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil
	}
	requester, err := n.users.GetByID(ctx, event.TenantID, job.RequestedBy)
	if err != nil {
		return err
	}
	expiresAt := ""
	if job.ExpiresAt != nil {
		expiresAt = job.ExpiresAt.In(requester.Location()).Format(emailTimeLayout)
	}
	return n.deliver(ctx, requester, domain.NotificationExportReady, domain.EmailExportReady,
		n.link("/api/v1/exports/"+job.ID+"/download"),
		map[string]any{"job": job, "expires_at": expiresAt},
	)
}

func (n *NotificationService) handleImportFinished(ctx context.Context, event events.Event) error {
	job, err := n.imports.GetByID(ctx, event.TenantID, event.SubjectID)
	if err != nil {
		return err
	}
	requester, err := n.users.GetByID(ctx, event.TenantID, job.RequestedBy)
	if err != nil {
		return err
	}
	return n.deliver(ctx, requester, domain.NotificationImportFinished, domain.EmailImportFinished,
		n.link("/imports/"+job.ID),
		map[string]any{"job": job},
	)
}

// ticketWatchers returns the assignee, or the active members of the ticket's team.
func (n *NotificationService) ticketWatchers(ctx context.Context, ticket *domain.Ticket) ([]domain.User, error) {
	if ticket.AssigneeID != nil {
		user, err := n.users.GetByID(ctx, ticket.TenantID, *ticket.AssigneeID)
		if err != nil {
			return nil, err
		}
		if !user.IsActive {
			return nil, nil
		}
		return []domain.User{*user}, nil
	}
	if ticket.TeamID == nil {
		return nil, nil
	}
	members, err := n.teams.ListMembers(ctx, ticket.TenantID, *ticket.TeamID)
	if err != nil {
		return nil, err
	}
	var users []domain.User
	for _, m := range members {
		if !m.IsActive || !m.UserActive {
			continue
		}
		user, err := n.users.GetByID(ctx, ticket.TenantID, m.UserID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

// deliver stores an in-app notification built from the rendered template and
// emails the same message. Email failures are logged, not returned.
func (n *NotificationService) deliver(ctx context.Context, recipient *domain.User, kind domain.NotificationType, tpl domain.BuiltInEmailTemplate, link string, data map[string]any) error {
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["recipient"] = recipient

	msg, err := n.render(ctx, recipient.TenantID, tpl, payload)
	if err != nil {
		return err
	}
	notification := &domain.Notification{
		TenantID: recipient.TenantID,
		UserID:   recipient.ID,
		Type:     kind,
		Title:    msg.Subject,
		Body:     msg.Text,
		Link:     link,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return err
	}
	if err := n.send(ctx, recipient.Email, msg); err != nil {
		n.logger.Warn("email delivery failed",
			zap.String("tenant_id", recipient.TenantID),
			zap.String("user_id", recipient.ID),
			zap.String("template", tpl.Key()),
			zap.Error(err),
		)
	}
	return nil
}

// render falls back to the built-in template when the tenant has no override.
func (n *NotificationService) render(ctx context.Context, tenantID string, tpl domain.BuiltInEmailTemplate, data map[string]any) (notify.Message, error) {
	subject, body := tpl.DefaultSubject(), tpl.DefaultBody()
	if n.templates != nil {
		override, err := n.templates.Get(ctx, tenantID, tpl.Key())
		switch {
		case err == nil:
			subject, body = override.Subject, override.Body
		case !apperrors.IsNotFound(err):
			return notify.Message{}, err
		}
	}
	return n.renderer.Render(subject, body, data)
}

func (n *NotificationService) send(ctx context.Context, to string, msg notify.Message) error {
	if n.sender == nil || to == "" {
		return nil
	}
	return n.sender.Send(ctx, notify.Email{To: to, Message: msg})
}

func (n *NotificationService) link(path string) string {
	if n.publicURL == "" {
		return path
	}
	return n.publicURL + path
}

func (n *NotificationService) sampleData(tenantID string) map[string]any {
	now := n.now().UTC()
	due := now.Add(2 * time.Hour)
	ends := due.Add(30 * time.Minute)
	return map[string]any{
		"recipient": domain.User{TenantID: tenantID, Name: "Jane Doe", Email: "jane@example.com"},
		"tenant":    domain.Tenant{ID: tenantID, Name: "Acme Support"},
		"ticket": domain.Ticket{
			TenantID: tenantID,
			Number:   "HD-1A2B3C4D",
			Subject:  "Printer is on fire",
			Status:   domain.TicketStatusOpen,
			Priority: domain.TicketPriorityHigh,
			Channel:  domain.ChannelEmail,
		},
		"appointment": domain.Appointment{Title: "Onboarding call", StartsAt: due, EndsAt: ends},
		"job": domain.ImportJob{
			EntityType:    domain.EntityContacts,
			FileName:      "contacts.csv",
			ProcessedRows: 120,
			SucceededRows: 118,
			FailedRows:    2,
		},
		"target":     "resolution",
		"due_at":     due.Format(emailTimeLayout),
		"due_in":     notify.Relative(due, now),
		"starts_at":  due.Format(emailTimeLayout),
		"ends_at":    ends.Format(emailTimeLayout),
		"expires_at": due.Format(emailTimeLayout),
		"reset_url":  n.link("/reset-password?token=sample"),
	}
}

func parseTemplateKey(key string) (domain.BuiltInEmailTemplate, error) {
	tpl, err := domain.ParseBuiltInEmailTemplate(key)
	if err != nil {
		return domain.BuiltInEmailTemplate{}, apperrors.NewNotFound("email template", map[string]any{"key": key})
	}
	return tpl, nil
}

func defaultView(tpl domain.BuiltInEmailTemplate) EmailTemplateView {
	return EmailTemplateView{Key: tpl.Key(), Subject: tpl.DefaultSubject(), Body: tpl.DefaultBody()}
}

func overrideView(o domain.EmailTemplateOverride) EmailTemplateView {
	view := EmailTemplateView{Key: o.Key, Subject: o.Subject, Body: o.Body, Overridden: true}
	if !o.UpdatedAt.IsZero() {
		updated := o.UpdatedAt
		view.UpdatedAt = &updated
	}
	return view
}

// requireUser rejects callers that do not act as a user, such as background jobs.
func requireUser(actor domain.Actor) (string, error) {
	if actor.UserID() == "" {
		return "", apperrors.NewForbidden("a user principal is required")
	}
	return actor.UserID(), nil
}
