// Package service implements the helpdesk use cases on top of the repositories.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/worker"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TaskQueue accepts background work. *worker.Pool satisfies it.
type TaskQueue interface {
	Enqueue(task worker.Task) error
}

// TemplateMailer renders a tenant's version of a built-in email template and sends it.
type TemplateMailer interface {
	SendTemplate(ctx context.Context, tenantID string, tpl domain.BuiltInEmailTemplate, to string, data map[string]any) error
}

const minPasswordLength = 8

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = dispatcher.Publish(ctx, event)
}

func notFound(err error, resource, id string) error {
	return apperrors.NotFoundOr(err, resource, map[string]any{"id": id})
}

// fieldErrors returns nil when no field failed.
func fieldErrors(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return apperrors.NewFieldErrors(fields)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func validTimeZone(tz string) bool {
	if tz == "" {
		return true
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// historyWriter appends ticket audit entries.
type historyWriter struct {
	repo repository.TicketHistoryRepository
}

func (h historyWriter) record(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, change domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if h.repo == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TenantID:      ticket.TenantID,
		TicketID:      ticket.ID,
		ChangedByType: actor.Type,
		ChangedByID:   actor.ID,
		ChangeType:    change,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	return h.repo.Create(ctx, entry)
}

func ticketEvent(eventType events.EventType, actor domain.Actor, ticket *domain.Ticket, payload any) events.Event {
	return events.Event{
		Type:      eventType,
		TenantID:  ticket.TenantID,
		SubjectID: ticket.ID,
		Actor:     actor,
		Payload:   payload,
	}
}
