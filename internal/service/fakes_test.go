package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func userActor(tenantID, userID string) domain.Actor {
	return domain.Actor{TenantID: tenantID, Type: domain.ActorTypeUser, ID: strPtr(userID)}
}

type fakeTickets struct {
	repository.TicketRepository
	mu      sync.Mutex
	seq     int
	items   map[string]*domain.Ticket
	updates int
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{items: map[string]*domain.Ticket{}}
}

func (f *fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t.ID = fmt.Sprintf("ticket-%d", f.seq)
	t.CreatedAt = testNow
	t.UpdatedAt = testNow
	cp := *t
	f.items[t.ID] = &cp
	return nil
}

func (f *fakeTickets) Update(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.updates++
	cp := *t
	f.items[t.ID] = &cp
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, tenantID, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[id]
	if !ok || t.TenantID != tenantID || t.IsDeleted() {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) GetByNumber(_ context.Context, tenantID, number string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.items {
		if t.TenantID == tenantID && t.Number == number && !t.IsDeleted() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTickets) SoftDelete(_ context.Context, tenantID, id string, actorID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[id]
	if !ok || t.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	now := testNow
	t.DeletedAt = &now
	t.DeletedBy = actorID
	return nil
}

func (f *fakeTickets) ListSLAOpen(_ context.Context, afterID string, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.items {
		if t.ID <= afterID || t.IsDeleted() || t.Status.IsTerminal() {
			continue
		}
		if t.SLA.RuleID == nil || t.SLA.BreachedAt != nil {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTickets) MarkSLA(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.items[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.SLA.WarnedAt = t.SLA.WarnedAt
	stored.SLA.BreachedAt = t.SLA.BreachedAt
	stored.SLA.FirstResponseBreach = t.SLA.FirstResponseBreach
	return nil
}

func (f *fakeTickets) add(t domain.Ticket) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := t
	f.items[t.ID] = &cp
	return &cp
}

func (f *fakeTickets) get(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.items[id]
}

type fakeHistory struct {
	repository.TicketHistoryRepository
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (f *fakeHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = fmt.Sprintf("history-%d", len(f.entries)+1)
	h.CreatedAt = testNow
	f.entries = append(f.entries, *h)
	return nil
}

func (f *fakeHistory) ListByTicket(_ context.Context, tenantID, ticketID string, filter repository.HistoryFilter) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range f.entries {
		if h.TenantID != tenantID || h.TicketID != ticketID {
			continue
		}
		if len(filter.ChangeTypes) > 0 && !slices.Contains(filter.ChangeTypes, h.ChangeType) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (f *fakeHistory) changes() []domain.TicketChangeType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TicketChangeType, 0, len(f.entries))
	for _, h := range f.entries {
		out = append(out, h.ChangeType)
	}
	return out
}

type fakeUsers struct {
	repository.UserRepository
	items map[string]*domain.User
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{items: map[string]*domain.User{}}
	for i := range users {
		u := users[i]
		f.items[u.ID] = &u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, tenantID, id string) (*domain.User, error) {
	u, ok := f.items[id]
	if !ok || u.TenantID != tenantID || u.IsDeleted() {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, tenantID, email string) (*domain.User, error) {
	for _, u := range f.items {
		if u.TenantID == tenantID && u.Email == email && !u.IsDeleted() {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeContacts struct {
	repository.ContactRepository
	items map[string]*domain.Contact
}

func newFakeContacts(contacts ...domain.Contact) *fakeContacts {
	f := &fakeContacts{items: map[string]*domain.Contact{}}
	for i := range contacts {
		c := contacts[i]
		f.items[c.ID] = &c
	}
	return f
}

func (f *fakeContacts) Create(_ context.Context, c *domain.Contact) error {
	c.ID = fmt.Sprintf("contact-%d", len(f.items)+1)
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeContacts) GetByID(_ context.Context, tenantID, id string) (*domain.Contact, error) {
	c, ok := f.items[id]
	if !ok || c.TenantID != tenantID || c.IsDeleted() {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContacts) GetByEmail(_ context.Context, tenantID, email string) (*domain.Contact, error) {
	for _, c := range f.items {
		if c.TenantID == tenantID && c.Email == email && !c.IsDeleted() {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeContacts) List(_ context.Context, tenantID string, filter repository.ContactFilter) ([]domain.Contact, int, error) {
	var all []domain.Contact
	for _, c := range f.items {
		if c.TenantID == tenantID && !c.IsDeleted() {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	start := filter.Page.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Page.Limit()
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

type fakeTeams struct {
	repository.TeamRepository
	mu      sync.Mutex
	teams   map[string]*domain.Team
	members map[string][]domain.TeamMembership
}

func newFakeTeams(teams ...domain.Team) *fakeTeams {
	f := &fakeTeams{teams: map[string]*domain.Team{}, members: map[string][]domain.TeamMembership{}}
	for i := range teams {
		t := teams[i]
		f.teams[t.ID] = &t
	}
	return f
}

func (f *fakeTeams) GetByID(_ context.Context, tenantID, id string) (*domain.Team, error) {
	t, ok := f.teams[id]
	if !ok || t.TenantID != tenantID || t.IsDeleted() {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTeams) addMember(teamID, userID string, assignable bool) {
	f.members[teamID] = append(f.members[teamID], domain.TeamMembership{
		TeamID:       teamID,
		UserID:       userID,
		UserActive:   true,
		IsAssignable: assignable,
		IsActive:     true,
	})
}

func (f *fakeTeams) AssignRoundRobin(_ context.Context, _, teamID string, now time.Time) (*domain.TeamMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, ok := domain.NextRoundRobin(f.members[teamID])
	if !ok {
		return nil, repository.ErrNoAssignableMember
	}
	for i := range f.members[teamID] {
		if f.members[teamID][i].UserID == next.UserID {
			at := now
			f.members[teamID][i].LastAssignedAt = &at
			next = f.members[teamID][i]
		}
	}
	return &next, nil
}

func (f *fakeTeams) ListMembers(_ context.Context, _, teamID string) ([]domain.TeamMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TeamMembership(nil), f.members[teamID]...), nil
}

type fakeRules struct {
	repository.SLARuleRepository
	rules []domain.SLARule
}

func (f *fakeRules) ListActive(_ context.Context, tenantID string) ([]domain.SLARule, error) {
	var out []domain.SLARule
	for _, r := range f.rules {
		if r.TenantID == tenantID && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeTenants struct {
	repository.TenantRepository
	tenants map[string]*domain.Tenant
	hours   map[string]*domain.BusinessHours
}

func (f *fakeTenants) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenants) GetBusinessHours(_ context.Context, tenantID string) (*domain.BusinessHours, error) {
	bh, ok := f.hours[tenantID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *bh
	return &cp, nil
}

// recordingDispatcher keeps published events and delivers them synchronously.
type recordingDispatcher struct {
	mu       sync.Mutex
	events   []events.Event
	handlers map[events.EventType][]events.EventHandler
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	handlers := append([]events.EventHandler{}, d.handlers[event.Type]...)
	d.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, event)
	}
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[events.EventType][]events.EventHandler{}
	}
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}
