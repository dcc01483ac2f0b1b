package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	p := Page{Number: 0, Size: 500}.Normalize()
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, MaxPageSize, p.Size)

	assert.Equal(t, 40, Page{Number: 3, Size: 20}.Offset())
	assert.Equal(t, DefaultPageSize, Page{}.Limit())
	assert.Equal(t, MaxPageNumber, Page{Number: MaxPageNumber + 1}.Normalize().Number)
}

func TestNewPagedResult_NilItems(t *testing.T) {
	res := NewPagedResult[int](nil, Page{Number: 2, Size: 10}, 15)
	assert.NotNil(t, res.Items)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 15, res.Total)
}

func TestAPIKey_Usable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, APIKey{}.Usable(now))
	assert.True(t, APIKey{ExpiresAt: &future}.Usable(now))
	assert.False(t, APIKey{ExpiresAt: &past}.Usable(now))
	assert.False(t, APIKey{RevokedAt: &past}.Usable(now))
}

func TestTeamMembership_Eligible(t *testing.T) {
	assert.True(t, TeamMembership{IsAssignable: true, IsActive: true, UserActive: true}.Eligible())
	assert.False(t, TeamMembership{IsAssignable: false, IsActive: true, UserActive: true}.Eligible())
	assert.False(t, TeamMembership{IsAssignable: true, IsActive: true, UserActive: false}.Eligible())
}

func TestDefaultBusinessHours(t *testing.T) {
	bh := DefaultBusinessHours("t1")
	assert.False(t, bh.Days[time.Sunday].Open)
	assert.True(t, bh.Days[time.Wednesday].Open)
	assert.Equal(t, time.UTC, bh.Location())
}

func TestTicketStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to TicketStatus
		ok       bool
	}{
		{TicketStatusOpen, TicketStatusInProgress, true},
		{TicketStatusOpen, TicketStatusOpen, false},
		{TicketStatusPending, TicketStatusResolved, true},
		{TicketStatusResolved, TicketStatusOpen, true},
		{TicketStatusClosed, TicketStatusOpen, true},
		{TicketStatusClosed, TicketStatusInProgress, false},
		{TicketStatusClosed, TicketStatusResolved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, TicketStatusClosed.IsReopen(TicketStatusOpen))
	assert.False(t, TicketStatusOpen.IsReopen(TicketStatusPending))
}

func TestActor_UserID(t *testing.T) {
	id := "u1"
	assert.Equal(t, "u1", Actor{ID: &id}.UserID())
	assert.Equal(t, "", SystemActor("t").UserID())
	assert.Equal(t, ActorTypeSystem, SystemActor("t").Type)
}
