package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type parsedQuery struct {
	Page   domain.Page
	Status *string
	Active *bool
	From   *time.Time
	Tags   []string
	Err    error
}

func parseQuery(t *testing.T, rawQuery string) parsedQuery {
	t.Helper()
	var got parsedQuery
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		q := newQuery(c)
		got.Page = q.page()
		got.Status = q.optionalString("status")
		got.Active = q.optionalBool("active")
		got.From = q.optionalTime("from")
		got.Tags = q.list("tags")
		got.Err = q.err()
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/?"+rawQuery, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	return got
}

func TestQueryParams_Defaults(t *testing.T) {
	got := parseQuery(t, "")

	assert.NoError(t, got.Err)
	assert.Equal(t, domain.Page{Number: 1, Size: domain.DefaultPageSize}, got.Page)
	assert.Nil(t, got.Status)
	assert.Nil(t, got.Active)
	assert.Nil(t, got.From)
	assert.Nil(t, got.Tags)
}

func TestQueryParams_Parses(t *testing.T) {
	got := parseQuery(t, "page=3&page_size=10&status=%20OPEN%20&active=false&from=2026-03-02&tags=a,%20,b")

	require.NoError(t, got.Err)
	assert.Equal(t, domain.Page{Number: 3, Size: 10}, got.Page)
	assert.Equal(t, "OPEN", *got.Status)
	assert.False(t, *got.Active)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *got.From)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestQueryParams_RejectsPageBeyondLimit(t *testing.T) {
	got := parseQuery(t, "page=9223372036854775807&page_size=100")

	var de *apperrors.DomainError
	require.True(t, errors.As(got.Err, &de))
	fields := de.Details["fields"].(map[string]string)
	assert.Equal(t, "must be at most 100000", fields["page"])
	assert.Equal(t, domain.Page{Number: 1, Size: 100}, got.Page)

	got = parseQuery(t, "page=100000")
	require.NoError(t, got.Err)
	assert.Equal(t, domain.MaxPageNumber, got.Page.Number)
}

func TestQueryParams_CollectsEveryError(t *testing.T) {
	got := parseQuery(t, "page=0&page_size=x&active=maybe&from=yesterday")

	var de *apperrors.DomainError
	require.True(t, errors.As(got.Err, &de))
	fields := de.Details["fields"].(map[string]string)
	assert.Len(t, fields, 4)
	assert.Equal(t, "must be a positive integer", fields["page"])
	assert.Equal(t, "must be true or false", fields["active"])
	assert.Contains(t, fields, "from")
	assert.Equal(t, domain.Page{Number: 1, Size: domain.DefaultPageSize}, got.Page)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(_ context.Context) error { return p.err }

func TestHealthHandler_Ready(t *testing.T) {
	check := func(deps map[string]Pinger) (int, map[string]any) {
		h := NewHealthHandler("helpdesk", "test", deps)
		app := fiber.New()
		app.Get("/ready", h.Ready)
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ready", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	status, body := check(map[string]Pinger{"postgres": stubPinger{}, "redis": nil})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "ok"}, body["dependencies"])

	status, body = check(map[string]Pinger{"postgres": stubPinger{err: errors.New("refused")}})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body["error"].(map[string]any)["code"])
}
