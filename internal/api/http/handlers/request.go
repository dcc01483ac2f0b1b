package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/api/validation"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// actor returns the authenticated caller. Only valid behind AuthMiddleware.Handle.
func actor(c *fiber.Ctx) domain.Actor {
	principal := auth.MustPrincipal(c)
	if principal == nil {
		return domain.Actor{}
	}
	return principal.Actor()
}

// bind decodes the body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return validation.Struct(req)
}

// queryParams collects typed query values and reports every malformed one at once.
type queryParams struct {
	c      *fiber.Ctx
	fields map[string]string
}

func newQuery(c *fiber.Ctx) *queryParams {
	return &queryParams{c: c, fields: map[string]string{}}
}

func (q *queryParams) page() domain.Page {
	number := q.positiveInt("page", 1)
	if number > domain.MaxPageNumber {
		q.fields["page"] = fmt.Sprintf("must be at most %d", domain.MaxPageNumber)
		number = 1
	}
	return domain.Page{
		Number: number,
		Size:   q.positiveInt("page_size", domain.DefaultPageSize),
	}
}

func (q *queryParams) positiveInt(key string, def int) int {
	val := q.c.Query(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		q.fields[key] = "must be a positive integer"
		return def
	}
	return parsed
}

func (q *queryParams) optionalString(key string) *string {
	val := strings.TrimSpace(q.c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}

func (q *queryParams) optionalBool(key string) *bool {
	val := q.c.Query(key)
	if val == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		q.fields[key] = "must be true or false"
		return nil
	}
	return &parsed
}

// optionalTime accepts RFC 3339 timestamps or YYYY-MM-DD dates (UTC midnight).
func (q *queryParams) optionalTime(key string) *time.Time {
	val := q.c.Query(key)
	if val == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return &t
	}
	if t, err := time.Parse(dateLayout, val); err == nil {
		return &t
	}
	q.fields[key] = "must be an RFC 3339 timestamp or YYYY-MM-DD date"
	return nil
}

func (q *queryParams) date(key string) time.Time {
	val := q.c.Query(key)
	if val == "" {
		q.fields[key] = "is required"
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		q.fields[key] = "must be a YYYY-MM-DD date"
	}
	return t
}

func (q *queryParams) list(key string) []string {
	val := q.c.Query(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (q *queryParams) err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return apperrors.NewFieldErrors(q.fields)
}

// paged renders a page of items with its meta block.
func paged[T, R any](result domain.PagedResult[T], mapFn func(*T) R) fiber.Map {
	items := make([]R, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, mapFn(&result.Items[i]))
	}
	return fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Page: result.Page, PageSize: result.PageSize, Total: result.Total},
	}
}

func mapAll[T, R any](in []T, mapFn func(*T) R) []R {
	out := make([]R, 0, len(in))
	for i := range in {
		out = append(out, mapFn(&in[i]))
	}
	return out
}
