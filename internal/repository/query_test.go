package repository

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestWhereBuilder(t *testing.T) {
	w := tenantScope("t.tenant_id", "tenant-1")
	w.raw("t.deleted_at IS NULL")
	in(w, "t.status", []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusPending})
	in(w, "t.priority", []domain.TicketPriority(nil))
	w.search("  Printer ", "t.subject", "t.description")
	w.add("(t.created_at >= %s)", "2026-01-01")

	assert.Equal(t,
		"t.tenant_id=$1 AND t.deleted_at IS NULL AND t.status IN ($2,$3) AND (LOWER(t.subject) LIKE $4 ESCAPE '\\' OR LOWER(t.description) LIKE $4 ESCAPE '\\') AND (t.created_at >= $5)",
		w.where())
	assert.Equal(t, []any{"tenant-1", domain.TicketStatusOpen, domain.TicketStatusPending, "%printer%", "2026-01-01"}, w.args)
}

func TestWhereBuilder_SearchMatchesWildcardsLiterally(t *testing.T) {
	w := &whereBuilder{}
	w.search(`100%_Off\`, "c.company")
	assert.Equal(t, []any{`%100\%\_off\\%`}, w.args)

	blank := &whereBuilder{}
	blank.search("   ", "c.company")
	assert.Empty(t, blank.args)
	assert.Equal(t, "TRUE", blank.where())
}

func TestPageClause(t *testing.T) {
	assert.Equal(t, "LIMIT 20 OFFSET 0", pageClause(domain.Page{}))
	assert.Equal(t, "LIMIT 100 OFFSET 200", pageClause(domain.Page{Number: 3, Size: 500}))
	assert.Equal(t, "LIMIT 100 OFFSET 9999900", pageClause(domain.Page{Number: math.MaxInt, Size: 100}))
}
