package repository

import (
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// whereBuilder accumulates positional SQL predicates and their arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

// tenantScope starts a predicate list bound to one tenant.
func tenantScope(column, tenantID string) *whereBuilder {
	w := &whereBuilder{}
	w.add(column+"=%s", tenantID)
	return w
}

// add appends a clause; every %s in format is replaced by the placeholder of value.
func (w *whereBuilder) add(format string, value any) {
	w.args = append(w.args, value)
	placeholder := fmt.Sprintf("$%d", len(w.args))
	w.clauses = append(w.clauses, strings.ReplaceAll(format, "%s", placeholder))
}

// raw appends a clause without arguments.
func (w *whereBuilder) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

// in appends "column IN (...)" for non-empty values.
func in[T any](w *whereBuilder, column string, values []T) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(w.args))
	}
	w.clauses = append(w.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// search appends a case-insensitive substring match over columns when term is
// not blank. LIKE wildcards in term match literally.
func (w *whereBuilder) search(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	w.args = append(w.args, "%"+likeEscaper.Replace(strings.ToLower(term))+"%")
	placeholder := fmt.Sprintf("$%d", len(w.args))
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf(`LOWER(%s) LIKE %s ESCAPE '\'`, col, placeholder)
	}
	w.clauses = append(w.clauses, "("+strings.Join(parts, " OR ")+")")
}

func (w *whereBuilder) where() string {
	if len(w.clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(w.clauses, " AND ")
}

// pageClause renders LIMIT/OFFSET for a normalized page.
func pageClause(page domain.Page) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", page.Limit(), page.Offset())
}
