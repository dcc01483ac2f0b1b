package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughDomainErrors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewForbidden("nope"))

	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "FORBIDDEN", de.Code)
	assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
}

func TestToDomainError_NoRowsBecomesNotFound(t *testing.T) {
	de := ToDomainError(fmt.Errorf("get ticket: %w", pgx.ErrNoRows))
	assert.Equal(t, "NOT_FOUND", de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
}

func TestToDomainError_UniqueViolationBecomesConflict(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "contacts_tenant_email_key"}

	de := ToDomainError(pgErr)
	assert.Equal(t, "CONFLICT", de.Code)
	assert.Equal(t, "contacts_tenant_email_key", de.Details["constraint"])
}

func TestToDomainError_UnknownIsInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestNotFoundOr(t *testing.T) {
	err := NotFoundOr(pgx.ErrNoRows, "contact", map[string]any{"contact_id": "c1"})
	de := ToDomainError(err)
	assert.Equal(t, "contact not found", de.Message)
	assert.Equal(t, "c1", de.Details["contact_id"])

	assert.NoError(t, NotFoundOr(nil, "contact", nil))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestNewFieldErrors(t *testing.T) {
	de := ToDomainError(NewFieldErrors(map[string]string{"email": "email is required"}))
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus)
	fields, ok := de.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "email is required", fields["email"])
}
