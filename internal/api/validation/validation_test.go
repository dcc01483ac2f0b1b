package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type sample struct {
	Name     string   `json:"name" validate:"required,max=5"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Priority string   `json:"priority" validate:"omitempty,oneof=LOW HIGH"`
	Tags     []string `json:"tags" validate:"max=2"`
	Hours    []hour   `json:"hours" validate:"dive"`
}

type hour struct {
	Start string `json:"start" validate:"required"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "ok", Email: "a@b.io", Priority: "LOW"}))
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := Struct(sample{
		Name:     "too-long-name",
		Email:    "nope",
		Priority: "MID",
		Tags:     []string{"a", "b", "c"},
		Hours:    []hour{{}},
	})
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	fields, ok := de.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 5 characters long", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be one of [LOW HIGH]", fields["priority"])
	assert.Equal(t, "must contain at most 2 items", fields["tags"])
	assert.Equal(t, "is required", fields["hours[0].start"])
}

func TestStruct_Required(t *testing.T) {
	err := Struct(sample{})
	fields := apperrors.ToDomainError(err).Details["fields"].(map[string]string)
	assert.Equal(t, map[string]string{"name": "is required"}, fields)
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("ada@example.com"))
	assert.False(t, IsEmail("bad"))
	assert.False(t, IsEmail(""))
}
