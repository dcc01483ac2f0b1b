package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func writeAll(t *testing.T, format domain.FileFormat, rows [][]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(format, &buf)
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriteRead(t *testing.T) {
	rows := [][]string{
		{"Email", "First_Name", "Company"},
		{"ana@example.com", "Ana", "Acme, Inc."},
		{"bo@example.com", "Bo", ""},
	}
	for _, format := range []domain.FileFormat{domain.FormatCSV, domain.FormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			data := writeAll(t, format, rows)
			table, err := Read(format, bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, []string{"email", "first_name", "company"}, table.Header)
			require.Len(t, table.Rows, 2)
			assert.Equal(t, []string{"ana@example.com", "Ana", "Acme, Inc."}, table.Rows[0])
			// trailing empty cells are padded back to header width
			assert.Equal(t, []string{"bo@example.com", "Bo", ""}, table.Rows[1])
			assert.Equal(t, 1, table.Column("first_name"))
			assert.Equal(t, -1, table.Column("phone"))
		})
	}
}

func TestRead_CSVQuirks(t *testing.T) {
	input := "\ufeffEmail ,Name\n\n a@example.com,A,extra\n,\nb@example.com\n"
	table, err := Read(domain.FormatCSV, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "name"}, table.Header)
	assert.Equal(t, [][]string{{"a@example.com", "A"}, {"b@example.com", ""}}, table.Rows)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(domain.FormatCSV, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Read(domain.FormatXLSX, strings.NewReader("not a zip"))
	assert.Error(t, err)

	_, err = Read("json", strings.NewReader("{}"))
	assert.Error(t, err)

	_, err = NewWriter("json", &bytes.Buffer{})
	assert.Error(t, err)
}
