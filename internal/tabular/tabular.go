// Package tabular reads and writes header-first tables as CSV or XLSX.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// SheetName is the worksheet written to XLSX exports.
const SheetName = "Data"

// ErrEmptyFile is returned when a file has no header row.
var ErrEmptyFile = errors.New("file has no header row")

// Writer streams rows into a file.
type Writer interface {
	Write(row []string) error
	// Close flushes buffered output. It does not close the underlying io.Writer.
	Close() error
}

// NewWriter creates a writer for format.
func NewWriter(format domain.FileFormat, w io.Writer) (Writer, error) {
	switch format {
	case domain.FormatCSV:
		return &csvWriter{w: csv.NewWriter(w)}, nil
	case domain.FormatXLSX:
		return newXLSXWriter(w)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

type csvWriter struct {
	w *csv.Writer
}

func (c *csvWriter) Write(row []string) error { return c.w.Write(row) }

func (c *csvWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

type xlsxWriter struct {
	out    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
}

func newXLSXWriter(out io.Writer) (*xlsxWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &xlsxWriter{out: out, file: f, stream: sw}, nil
}

func (x *xlsxWriter) Write(row []string) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	return x.stream.SetRow(cell, values)
}

func (x *xlsxWriter) Close() error {
	defer x.file.Close()
	if err := x.stream.Flush(); err != nil {
		return err
	}
	_, err := x.file.WriteTo(x.out)
	return err
}

// Table is a parsed file: a normalised header and the data rows,
// each padded or truncated to the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of name in the header, or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Read parses a whole file. Header names are trimmed and lower-cased; blank rows are skipped.
func Read(format domain.FileFormat, r io.Reader) (Table, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case domain.FormatCSV:
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		records, err = reader.ReadAll()
	case domain.FormatXLSX:
		records, err = readXLSX(r)
	default:
		return Table{}, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return Table{}, err
	}
	return newTable(records)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

func newTable(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, ErrEmptyFile
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	if len(header) == 0 {
		return Table{}, ErrEmptyFile
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, len(header))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
