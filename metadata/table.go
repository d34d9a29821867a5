// Package metadata builds the stimulus tables that accompany a packaged
// stimulus set. Every table has a stimulus_id column whose values are unique.
package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"

	"github.com/bonnerlab/datasets/errors"
)

// Column names shared by all stimulus tables.
const (
	ColumnStimulusID = "stimulus_id"
	ColumnFilename   = "filename"
)

// Table is an ordered set of named string columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// Column returns a copy of the values in column name.
func (t *Table) Column(name string) ([]string, error) {
	i := t.Index(name)
	if i < 0 {
		return nil, errors.Newf(errors.CodeNotFound, "metadata.Column", "no column %q", name)
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Append adds a row. It must have one cell per column.
func (t *Table) Append(cells ...string) error {
	if len(cells) != len(t.Columns) {
		return errors.Newf(errors.CodeInvalidInput, "metadata.Append",
			"row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	t.Rows = append(t.Rows, slices.Clone(cells))
	return nil
}

// Validate checks that the table has a stimulus_id column with unique,
// non-empty values.
func (t *Table) Validate() error {
	const op = "metadata.Validate"

	col := t.Index(ColumnStimulusID)
	if col < 0 {
		return errors.Newf(errors.CodeIntegrity, op, "missing %q column", ColumnStimulusID)
	}

	seen := make(map[string]int, len(t.Rows))
	var problems []error
	for r, row := range t.Rows {
		id := row[col]
		if id == "" {
			problems = append(problems, fmt.Errorf("row %d: empty %s", r, ColumnStimulusID))
			continue
		}
		if first, dup := seen[id]; dup {
			problems = append(problems, fmt.Errorf("row %d: %s %q already used by row %d", r, ColumnStimulusID, id, first))
			continue
		}
		seen[id] = r
	}
	if len(problems) > 0 {
		return errors.Wrap(errors.CodeIntegrity, op, errors.Join(problems...))
	}
	return nil
}

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return errors.Wrap(errors.CodeStorage, "metadata.WriteCSV", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return errors.Wrap(errors.CodeStorage, "metadata.WriteCSV", err)
	}
	return nil
}

// ReadCSV reads a table whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.CodeDecode, "metadata.ReadCSV", err)
	}
	if len(records) == 0 {
		return nil, errors.New(errors.CodeDecode, "metadata.ReadCSV", "missing header row")
	}
	return &Table{Columns: records[0], Rows: records[1:]}, nil
}
