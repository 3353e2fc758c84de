// Package table holds the tabular record-sets returned by the stats API and
// the aggregate table built from them.
package table

import (
	"encoding/json"
	"fmt"
	"strings"

	errs "hoopscraper/pkg/errors"
)

// Table is a named record-set with a fixed column schema. Values keep the
// JSON representation they were decoded from: json.Number, string, bool or
// nil. The position of a row in Rows is its index.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// New returns an empty table with the given schema
func New(name string, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols, Rows: [][]any{}}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row after checking its width against the schema
func (t *Table) Append(row ...any) error {
	if len(row) != len(t.Columns) {
		return errs.New(errs.KindSchemaMismatch, "table %q: row has %d values, schema has %d columns",
			t.Name, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// ColumnIndex returns the position of column name, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// SameSchema reports whether both tables have the same column names in the
// same order.
func (t *Table) SameSchema(other *Table) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// Where returns a new table holding the rows whose value in column matches
// want. Values are compared by their rendered text, so the json.Number 2544
// matches the string "2544".
func (t *Table) Where(column, want string) (*Table, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil, errs.New(errs.KindSchemaMismatch, "table %q has no column %q", t.Name, column)
	}

	out := New(t.Name, t.Columns...)
	for _, row := range t.Rows {
		if Text(row[idx]) == want {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Concat unions the rows of sets under their shared schema, preserving the
// order of sets and of rows within each set. All sets must have identical
// columns; nothing is coerced.
func Concat(sets ...*Table) (*Table, error) {
	if len(sets) == 0 {
		return nil, errs.New(errs.KindEmptyResultSet, "no record-sets to concatenate")
	}

	first := sets[0]
	total := 0
	for i, s := range sets {
		if !first.SameSchema(s) {
			return nil, errs.New(errs.KindSchemaMismatch, "record-set %d columns [%s] differ from [%s]",
				i, strings.Join(s.Columns, ","), strings.Join(first.Columns, ","))
		}
		total += s.Len()
	}

	out := New(first.Name, first.Columns...)
	out.Rows = make([][]any, 0, total)
	for _, s := range sets {
		out.Rows = append(out.Rows, s.Rows...)
	}
	return out, nil
}

// Text renders a single value the way it appears in CSV output
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(x)
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%.1f", f)
	}
	return fmt.Sprintf("%v", f)
}
