package stats

import (
	"fmt"

	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/table"
)

// ResultSet is one named table in a stats API response
type ResultSet struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	RowSet  [][]any  `json:"rowSet"`
}

// Response is the stats API envelope. Most endpoints return resultSets;
// a few return a single resultSet.
type Response struct {
	Resource   string         `json:"resource"`
	Parameters map[string]any `json:"parameters"`
	ResultSets []ResultSet    `json:"resultSets"`
	ResultSet  *ResultSet     `json:"resultSet"`
}

// Sets returns the result sets regardless of envelope shape
func (r *Response) Sets() []ResultSet {
	if len(r.ResultSets) > 0 {
		return r.ResultSets
	}
	if r.ResultSet != nil {
		return []ResultSet{*r.ResultSet}
	}
	return nil
}

// Table converts the result set called name into a table. Rows whose width
// differs from the headers are a parse error.
func (r *Response) Table(name string) (*table.Table, error) {
	for _, rs := range r.Sets() {
		if rs.Name == name {
			return rs.Table()
		}
	}
	return nil, errs.Transport(errs.ErrorTypeParsing, 0, "result set %q not found in %s response", name, r.Resource)
}

// Table converts the result set into a table
func (rs ResultSet) Table() (*table.Table, error) {
	t := table.New(rs.Name, rs.Headers...)
	for i, row := range rs.RowSet {
		if len(row) != len(rs.Headers) {
			return nil, errs.Transport(errs.ErrorTypeParsing, 0,
				"result set %q row %d has %d values for %d headers", rs.Name, i, len(row), len(rs.Headers))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (rs ResultSet) String() string {
	return fmt.Sprintf("%s (%d columns, %d rows)", rs.Name, len(rs.Headers), len(rs.RowSet))
}
