// Package flatten unions the per-subject record-sets of a run into the
// aggregate table and decides what happens to failed subjects.
package flatten

import (
	"strconv"

	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/fetcher"
	"hoopscraper/pkg/table"
)

// Policy decides how failed fetches affect the aggregate table
type Policy int

const (
	// DropFailures skips failed subjects and lists them in the Report
	DropFailures Policy = iota
	// FailOnFailure turns the first failed subject into a fatal error
	FailOnFailure
)

func (p Policy) String() string {
	switch p {
	case DropFailures:
		return "drop"
	case FailOnFailure:
		return "fail"
	default:
		return "unknown"
	}
}

// Failure describes one subject left out of the aggregate table
type Failure struct {
	Index       int
	SubjectID   string
	SubjectName string
	Kind        errs.Kind
	Type        errs.ErrorType
	Attempts    int
	Err         error
}

// Report summarizes a flatten
type Report struct {
	Total     int
	Succeeded int
	Resumed   int
	Rows      int
	Failures  []Failure
}

// Failed returns the number of failed subjects
func (r Report) Failed() int {
	return len(r.Failures)
}

// FailuresTable renders the failures as a table for the failure report
func (r Report) FailuresTable() *table.Table {
	t := table.New("Failures", "subject_id", "subject_name", "kind", "type", "attempts", "error")
	for _, f := range r.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		t.Rows = append(t.Rows, []any{
			f.SubjectID, f.SubjectName, string(f.Kind), string(f.Type), strconv.Itoa(f.Attempts), msg,
		})
	}
	return t
}

// Flatten concatenates the successful record-sets of results in order.
// Rows are indexed contiguously from zero in arrival order and never
// de-duplicated. It fails with EmptyResultSet when no subject succeeded
// and with SchemaMismatch when two record-sets disagree on columns.
func Flatten(results []fetcher.Result, policy Policy) (*table.Table, Report, error) {
	report := Report{Total: len(results)}
	sets := make([]*table.Table, 0, len(results))

	for _, r := range results {
		if r.OK() {
			report.Succeeded++
			report.Rows += r.Table.Len()
			if r.Resumed {
				report.Resumed++
			}
			sets = append(sets, r.Table)
			continue
		}

		if policy == FailOnFailure {
			return nil, report, r.Err
		}
		report.Failures = append(report.Failures, Failure{
			Index:       r.Index,
			SubjectID:   r.Subject.ID,
			SubjectName: r.Subject.Name,
			Kind:        errs.KindOf(r.Err),
			Type:        errs.TypeOf(r.Err),
			Attempts:    r.Attempts,
			Err:         r.Err,
		})
	}

	if len(sets) == 0 {
		return nil, report, errs.New(errs.KindEmptyResultSet, "no successful record-sets among %d subjects (%d failed)",
			report.Total, report.Failed())
	}

	out, err := table.Concat(sets...)
	if err != nil {
		return nil, report, err
	}
	return out, report, nil
}
