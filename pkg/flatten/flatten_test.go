package flatten

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/fetcher"
	"hoopscraper/pkg/subject"
	"hoopscraper/pkg/table"
)

func ok(i int, id string, rows int) fetcher.Result {
	t := table.New("Shot_Chart_Detail", "PLAYER_ID", "SHOT_NUMBER")
	for n := 0; n < rows; n++ {
		t.Rows = append(t.Rows, []any{json.Number(id), json.Number(strconv.Itoa(n))})
	}
	return fetcher.Result{Index: i, Subject: subject.Subject{ID: id, Name: "Player " + id}, Table: t, Attempts: 1}
}

func failed(i int, id string) fetcher.Result {
	err := errs.ForSubject(id, errs.Transport(errs.ErrorTypeServerError, 500, "internal error"))
	return fetcher.Result{Index: i, Subject: subject.Subject{ID: id, Name: "Player " + id}, Err: err, Attempts: 3}
}

func TestFlattenRowCountIsSum(t *testing.T) {
	results := []fetcher.Result{ok(0, "1", 2), ok(1, "2", 0), ok(2, "3", 3)}

	out, report, err := Flatten(results, DropFailures)
	require.NoError(t, err)

	assert.Equal(t, 5, out.Len())
	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, []string{"PLAYER_ID", "SHOT_NUMBER"}, out.Columns)

	want := []string{"1", "1", "3", "3", "3"}
	for i, row := range out.Rows {
		assert.Equal(t, json.Number(want[i]), row[0], "row %d", i)
	}
}

func TestFlattenDropsFailures(t *testing.T) {
	results := []fetcher.Result{ok(0, "1", 2), failed(1, "2")}

	out, report, err := Flatten(results, DropFailures)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Len())
	require.Equal(t, 1, report.Failed())
	f := report.Failures[0]
	assert.Equal(t, "2", f.SubjectID)
	assert.Equal(t, errs.KindFetchFailure, f.Kind)
	assert.Equal(t, errs.ErrorTypeServerError, f.Type)
	assert.Equal(t, 3, f.Attempts)
}

func TestFlattenFailOnFailure(t *testing.T) {
	results := []fetcher.Result{ok(0, "1", 2), failed(1, "2"), ok(2, "3", 1)}

	out, _, err := Flatten(results, FailOnFailure)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, errs.ErrFetchFailure)
	assert.Equal(t, errs.ExitFetchFailure, errs.ExitCode(err))
}

func TestFlattenEmpty(t *testing.T) {
	tests := []struct {
		name    string
		results []fetcher.Result
	}{
		{"no results", nil},
		{"only failures", []fetcher.Result{failed(0, "1"), failed(1, "2")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := Flatten(tt.results, DropFailures)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, errs.ErrEmptyResultSet)
		})
	}
}

func TestFlattenAllEmptySetsIsHeaderOnly(t *testing.T) {
	out, _, err := Flatten([]fetcher.Result{ok(0, "1", 0), ok(1, "2", 0)}, DropFailures)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Len(t, out.Columns, 2)
}

func TestFlattenSchemaMismatch(t *testing.T) {
	odd := ok(1, "2", 1)
	odd.Table.Columns = []string{"PLAYER_ID", "GAME_ID"}

	out, _, err := Flatten([]fetcher.Result{ok(0, "1", 1), odd}, DropFailures)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, errs.ErrSchemaMismatch)
}

func TestFlattenCountsResumed(t *testing.T) {
	r := ok(0, "1", 1)
	r.Resumed = true

	_, report, err := Flatten([]fetcher.Result{r, ok(1, "2", 1)}, DropFailures)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resumed)
}

func TestFailuresTable(t *testing.T) {
	_, report, err := Flatten([]fetcher.Result{ok(0, "1", 1), failed(1, "2")}, DropFailures)
	require.NoError(t, err)

	tbl := report.FailuresTable()
	assert.Equal(t, []string{"subject_id", "subject_name", "kind", "type", "attempts", "error"}, tbl.Columns)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "2", tbl.Rows[0][0])
	assert.Equal(t, "Player 2", tbl.Rows[0][1])
	assert.Equal(t, "fetch_failure", tbl.Rows[0][2])
	assert.Equal(t, "3", tbl.Rows[0][4])
	assert.Contains(t, tbl.Rows[0][5], "internal error")
}
