package fetcher

import (
	"time"

	"hoopscraper/pkg/subject"
	"hoopscraper/pkg/table"
)

// Result is the outcome of fetching one subject. Exactly one of Table and
// Err is set.
type Result struct {
	Index    int
	Subject  subject.Subject
	Table    *table.Table
	Err      error
	Attempts int
	Duration time.Duration
	// Resumed is set when the table came from a checkpoint instead of a call
	Resumed bool
}

// OK reports whether the fetch succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// Rows returns the number of rows fetched, 0 on failure
func (r Result) Rows() int {
	if r.Err != nil {
		return 0
	}
	return r.Table.Len()
}

// Accumulator collects results in subject order. It is owned by the caller
// of Loop.Run and is not safe for concurrent use.
type Accumulator struct {
	results []Result
}

// NewAccumulator returns an empty accumulator sized for n subjects
func NewAccumulator(n int) *Accumulator {
	return &Accumulator{results: make([]Result, 0, n)}
}

// Add appends a result
func (a *Accumulator) Add(r Result) {
	a.results = append(a.results, r)
}

// Results returns the collected results in order
func (a *Accumulator) Results() []Result {
	out := make([]Result, len(a.results))
	copy(out, a.results)
	return out
}

// Len returns the number of results collected
func (a *Accumulator) Len() int {
	return len(a.results)
}

// Succeeded counts successful results
func (a *Accumulator) Succeeded() int {
	n := 0
	for _, r := range a.results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Failed counts failed results
func (a *Accumulator) Failed() int {
	return len(a.results) - a.Succeeded()
}

// Rows sums the rows of all successful results
func (a *Accumulator) Rows() int {
	n := 0
	for _, r := range a.results {
		n += r.Rows()
	}
	return n
}
