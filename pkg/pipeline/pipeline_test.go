package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hoopscraper/pkg/config"
	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/fetcher"
	"hoopscraper/pkg/logger"
	"hoopscraper/pkg/ratelimit"
	"hoopscraper/pkg/sink"
	"hoopscraper/pkg/subject"
	"hoopscraper/pkg/table"
)

type memSink struct {
	mu     sync.Mutex
	tables []*table.Table
}

func (m *memSink) Write(ctx context.Context, t *table.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = append(m.tables, t)
	return nil
}

func (m *memSink) Location() string { return "memory" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.OutputPath = filepath.Join(dir, "out.csv")
	cfg.Checkpoint.Directory = filepath.Join(dir, "checkpoints")
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	cfg.RateLimitMS = 0
	return cfg
}

func players(n int) subject.Static {
	out := make(subject.Static, n)
	for i := range out {
		out[i] = subject.Subject{ID: fmt.Sprint(i + 1), Name: fmt.Sprintf("Player %d", i+1), Active: true}
	}
	return out
}

func shots(id string, n int) *table.Table {
	t := table.New("Shot_Chart_Detail", "PLAYER_ID", "SHOT_NUM")
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, []any{id, fmt.Sprint(i)})
	}
	return t
}

func rowCounts(counts map[string]int) fetcher.FetchFunc {
	return func(ctx context.Context, s subject.Subject) (*table.Table, error) {
		return shots(s.ID, counts[s.ID]), nil
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func newTestPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	base := []Option{
		WithLogger(logger.NewNopLogger()),
		WithLimiter(ratelimit.None{}),
	}
	p, err := New(cfg, DatasetShots, append(base, opts...)...)
	require.NoError(t, err)
	return p
}

func TestRunConcatenatesInOrder(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg,
		WithSource(players(3)),
		WithFetch(rowCounts(map[string]int{"1": 2, "2": 0, "3": 3})),
	)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, p.State())
	assert.Equal(t, 3, summary.Subjects)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 5, summary.Rows)
	assert.NotEmpty(t, summary.RunID)

	records := readCSV(t, cfg.OutputPath)
	require.Len(t, records, 6)
	assert.Equal(t, []string{"PLAYER_ID", "SHOT_NUM"}, records[0])
	assert.Equal(t, []string{"1", "0"}, records[1])
	assert.Equal(t, []string{"1", "1"}, records[2])
	assert.Equal(t, []string{"3", "0"}, records[3])
	assert.Equal(t, []string{"3", "2"}, records[5])

	_, err = os.Stat(sink.FailuresLocation(cfg.OutputPath))
	assert.True(t, os.IsNotExist(err), "no failure report without failures")

	mgr, err := p.CheckpointManager()
	require.NoError(t, err)
	assert.False(t, mgr.Exists(), "checkpoint is removed after a successful run")
}

func TestRunSkipsFailedPlayers(t *testing.T) {
	cfg := testConfig(t)
	failures := &memSink{}
	p := newTestPipeline(t, cfg,
		WithSource(players(3)),
		WithFailureSink(failures),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			if s.ID == "2" {
				return nil, errs.Transport(errs.ErrorTypeNotFound, 404, "resource not found")
			}
			return shots(s.ID, 2), nil
		}),
	)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, "memory", summary.Failures)

	records := readCSV(t, cfg.OutputPath)
	assert.Len(t, records, 5)
	for _, r := range records[1:] {
		assert.NotEqual(t, "2", r[0])
	}

	require.Len(t, failures.tables, 1)
	report := failures.tables[0]
	require.Equal(t, 1, report.Len())
	assert.Equal(t, "2", report.Rows[0][0])
	assert.Equal(t, string(errs.KindFetchFailure), report.Rows[0][2])
	assert.Equal(t, string(errs.ErrorTypeNotFound), report.Rows[0][3])
}

func TestRunRemovesStaleFailureReport(t *testing.T) {
	cfg := testConfig(t)
	report := sink.FailuresLocation(cfg.OutputPath)

	first := newTestPipeline(t, cfg,
		WithSource(players(3)),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			if s.ID == "2" {
				return nil, errs.Transport(errs.ErrorTypeServerError, 503, "server error")
			}
			return shots(s.ID, 1), nil
		}),
	)
	summary, err := first.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, report, summary.Failures)

	records := readCSV(t, report)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[1][0])

	second := newTestPipeline(t, cfg,
		WithSource(players(3)),
		WithFetch(rowCounts(map[string]int{"1": 1, "2": 1, "3": 1})),
	)
	summary, err = second.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Failures)

	_, err = os.Stat(report)
	assert.True(t, os.IsNotExist(err), "failure report of the previous run is removed")
	assert.Len(t, readCSV(t, cfg.OutputPath), 4)
}

func TestRunFailOnFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.FailOnFailure = true
	p := newTestPipeline(t, cfg,
		WithSource(players(2)),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			if s.ID == "2" {
				return nil, errs.Transport(errs.ErrorTypeAuth, 403, "access forbidden")
			}
			return shots(s.ID, 1), nil
		}),
	)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrFetchFailure)
	assert.Equal(t, errs.ExitFetchFailure, errs.ExitCode(err))
	assert.Equal(t, StateFailed, p.State())

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunSchemaMismatchWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg,
		WithSource(players(2)),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			if s.ID == "2" {
				tbl := table.New("Shot_Chart_Detail", "SHOT_NUM", "PLAYER_ID")
				tbl.Rows = append(tbl.Rows, []any{"0", "2"})
				return tbl, nil
			}
			return shots(s.ID, 1), nil
		}),
	)

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, errs.ErrSchemaMismatch)
	assert.Equal(t, errs.ExitSchemaMismatch, errs.ExitCode(err))

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunAllFailedIsEmptyResultSet(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(t, cfg,
		WithSource(players(2)),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			return nil, errs.Transport(errs.ErrorTypeParsing, 200, "invalid JSON response")
		}),
	)

	summary, err := p.Run(context.Background())
	assert.ErrorIs(t, err, errs.ErrEmptyResultSet)
	assert.Equal(t, 2, summary.Failed)

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunEnumerationFailure(t *testing.T) {
	cfg := testConfig(t)
	called := false
	p := newTestPipeline(t, cfg,
		WithSource(subject.SourceFunc(func(ctx context.Context) ([]subject.Subject, error) {
			return nil, errs.Transport(errs.ErrorTypeServerError, 503, "server error")
		})),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			called = true
			return nil, nil
		}),
	)

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, errs.ErrReferenceDataUnavailable)
	assert.Equal(t, errs.ExitReferenceData, errs.ExitCode(err))
	assert.False(t, called)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	counts := map[string]int{"1": 1, "2": 2, "3": 3}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := newTestPipeline(t, cfg,
		WithSource(players(3)),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			if s.ID == "3" {
				cancel()
				return nil, ctx.Err()
			}
			return shots(s.ID, counts[s.ID]), nil
		}),
	)

	_, err := first.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, errs.ExitCancelled, errs.ExitCode(err))

	mgr, err := first.CheckpointManager()
	require.NoError(t, err)
	require.True(t, mgr.Exists())

	// without --resume an existing checkpoint is refused
	blocked := newTestPipeline(t, cfg, WithSource(players(3)), WithFetch(rowCounts(counts)))
	_, err = blocked.Run(context.Background())
	assert.ErrorIs(t, err, errs.ErrConfig)

	var fetched []string
	second := newTestPipeline(t, cfg,
		WithSource(players(3)),
		WithResume(true),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			fetched = append(fetched, s.ID)
			return shots(s.ID, counts[s.ID]), nil
		}),
	)

	summary, err := second.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, fetched)
	assert.Equal(t, 2, summary.Resumed)
	assert.Equal(t, 6, summary.Rows)
	assert.False(t, mgr.Exists())

	records := readCSV(t, cfg.OutputPath)
	require.Len(t, records, 7)
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "3", records[6][0])
}

func TestRunForceRestartIgnoresCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	mgrOwner := newTestPipeline(t, cfg, WithSource(players(1)))
	mgr, err := mgrOwner.CheckpointManager()
	require.NoError(t, err)
	_, err = mgr.Create("old-run", string(DatasetShots), mgrOwner.Scope(), 1)
	require.NoError(t, err)

	calls := 0
	p := newTestPipeline(t, cfg,
		WithSource(players(1)),
		WithForceRestart(true),
		WithFetch(func(ctx context.Context, s subject.Subject) (*table.Table, error) {
			calls++
			return shots(s.ID, 1), nil
		}),
	)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	_, err = os.Stat(mgr.Path() + ".backup")
	assert.NoError(t, err)
}

func TestRunObserversAndStartHook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checkpoint.Enabled = false

	var total int
	var seen []int
	p := newTestPipeline(t, cfg,
		WithSource(players(3)),
		WithFetch(rowCounts(map[string]int{"1": 1, "2": 1, "3": 1})),
		WithStartHook(func(n int) { total = n }),
		WithObserver(func(pr fetcher.Progress) { seen = append(seen, pr.Index) }),
	)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestScope(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Shots.DateFrom = "2023-01-01"

	p := &Pipeline{cfg: cfg, dataset: DatasetShots}
	assert.Equal(t, "2022-23/Regular Season/FGA/2023-01-01-", p.Scope())

	p.dataset = DatasetPlayers
	assert.Equal(t, "2022-23", p.Scope())
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "all_players_shot_attempts_2022.csv", DatasetShots.DefaultOutput())
	assert.Equal(t, "player_information.csv", DatasetPlayers.DefaultOutput())
}

func TestNewUnknownDataset(t *testing.T) {
	_, err := New(testConfig(t), Dataset("games"))
	assert.ErrorIs(t, err, errs.ErrConfig)
}

const commonAllPlayersJSON = `{"resultSets":[{"name":"CommonAllPlayers",
"headers":["PERSON_ID","DISPLAY_FIRST_LAST","ROSTERSTATUS","TEAM_ID","TEAM_ABBREVIATION"],
"rowSet":[[2544,"LeBron James",1,1610612747,"LAL"],[977,"Kobe Bryant",0,0,""],[201939,"Stephen Curry",1,1610612744,"GSW"]]}]}`

const playerIndexJSON = `{"resultSets":[{"name":"PlayerIndex",
"headers":["PERSON_ID","PLAYER_LAST_NAME","PLAYER_FIRST_NAME","TEAM_ABBREVIATION","HEIGHT"],
"rowSet":[[201939,"Curry","Stephen","GSW","6-2"],[2544,"James","LeBron","LAL","6-9"],[1629029,"Doncic","Luka","DAL","6-7"]]}]}`

func TestPlayersDatasetAgainstStatsServer(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/commonallplayers"):
			fmt.Fprint(w, commonAllPlayersJSON)
		case strings.HasSuffix(r.URL.Path, "/playerindex"):
			fmt.Fprint(w, playerIndexJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Stats.BaseURL = srv.URL

	p, err := New(cfg, DatasetPlayers, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Subjects)
	assert.Equal(t, 2, summary.Rows)

	records := readCSV(t, cfg.OutputPath)
	require.Len(t, records, 3)
	assert.Equal(t, "PERSON_ID", records[0][0])
	assert.Equal(t, "2544", records[1][0])
	assert.Equal(t, "201939", records[2][0])

	assert.Equal(t, 1, hits["/stats/commonallplayers"])
	assert.Equal(t, 1, hits["/stats/playerindex"])
}

func TestNewPassesLoggerToStatsClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/commonallplayers"):
			fmt.Fprint(w, commonAllPlayersJSON)
		default:
			fmt.Fprint(w, playerIndexJSON)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Stats.BaseURL = srv.URL

	log := logger.NewTestLogger()
	p, err := New(cfg, DatasetPlayers, WithLogger(log))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, log.HasMessage("HTTP request completed"), "stats client requests are logged to the pipeline logger")
}

func TestPlayersDatasetIndexUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/commonallplayers") {
			fmt.Fprint(w, commonAllPlayersJSON)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Stats.BaseURL = srv.URL
	cfg.Retry.Enabled = false

	p, err := New(cfg, DatasetPlayers, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, errs.ErrReferenceDataUnavailable)
}
