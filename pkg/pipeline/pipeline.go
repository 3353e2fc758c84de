package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hoopscraper/pkg/checkpoint"
	"hoopscraper/pkg/config"
	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/fetcher"
	"hoopscraper/pkg/flatten"
	"hoopscraper/pkg/logger"
	"hoopscraper/pkg/ratelimit"
	"hoopscraper/pkg/retry"
	"hoopscraper/pkg/sink"
	"hoopscraper/pkg/stats"
	"hoopscraper/pkg/subject"
)

// State is a stage of a run
type State string

const (
	StateNotStarted  State = "not_started"
	StateEnumerating State = "enumerating"
	StateFetching    State = "fetching"
	StateFlattening  State = "flattening"
	StateWriting     State = "writing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Dataset selects what is fetched for each player
type Dataset string

const (
	DatasetShots   Dataset = "shots"
	DatasetPlayers Dataset = "players"
)

// DefaultOutput returns the file a dataset is written to when no output
// path is configured
func (d Dataset) DefaultOutput() string {
	switch d {
	case DatasetPlayers:
		return "player_information.csv"
	default:
		return "all_players_shot_attempts_2022.csv"
	}
}

// Summary describes a finished run
type Summary struct {
	RunID     string
	Dataset   Dataset
	Subjects  int
	Succeeded int
	Resumed   int
	Failed    int
	Rows      int
	Output    string
	Failures  string
	Duration  time.Duration
	Report    flatten.Report
}

// Pipeline enumerates players, fetches one record-set per player, flattens
// the results and writes them to a sink
type Pipeline struct {
	cfg     *config.Config
	dataset Dataset
	logger  logger.Logger

	source    subject.Source
	fetch     fetcher.FetchFunc
	prepare   func(ctx context.Context) error
	limiter   ratelimit.Limiter
	output    sink.Sink
	failures  sink.Sink
	observers []fetcher.Observer
	onStart   []func(total int)

	resume       bool
	forceRestart bool

	state State
	runID string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSource replaces the player list
func WithSource(src subject.Source) Option {
	return func(p *Pipeline) { p.source = src }
}

// WithFetch replaces the per-player fetch
func WithFetch(fetch fetcher.FetchFunc) Option {
	return func(p *Pipeline) { p.fetch = fetch }
}

// WithLimiter replaces the limiter placed in front of every fetch
func WithLimiter(l ratelimit.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// WithSink replaces the output sink
func WithSink(s sink.Sink) Option {
	return func(p *Pipeline) { p.output = s }
}

// WithFailureSink replaces the sink the failure report is written to
func WithFailureSink(s sink.Sink) Option {
	return func(p *Pipeline) { p.failures = s }
}

// WithObserver adds a progress observer to the fetch loop
func WithObserver(o fetcher.Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// WithStartHook registers fn to be called with the number of players once
// they are enumerated
func WithStartHook(fn func(total int)) Option {
	return func(p *Pipeline) { p.onStart = append(p.onStart, fn) }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithResume continues from an existing checkpoint
func WithResume(resume bool) Option {
	return func(p *Pipeline) { p.resume = resume }
}

// WithForceRestart discards an existing checkpoint
func WithForceRestart(force bool) Option {
	return func(p *Pipeline) { p.forceRestart = force }
}

// New creates a pipeline for dataset. The stats client, the player source
// and the limiter are built from cfg unless replaced by options.
func New(cfg *config.Config, dataset Dataset, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	p := &Pipeline{
		cfg:     cfg,
		dataset: dataset,
		logger:  logger.GetLogger(),
		state:   StateNotStarted,
	}

	for _, opt := range opts {
		opt(p)
	}

	client := stats.NewClient(&cfg.Stats, p.logger)

	if p.source == nil {
		if cfg.Subjects.PlayersFile != "" {
			p.source = subject.FileSource{Path: cfg.Subjects.PlayersFile}
		} else {
			p.source = &stats.PlayerSource{Client: client, Season: cfg.Season}
		}
	}

	switch dataset {
	case DatasetShots:
		if p.fetch == nil {
			f := &stats.ShotFetcher{
				Client: client,
				Base: stats.ShotChartQuery{
					Season:         cfg.Season,
					SeasonType:     cfg.SeasonType,
					ContextMeasure: cfg.Shots.ContextMeasure,
					DateFrom:       cfg.Shots.DateFrom,
					DateTo:         cfg.Shots.DateTo,
				},
			}
			p.fetch = f.Fetch
		}
		if p.limiter == nil {
			limiter, err := ratelimit.New(cfg.RateLimit.Strategy, cfg.RateLimitInterval(), cfg.RateLimit.RequestsPerMinute)
			if err != nil {
				return nil, errs.Wrap(errs.KindConfig, err, "invalid rate limit")
			}
			p.limiter = limiter
		}
	case DatasetPlayers:
		if p.fetch == nil {
			// one playerindex download serves every player, so there is no
			// per-player call to pace
			lookup := &stats.PlayerIndexLookup{Client: client, Season: cfg.Season}
			p.fetch = lookup.Fetch
			p.prepare = lookup.Load
		}
		if p.limiter == nil {
			p.limiter = ratelimit.None{}
		}
	default:
		return nil, errs.New(errs.KindConfig, "unknown dataset %q", dataset)
	}

	if p.output == nil {
		out, err := sink.Open(context.Background(), p.OutputPath())
		if err != nil {
			return nil, err
		}
		p.output = out
	}
	if p.failures == nil && cfg.Output.FailuresReport {
		out, err := sink.Open(context.Background(), sink.FailuresLocation(p.OutputPath()))
		if err != nil {
			return nil, err
		}
		p.failures = out
	}

	return p, nil
}

// OutputPath returns the configured output or the dataset default
func (p *Pipeline) OutputPath() string {
	if p.cfg.OutputPath != "" {
		return p.cfg.OutputPath
	}
	return p.dataset.DefaultOutput()
}

// State returns the current stage
func (p *Pipeline) State() State {
	return p.state
}

// Scope identifies the request filters of a run. Checkpoints are only
// resumed for the same dataset and scope.
func (p *Pipeline) Scope() string {
	parts := []string{p.cfg.Season}
	if p.dataset == DatasetShots {
		parts = append(parts, p.cfg.SeasonType, p.cfg.Shots.ContextMeasure)
		if p.cfg.Shots.DateFrom != "" || p.cfg.Shots.DateTo != "" {
			parts = append(parts, p.cfg.Shots.DateFrom+"-"+p.cfg.Shots.DateTo)
		}
	}
	return strings.Join(parts, "/")
}

// CheckpointManager returns the checkpoint manager for this pipeline's
// dataset and scope
func (p *Pipeline) CheckpointManager() (*checkpoint.Manager, error) {
	m, err := checkpoint.NewManager(p.cfg.Checkpoint.Directory, string(p.dataset), p.Scope())
	if err != nil {
		return nil, err
	}
	m.SetLogger(p.logger)
	return m, nil
}

// Run executes the pipeline. On a fatal error nothing is written. When ctx
// is cancelled during the fetch the checkpoint is saved and the context
// error is returned along with the partial counts.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	p.runID = uuid.NewString()
	summary := &Summary{RunID: p.runID, Dataset: p.dataset, Output: p.output.Location()}

	log := p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"run_id":  p.runID,
		"dataset": string(p.dataset),
	})
	log.InfoWithFields("Starting run", map[string]interface{}{
		"season": p.cfg.Season,
		"output": summary.Output,
	})

	fail := func(err error) (*Summary, error) {
		summary.Duration = time.Since(start)
		p.transition(StateFailed)
		log.WithError(err).ErrorWithFields("Run failed", map[string]interface{}{
			"kind": string(errs.KindOf(err)),
		})
		return summary, err
	}

	p.transition(StateEnumerating)
	subjects, err := subject.Enumerate(ctx, p.source, p.filter())
	if err != nil {
		return fail(err)
	}
	summary.Subjects = len(subjects)
	log.InfoWithFields("Players enumerated", map[string]interface{}{"count": len(subjects)})

	if p.prepare != nil {
		if err := p.prepare(ctx); err != nil {
			return fail(err)
		}
	}
	for _, fn := range p.onStart {
		fn(len(subjects))
	}

	p.transition(StateFetching)
	mgr, tracker, err := p.openCheckpoint(len(subjects))
	if err != nil {
		return fail(err)
	}

	loop := fetcher.New(p.limiter, p.loopOptions(tracker)...)
	acc, err := loop.Run(ctx, subjects, p.fetch, fetcher.NewAccumulator(len(subjects)))
	summary.Succeeded = acc.Succeeded()
	summary.Failed = acc.Failed()
	summary.Rows = acc.Rows()
	if err != nil {
		if mgr != nil {
			log.InfoWithFields("Checkpoint saved, use --resume to continue", map[string]interface{}{
				"path": mgr.Path(),
			})
		}
		return fail(err)
	}

	p.transition(StateFlattening)
	policy := flatten.DropFailures
	if p.cfg.Output.FailOnFailure {
		policy = flatten.FailOnFailure
	}
	tbl, report, err := flatten.Flatten(acc.Results(), policy)
	summary.Report = report
	summary.Resumed = report.Resumed
	if err != nil {
		return fail(err)
	}
	summary.Rows = tbl.Len()

	p.transition(StateWriting)
	if err := p.output.Write(ctx, tbl); err != nil {
		return fail(err)
	}

	p.writeFailureReport(ctx, log, report, summary)

	if mgr != nil {
		if err := mgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	summary.Duration = time.Since(start)
	p.transition(StateDone)
	log.InfoWithFields("Run complete", map[string]interface{}{
		"players":  summary.Subjects,
		"failed":   summary.Failed,
		"resumed":  summary.Resumed,
		"rows":     summary.Rows,
		"duration": summary.Duration.String(),
	})

	return summary, nil
}

// writeFailureReport writes the failed players next to the output. A report
// left by an earlier run is removed when this run has no failures.
func (p *Pipeline) writeFailureReport(ctx context.Context, log logger.Logger, report flatten.Report, summary *Summary) {
	if p.failures == nil {
		return
	}

	if report.Failed() == 0 {
		r, ok := p.failures.(sink.Remover)
		if !ok {
			return
		}
		if err := r.Remove(ctx); err != nil {
			log.WithError(err).Warn("Failed to remove stale failure report")
		}
		return
	}

	if err := p.failures.Write(ctx, report.FailuresTable()); err != nil {
		log.WithError(err).Warn("Failed to write failure report")
		return
	}
	summary.Failures = p.failures.Location()
}

func (p *Pipeline) transition(to State) {
	logger.LogStateTransition(p.logger, p.runID, string(p.state), string(to))
	p.state = to
}

func (p *Pipeline) filter() subject.Filter {
	return subject.Filter{
		ActiveOnly:   p.cfg.Subjects.ActiveOnly,
		IDs:          p.cfg.Subjects.IDs,
		NameContains: p.cfg.Subjects.NameContains,
		Limit:        p.cfg.Subjects.Limit,
	}
}

func (p *Pipeline) loopOptions(tracker *checkpoint.Tracker) []fetcher.Option {
	opts := []fetcher.Option{
		fetcher.WithLogger(p.logger),
		fetcher.WithRetry(p.retryConfig()),
	}
	if tracker != nil {
		opts = append(opts, fetcher.WithStore(tracker, p.cfg.Checkpoint.Interval))
	}
	if every := p.cfg.Checkpoint.Interval; every > 0 {
		opts = append(opts, fetcher.WithObserver(func(pr fetcher.Progress) {
			done := pr.Index + 1
			if done%every == 0 || done == pr.Total {
				logger.LogProgress(p.logger, string(p.dataset), done, pr.Total)
			}
		}))
	}
	for _, o := range p.observers {
		opts = append(opts, fetcher.WithObserver(o))
	}
	return opts
}

func (p *Pipeline) retryConfig() *retry.Config {
	if !p.cfg.Retry.Enabled {
		return &retry.Config{MaxAttempts: 1, Logger: p.logger}
	}
	backoff := retry.NewErrorTypeBackoff(&retry.ExponentialBackoff{
		BaseDelay:    p.cfg.Retry.BaseDelay,
		MaxDelay:     p.cfg.Retry.MaxDelay,
		Multiplier:   p.cfg.Retry.Multiplier,
		JitterFactor: 0.1,
	})
	return &retry.Config{
		MaxAttempts: p.cfg.Retry.MaxAttempts,
		Backoff:     backoff,
		RetryIf:     retry.DefaultRetryIf,
		Logger:      p.logger,
	}
}

// openCheckpoint loads, discards or creates the checkpoint of this run.
// It returns nil values when checkpointing is disabled.
func (p *Pipeline) openCheckpoint(total int) (*checkpoint.Manager, *checkpoint.Tracker, error) {
	if !p.cfg.Checkpoint.Enabled {
		return nil, nil, nil
	}

	mgr, err := p.CheckpointManager()
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindConfig, err, "failed to create checkpoint manager")
	}

	if mgr.Exists() {
		switch {
		case p.forceRestart:
			if err := mgr.Backup(); err != nil {
				p.logger.WithError(err).Warn("Failed to back up checkpoint")
			}
			if err := mgr.Delete(); err != nil {
				p.logger.WithError(err).Warn("Failed to delete existing checkpoint")
			}
		case p.resume:
			cp, err := mgr.Load()
			if err != nil {
				return nil, nil, errs.Wrap(errs.KindConfig, err, "failed to load checkpoint")
			}
			if cp != nil {
				p.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
					"previous_run": cp.RunID,
					"completed":    len(cp.Completed),
					"failed":       len(cp.Failed),
				})
				cp.TotalSubjects = total
				return mgr, checkpoint.NewTracker(mgr, cp), nil
			}
		default:
			return nil, nil, errs.New(errs.KindConfig,
				"checkpoint exists at %s: use --resume to continue or --force-restart to start fresh", mgr.Path())
		}
	}

	cp, err := mgr.Create(p.runID, string(p.dataset), p.Scope(), total)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindConfig, err, "failed to create checkpoint")
	}
	return mgr, checkpoint.NewTracker(mgr, cp), nil
}

// String implements fmt.Stringer
func (s *Summary) String() string {
	return fmt.Sprintf("%s: %d players, %d failed, %d rows -> %s", s.Dataset, s.Subjects, s.Failed, s.Rows, s.Output)
}
