package fetcher

import (
	"context"
	"errors"
	"time"

	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/logger"
	"hoopscraper/pkg/ratelimit"
	"hoopscraper/pkg/retry"
	"hoopscraper/pkg/subject"
	"hoopscraper/pkg/table"
)

// FetchFunc retrieves the record-set of one subject. An empty table is a
// valid answer.
type FetchFunc func(ctx context.Context, s subject.Subject) (*table.Table, error)

// Progress is reported after each subject
type Progress struct {
	Index    int
	Total    int
	Subject  subject.Subject
	Rows     int
	Err      error
	Attempts int
	Resumed  bool
	Duration time.Duration
}

// Observer receives progress. Observers must not block for long; they run
// on the loop's goroutine.
type Observer func(Progress)

// Store persists results between runs
type Store interface {
	Completed(subjectID string) (*table.Table, int, bool)
	RecordSuccess(subjectID string, t *table.Table, attempts int)
	RecordFailure(subjectID string, err error)
	Flush() error
}

// Loop fetches subjects one at a time under a shared rate limiter
type Loop struct {
	limiter   ratelimit.Limiter
	retry     *retry.Config
	store     Store
	every     int
	observers []Observer
	logger    logger.Logger
}

// Option configures a Loop
type Option func(*Loop)

// WithRetry sets the retry policy for each subject. A nil config makes one
// attempt per subject.
func WithRetry(cfg *retry.Config) Option {
	return func(l *Loop) { l.retry = cfg }
}

// WithStore enables checkpointing. The store is flushed every n fetched
// subjects, on cancellation and at the end of the run.
func WithStore(s Store, n int) Option {
	return func(l *Loop) {
		l.store = s
		l.every = n
	}
}

// WithObserver adds a progress observer
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// WithLogger sets the loop's logger
func WithLogger(log logger.Logger) Option {
	return func(l *Loop) { l.logger = log }
}

// New creates a fetch loop. A nil limiter disables pacing.
func New(limiter ratelimit.Limiter, opts ...Option) *Loop {
	if limiter == nil {
		limiter = ratelimit.None{}
	}
	l := &Loop{
		limiter: limiter,
		logger:  logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run fetches every subject in order and appends one Result per subject to
// acc, which is created when nil. A failing subject is recorded and the
// loop moves on. The limiter is waited on before every call except the
// first of the run, retries included.
//
// When ctx is cancelled Run stops between calls, flushes the store and
// returns the partial accumulator together with the context error.
func (l *Loop) Run(ctx context.Context, subjects []subject.Subject, fetch FetchFunc, acc *Accumulator) (*Accumulator, error) {
	if acc == nil {
		acc = NewAccumulator(len(subjects))
	}

	retryCfg := l.retry
	if retryCfg == nil {
		retryCfg = &retry.Config{MaxAttempts: 1}
	}

	calls := 0
	sinceFlush := 0
	total := len(subjects)

	for i, s := range subjects {
		if err := ctx.Err(); err != nil {
			return acc, l.interrupted(err)
		}

		if l.store != nil {
			if tbl, attempts, ok := l.store.Completed(s.ID); ok {
				res := Result{Index: i, Subject: s, Table: tbl, Attempts: attempts, Resumed: true}
				acc.Add(res)
				l.notify(res, total)
				continue
			}
		}

		start := time.Now()
		tbl, outcome := retry.DoWithResult(ctx, func(ctx context.Context, attempt int) (*table.Table, error) {
			if calls > 0 {
				if err := l.limiter.Wait(ctx); err != nil {
					return nil, err
				}
			}
			calls++

			t, err := fetch(ctx, s)
			if err != nil {
				return nil, err
			}
			if t == nil {
				return nil, errs.Transport(errs.ErrorTypeParsing, 0, "no record-set returned")
			}
			return t, nil
		}, retryCfg)

		if ctx.Err() != nil && outcome.Err != nil {
			return acc, l.interrupted(ctx.Err())
		}

		res := Result{
			Index:    i,
			Subject:  s,
			Attempts: outcome.Attempts,
			Duration: time.Since(start),
		}
		if outcome.Err != nil {
			res.Err = errs.ForSubject(s.ID, outcome.Err)
			if l.store != nil {
				l.store.RecordFailure(s.ID, res.Err)
			}
		} else {
			res.Table = tbl
			if l.store != nil {
				l.store.RecordSuccess(s.ID, tbl, outcome.Attempts)
			}
		}

		acc.Add(res)
		l.notify(res, total)

		sinceFlush++
		if l.store != nil && l.every > 0 && sinceFlush >= l.every {
			l.flush()
			sinceFlush = 0
		}
	}

	if l.store != nil {
		l.flush()
	}
	return acc, nil
}

func (l *Loop) notify(res Result, total int) {
	logger.LogFetch(l.logger, res.Index, total, res.Subject.ID, res.Rows(), res.Err)

	p := Progress{
		Index:    res.Index,
		Total:    total,
		Subject:  res.Subject,
		Rows:     res.Rows(),
		Err:      res.Err,
		Attempts: res.Attempts,
		Resumed:  res.Resumed,
		Duration: res.Duration,
	}
	for _, o := range l.observers {
		o(p)
	}
}

func (l *Loop) flush() {
	if err := l.store.Flush(); err != nil {
		l.logger.WithError(err).Warn("Failed to save checkpoint")
	}
}

func (l *Loop) interrupted(err error) error {
	if l.store != nil {
		l.flush()
	}
	if errors.Is(err, context.Canceled) {
		l.logger.Warn("Fetch loop cancelled")
	}
	return err
}
