// Package metrics exposes Prometheus metrics for the fetch loop.
//
// Metrics:
//   - hoopscraper_subjects{dataset} (Gauge): players selected for the run
//   - hoopscraper_fetches_total{dataset, outcome} (Counter): players finished, by success, failure or resumed
//   - hoopscraper_rows_total{dataset} (Counter): rows fetched
//   - hoopscraper_fetch_attempts_total{dataset} (Counter): API calls made, retries included
//   - hoopscraper_fetch_duration_seconds{dataset} (Histogram): time per player, retries and pacing included
//   - hoopscraper_fetch_errors_total{dataset, type} (Counter): failed players by transport error type
//
// Example Prometheus queries:
//
//	# completion ratio
//	sum(hoopscraper_fetches_total) / sum(hoopscraper_subjects)
//
//	# retry overhead
//	sum(hoopscraper_fetch_attempts_total) / sum(hoopscraper_fetches_total{outcome!="resumed"})
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/fetcher"
	"hoopscraper/pkg/logger"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeResumed = "resumed"
)

// Metrics holds the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	subjects *prometheus.GaugeVec
	fetches  *prometheus.CounterVec
	rows     *prometheus.CounterVec
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		subjects: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hoopscraper_subjects",
			Help: "Players selected for the current run",
		}, []string{"dataset"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopscraper_fetches_total",
			Help: "Players finished by outcome",
		}, []string{"dataset", "outcome"}),
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopscraper_rows_total",
			Help: "Rows fetched",
		}, []string{"dataset"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopscraper_fetch_attempts_total",
			Help: "Stats API calls made, retries included",
		}, []string{"dataset"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hoopscraper_fetch_duration_seconds",
			Help:    "Time spent per player, retries and pacing included",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"dataset"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopscraper_fetch_errors_total",
			Help: "Failed players by transport error type",
		}, []string{"dataset", "type"}),
	}
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetSubjects records how many players the run will fetch
func (m *Metrics) SetSubjects(dataset string, n int) {
	m.subjects.WithLabelValues(dataset).Set(float64(n))
}

// Observer returns a fetcher.Observer that records progress for dataset
func (m *Metrics) Observer(dataset string) fetcher.Observer {
	return func(p fetcher.Progress) {
		switch {
		case p.Resumed:
			m.fetches.WithLabelValues(dataset, OutcomeResumed).Inc()
			m.rows.WithLabelValues(dataset).Add(float64(p.Rows))
			return
		case p.Err != nil:
			m.fetches.WithLabelValues(dataset, OutcomeFailure).Inc()
			m.errors.WithLabelValues(dataset, string(errs.TypeOf(p.Err))).Inc()
		default:
			m.fetches.WithLabelValues(dataset, OutcomeSuccess).Inc()
			m.rows.WithLabelValues(dataset).Add(float64(p.Rows))
		}
		m.attempts.WithLabelValues(dataset).Add(float64(p.Attempts))
		m.duration.WithLabelValues(dataset).Observe(p.Duration.Seconds())
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoWithFields("Metrics server listening", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
