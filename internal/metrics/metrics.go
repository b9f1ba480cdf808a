// Package metrics holds the Prometheus instruments for fredsync runs and
// writes them to a node_exporter textfile. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fredsync"

// Metrics holds the instruments for one process.
type Metrics struct {
	registry *prometheus.Registry

	seriesTotal   *prometheus.CounterVec
	attemptsTotal prometheus.Counter
	requestsTotal *prometheus.CounterVec
	runDuration   prometheus.Gauge
	lastSuccess   prometheus.Gauge
	runsTotal     *prometheus.CounterVec

	nowFunc func() time.Time
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		seriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_total",
			Help:      "Series processed, by outcome (create, update, skip, abandon).",
		}, []string{"action"}),
		attemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_attempts_total",
			Help:      "Per-series sync attempts, including retries.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "FRED API requests by endpoint and HTTP status (0 for transport errors).",
		}, []string{"endpoint", "status"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the most recent sync run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the most recent successful sync run.",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by result (success, failure).",
		}, []string{"result"}),
		nowFunc: time.Now,
	}

	m.registry.MustRegister(
		m.seriesTotal,
		m.attemptsTotal,
		m.requestsTotal,
		m.runDuration,
		m.lastSuccess,
		m.runsTotal,
	)

	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// ObserveDecision counts a successfully processed series by action.
func (m *Metrics) ObserveDecision(action string) {
	if m == nil {
		return
	}

	m.seriesTotal.WithLabelValues(action).Inc()
}

// ObserveAttempt counts one per-series attempt.
func (m *Metrics) ObserveAttempt() {
	if m == nil {
		return
	}

	m.attemptsTotal.Inc()
}

// ObserveAbandoned counts a series that was given up on.
func (m *Metrics) ObserveAbandoned() {
	if m == nil {
		return
	}

	m.seriesTotal.WithLabelValues("abandon").Inc()
}

// ObserveRun records the outcome of a finished run.
func (m *Metrics) ObserveRun(duration time.Duration, failed bool) {
	if m == nil {
		return
	}

	m.runDuration.Set(duration.Seconds())

	if failed {
		m.runsTotal.WithLabelValues("failure").Inc()
		return
	}

	m.runsTotal.WithLabelValues("success").Inc()
	m.lastSuccess.Set(float64(m.nowFunc().Unix()))
}

// ObserveRequest counts one API request. Satisfies fred.RequestObserver.
func (m *Metrics) ObserveRequest(endpoint string, status int) {
	if m == nil {
		return
	}

	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// WriteTextfile atomically writes all metrics in the Prometheus text
// format to path. A nil receiver or empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: writing textfile %s: %w", path, err)
	}

	return nil
}
