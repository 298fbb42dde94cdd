package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nws_alerts"

// Metrics holds the Prometheus counters, histograms, and gauges for alert ingestion.
type Metrics struct {
	PollsTotal       *prometheus.CounterVec // labels: status={skipped,success,error}
	AlertsFetched    prometheus.Counter
	AlertOutcomes    *prometheus.CounterVec // labels: outcome={uploaded,skipped,dismissed,error}
	ParentsBackfill  prometheus.Counter
	PollDuration     prometheus.Histogram
	LedgerSize       prometheus.Gauge
	LastPollTime     prometheus.Gauge
	SchedulerRunning prometheus.Gauge

	// Alert source API metrics.
	SourceRequests        *prometheus.CounterVec   // labels: endpoint={active,by_id}, outcome={success,error,not_found}
	SourceRequestDuration *prometheus.HistogramVec // labels: endpoint={active,by_id}

	// Sink publishing metrics.
	SinkPublished     prometheus.Counter
	SinkPublishErrors prometheus.Counter
}

// NewMetrics creates and registers all ingestion metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PollsTotal,
		m.AlertsFetched,
		m.AlertOutcomes,
		m.ParentsBackfill,
		m.PollDuration,
		m.LedgerSize,
		m.LastPollTime,
		m.SchedulerRunning,
		m.SourceRequests,
		m.SourceRequestDuration,
		m.SinkPublished,
		m.SinkPublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll invocations by terminal status.",
		}, []string{"status"}),
		AlertsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fetched_total",
			Help:      "Total alerts returned by the active alerts endpoint.",
		}),
		AlertOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_outcomes_total",
			Help:      "Per-alert processing outcomes.",
		}, []string{"outcome"}),
		ParentsBackfill: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parents_backfilled_total",
			Help:      "Root alerts fetched by identifier and stored to parent a follow-up.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of poll cycles that reached the fetch stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LedgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Identifiers in the dedup ledger after the last persist.",
		}),
		LastPollTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_poll_timestamp_seconds",
			Help:      "Unix time of the last poll that completed the fetch stage.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the poll scheduler is active, 0 when shut down.",
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Alert source API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		SourceRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Alert source API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		SinkPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_published_total",
			Help:      "Alert records published to the sink topic.",
		}),
		SinkPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_publish_errors_total",
			Help:      "Failed sink publish attempts.",
		}),
	}
}
