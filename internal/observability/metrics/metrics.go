package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "agromet_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	cycleRuns     prometheus.Counter
	cycleLatency  prometheus.Histogram
	cycleChecked  prometheus.Counter
	cycleSkipped  *prometheus.CounterVec
	jobsDispatch  prometheus.Counter
	jobResults    *prometheus.CounterVec
	jobLatency    *prometheus.HistogramVec
	ingestRows    *prometheus.CounterVec
	httpExchanges *prometheus.CounterVec
	usageExceeded *prometheus.CounterVec
	usageRecorded prometheus.Counter

	indicatorRuns    *prometheus.CounterVec
	indicatorLatency *prometheus.HistogramVec
)

// Init registers metrics and DB-backed gauges. Safe to call more than
// once; only the first call registers.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		cycleRuns = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_cycles_total",
				Help: "Total dispatch cycles run",
			},
		)
		cycleLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "dispatch_cycle_latency_seconds",
				Help:    "Dispatch cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		cycleChecked = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_links_checked_total",
				Help: "Total point/provider links examined by dispatch cycles",
			},
		)
		cycleSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_links_skipped_total",
				Help: "Total links skipped by dispatch, by reason",
			},
			[]string{"reason"},
		)
		jobsDispatch = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_jobs_total",
				Help: "Total fetch jobs emitted",
			},
		)
		jobResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "job_results_total",
				Help: "Total executed jobs by mode and result",
			},
			[]string{"mode", "result"},
		)
		jobLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_latency_seconds",
				Help:    "Job execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode", "result"},
		)
		ingestRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_total",
				Help: "Total measurement rows inserted by section",
			},
			[]string{"section"},
		)
		httpExchanges = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "provider_http_exchanges_total",
				Help: "Total HTTP exchanges against providers",
			},
			[]string{"provider"},
		)
		usageExceeded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "usage_limit_exceeded_total",
				Help: "Times a credential hit a configured limit, by limit key",
			},
			[]string{"limit"},
		)
		usageRecorded = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "usage_recorded_total",
				Help: "Total recorded credential uses",
			},
		)

		indicatorRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "indicator_runs_total",
				Help: "Total indicator computations by code and result",
			},
			[]string{"code", "result"},
		)
		indicatorLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "indicator_latency_seconds",
				Help:    "Indicator computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "result"},
		)

		prometheus.MustRegister(
			cycleRuns,
			cycleLatency,
			cycleChecked,
			cycleSkipped,
			jobsDispatch,
			jobResults,
			jobLatency,
			ingestRows,
			httpExchanges,
			usageExceeded,
			usageRecorded,
			indicatorRuns,
			indicatorLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveCycle records one dispatch cycle's stats and duration.
func ObserveCycle(checked, skippedLimits, skippedPeriod, dispatched int, duration time.Duration) {
	if cycleRuns != nil {
		cycleRuns.Inc()
	}
	if cycleLatency != nil {
		cycleLatency.Observe(duration.Seconds())
	}
	if cycleChecked != nil {
		cycleChecked.Add(float64(checked))
	}
	if cycleSkipped != nil {
		cycleSkipped.WithLabelValues("limits").Add(float64(skippedLimits))
		cycleSkipped.WithLabelValues("period").Add(float64(skippedPeriod))
	}
	if jobsDispatch != nil {
		jobsDispatch.Add(float64(dispatched))
	}
}

// ObserveJob records one executed job.
func ObserveJob(mode, result string, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if jobResults != nil {
		jobResults.WithLabelValues(mode, result).Inc()
	}
	if jobLatency != nil {
		jobLatency.WithLabelValues(mode, result).Observe(duration.Seconds())
	}
}

// AddIngestRows counts inserted measurement rows for a section.
func AddIngestRows(section string, count int) {
	if count <= 0 {
		return
	}
	if section == "" {
		section = "unknown"
	}
	if ingestRows != nil {
		ingestRows.WithLabelValues(section).Add(float64(count))
	}
}

// IncHTTPExchange counts one HTTP exchange against a provider.
func IncHTTPExchange(provider string) {
	if provider == "" {
		provider = "unknown"
	}
	if httpExchanges != nil {
		httpExchanges.WithLabelValues(provider).Inc()
	}
}

// IncUsageRecorded counts one recorded credential use; exceeded limit
// keys are counted individually.
func IncUsageRecorded(exceeded map[string]bool) {
	if usageRecorded != nil {
		usageRecorded.Inc()
	}
	if usageExceeded == nil {
		return
	}
	for key, hit := range exceeded {
		if hit {
			usageExceeded.WithLabelValues(key).Inc()
		}
	}
}

// ObserveIndicator records one indicator computation.
func ObserveIndicator(code, result string, duration time.Duration) {
	if code == "" {
		code = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if indicatorRuns != nil {
		indicatorRuns.WithLabelValues(code, result).Inc()
	}
	if indicatorLatency != nil {
		indicatorLatency.WithLabelValues(code, result).Observe(duration.Seconds())
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	gauges := []prometheus.GaugeFunc{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "db_open_connections",
				Help: "Open database connections",
			},
			func() float64 { return float64(db.Stats().OpenConnections) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "db_in_use_connections",
				Help: "Database connections currently in use",
			},
			func() float64 { return float64(db.Stats().InUse) },
		),
	}
	for _, gauge := range gauges {
		if err := prometheus.Register(gauge); err != nil && logger != nil {
			logger.Printf("metrics: register db gauge: %v", err)
		}
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
