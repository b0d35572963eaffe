package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// correlation analysis service.
type Metrics struct {
	AnalysesTotal  prometheus.Counter
	AnalysisErrors prometheus.Counter
	AnalyzerReady  prometheus.Gauge

	AnalysisDuration prometheus.Histogram
	RenderDuration   prometheus.Histogram

	DatasetRows    prometheus.Gauge
	NumericColumns prometheus.Gauge

	// Serve-mode metrics.
	FileReloads      prometheus.Counter
	ResultsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
	PublishEnabled   prometheus.Gauge
}

// NewMetrics creates and registers all analysis metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqi_corr",
			Name:      "analyses_total",
			Help:      "Total completed correlation analyses.",
		}),
		AnalysisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqi_corr",
			Name:      "analysis_errors_total",
			Help:      "Total failed correlation analyses.",
		}),
		AnalyzerReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqi_corr",
			Name:      "analyzer_ready",
			Help:      "1 once a correlation result is available, 0 before.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aqi_corr",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete load-project-correlate-render cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aqi_corr",
			Name:      "render_duration_seconds",
			Help:      "Duration of heatmap rendering and encoding.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqi_corr",
			Name:      "dataset_rows",
			Help:      "Row count of the most recently analyzed dataset.",
		}),
		NumericColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqi_corr",
			Name:      "numeric_columns",
			Help:      "Numeric column count of the most recently analyzed dataset.",
		}),
		FileReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqi_corr",
			Name:      "file_reloads_total",
			Help:      "Total re-analyses triggered by input file changes.",
		}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqi_corr",
			Name:      "results_published_total",
			Help:      "Total analysis results published to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aqi_corr",
			Name:      "publish_errors_total",
			Help:      "Total failed Kafka publications.",
		}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aqi_corr",
			Name:      "publish_enabled",
			Help:      "1 when result publishing is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.AnalysesTotal,
		m.AnalysisErrors,
		m.AnalyzerReady,
		m.AnalysisDuration,
		m.RenderDuration,
		m.DatasetRows,
		m.NumericColumns,
		m.FileReloads,
		m.ResultsPublished,
		m.PublishErrors,
		m.PublishEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AnalysesTotal:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqi_corr", Name: "analyses_total"}),
		AnalysisErrors:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqi_corr", Name: "analysis_errors_total"}),
		AnalyzerReady:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aqi_corr", Name: "analyzer_ready"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "aqi_corr", Name: "analysis_duration_seconds"}),
		RenderDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "aqi_corr", Name: "render_duration_seconds"}),
		DatasetRows:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aqi_corr", Name: "dataset_rows"}),
		NumericColumns:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aqi_corr", Name: "numeric_columns"}),
		FileReloads:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqi_corr", Name: "file_reloads_total"}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqi_corr", Name: "results_published_total"}),
		PublishErrors:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aqi_corr", Name: "publish_errors_total"}),
		PublishEnabled:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aqi_corr", Name: "publish_enabled"}),
	}
}
