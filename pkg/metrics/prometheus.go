package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	tableBuilds   *prometheus.CounterVec
	buildLatency  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	ingested      *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	datasetPoints *prometheus.GaugeVec
}

// New creates a recorder registered on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		tableBuilds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volmon_table_builds_total",
				Help: "Total number of analytics table builds by result",
			},
			[]string{"result"},
		),
		buildLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volmon_table_build_seconds",
				Help:    "Duration of analytics table builds in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"result"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volmon_table_cache_lookups_total",
				Help: "Table cache lookups by layer and outcome",
			},
			[]string{"layer", "outcome"},
		),
		ingested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volmon_points_ingested_total",
				Help: "Market data points ingested by kind",
			},
			[]string{"kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volmon_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		datasetPoints: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "volmon_dataset_points",
				Help: "Points in the currently loaded dataset by kind",
			},
			[]string{"kind"},
		),
	}
}

func (r *Recorder) RecordTableBuild(result string, seconds float64) {
	r.tableBuilds.WithLabelValues(result).Inc()
	r.buildLatency.WithLabelValues(result).Observe(seconds)
}

func (r *Recorder) RecordCacheHit(layer string) {
	r.cacheLookups.WithLabelValues(layer, "hit").Inc()
}

func (r *Recorder) RecordCacheMiss(layer string) {
	r.cacheLookups.WithLabelValues(layer, "miss").Inc()
}

func (r *Recorder) RecordIngested(kind string, n int) {
	r.ingested.WithLabelValues(kind).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordDatasetLoad(vols, rates int) {
	r.datasetPoints.WithLabelValues("vol").Set(float64(vols))
	r.datasetPoints.WithLabelValues("rate").Set(float64(rates))
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordTableBuild(string, float64) {}
func (Nop) RecordCacheHit(string)            {}
func (Nop) RecordCacheMiss(string)           {}
func (Nop) RecordIngested(string, int)       {}
func (Nop) RecordError(string)               {}
func (Nop) RecordDatasetLoad(int, int)       {}
