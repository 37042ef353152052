package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder publishes pipeline counters on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	requests           *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	intentParse        *prometheus.CounterVec
	specGen            *prometheus.CounterVec
	specGenLatency     prometheus.Histogram
	validationFailures *prometheus.CounterVec
	qualityErrors      *prometheus.CounterVec
	transforms         *prometheus.CounterVec
	lastRows           prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viz_requests_total",
			Help: "Chart requests by final status.",
		}, []string{"status"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "viz_request_latency_seconds",
			Help:    "End-to-end chart request latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
		}),
		intentParse: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viz_intent_parse_total",
			Help: "Intent parse outcomes.",
		}, []string{"result"}),
		specGen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viz_spec_gen_total",
			Help: "Spec generation calls by outcome.",
		}, []string{"result"}),
		specGenLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "viz_spec_gen_latency_seconds",
			Help:    "Spec generation call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viz_spec_validation_failures_total",
			Help: "Validator errors by code.",
		}, []string{"reason"}),
		qualityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viz_data_quality_errors_total",
			Help: "Data quality failures by kind.",
		}, []string{"type"}),
		transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viz_transforms_applied_total",
			Help: "Applied transforms by op.",
		}, []string{"op"}),
		lastRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "viz_last_data_rows",
			Help: "Row count of the most recently checked table.",
		}),
	}
	r.registry.MustRegister(
		r.requests, r.requestLatency, r.intentParse, r.specGen, r.specGenLatency,
		r.validationFailures, r.qualityErrors, r.transforms, r.lastRows,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveRequest(status string, d time.Duration) {
	r.requests.WithLabelValues(status).Inc()
	r.requestLatency.Observe(d.Seconds())
}

func (r *Recorder) IntentParse(result string) {
	r.intentParse.WithLabelValues(result).Inc()
}

func (r *Recorder) SpecGeneration(result string, d time.Duration) {
	r.specGen.WithLabelValues(result).Inc()
	r.specGenLatency.Observe(d.Seconds())
}

func (r *Recorder) ValidationFailure(reason string) {
	r.validationFailures.WithLabelValues(reason).Inc()
}

func (r *Recorder) DataQualityError(kind string) {
	r.qualityErrors.WithLabelValues(kind).Inc()
}

func (r *Recorder) TransformApplied(op string) {
	r.transforms.WithLabelValues(op).Inc()
}

func (r *Recorder) DataRows(n int) {
	r.lastRows.Set(float64(n))
}
