// Package metrics exposes Prometheus collectors for inference runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/geoinfer/internal/model"
)

// Metric names
const (
	MetricInferences     = "geoinfer_inferences_total"
	MetricInferenceError = "geoinfer_inference_errors_total"
	MetricStageDuration  = "geoinfer_stage_duration_seconds"
	MetricEventCache     = "geoinfer_event_cache_lookups_total"
	MetricLLMFallback    = "geoinfer_llm_fallback_total"
)

// Stage names used as the stage label
const (
	StageHeuristics   = "heuristics"
	StageGazetteer    = "gazetteer"
	StageNLP          = "nlp"
	StageJurisdiction = "jurisdiction"
	StageEvent        = "event"
	StageSemantic     = "semantic"
	StageLLM          = "llm"
	StageGeocode      = "geocode"
	StageTotal        = "total"
)

// Metrics holds the inference collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	inferences     *prometheus.CounterVec
	inferenceError prometheus.Counter
	stageDuration  *prometheus.HistogramVec
	eventCache     *prometheus.CounterVec
	llmFallback    *prometheus.CounterVec
}

// New creates the collectors without registering them
func New() *Metrics {
	return &Metrics{
		inferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricInferences,
			Help: "Completed inferences by geo type",
		}, []string{"geo_type"}),
		inferenceError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricInferenceError,
			Help: "Inferences rejected or failed",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricStageDuration,
			Help:    "Time spent per inference stage in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		eventCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEventCache,
			Help: "Event venue cache lookups by result",
		}, []string{"result"}),
		llmFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLLMFallback,
			Help: "LLM fallback calls by outcome",
		}, []string{"outcome"}),
	}
}

// Register registers all collectors with reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the metrics gathered by reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Collectors returns every collector
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.inferences,
		m.inferenceError,
		m.stageDuration,
		m.eventCache,
		m.llmFallback,
	}
}

// ObserveInference counts one finished inference
func (m *Metrics) ObserveInference(geo model.GeoType) {
	if m == nil {
		return
	}
	m.inferences.WithLabelValues(string(geo)).Inc()
}

// IncInferenceError counts one failed inference
func (m *Metrics) IncInferenceError() {
	if m == nil {
		return
	}
	m.inferenceError.Inc()
}

// ObserveStage records how long a stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveEventCache counts an event venue cache hit or miss
func (m *Metrics) ObserveEventCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.eventCache.WithLabelValues(result).Inc()
}

// ObserveLLMFallback counts an LLM fallback call; outcome is ok, error or empty
func (m *Metrics) ObserveLLMFallback(outcome string) {
	if m == nil {
		return
	}
	m.llmFallback.WithLabelValues(outcome).Inc()
}
