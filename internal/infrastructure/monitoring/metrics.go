package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. All recording methods are safe to
// call on a nil *Metrics so components can run without instrumentation.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	// Orchestration metrics
	ProbeResults     *prometheus.CounterVec
	LifecycleActions *prometheus.CounterVec

	// Pipeline metrics
	PipelineRuns     *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	// BreakerOpen is 1 while an upstream's circuit is open, 0.5 half-open
	BreakerOpen *prometheus.GaugeVec

	// Telemetry
	VRAMPercent prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates a new metrics collector registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlpanel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "controlpanel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"method", "path"},
		),

		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "controlpanel_http_requests_in_flight",
				Help: "Requests currently being served",
			},
		),

		ProbeResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlpanel_probe_results_total",
				Help: "Backend status probes by resulting runtime state",
			},
			[]string{"service", "state"},
		),
		LifecycleActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlpanel_lifecycle_actions_total",
				Help: "Lifecycle commands issued by action and outcome",
			},
			[]string{"service", "action", "outcome"},
		),

		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlpanel_pipeline_runs_total",
				Help: "Transcription pipeline runs by final stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "controlpanel_upstream_duration_seconds",
				Help:    "Outbound call duration to transcription and LLM backends",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"upstream", "operation"},
		),

		BreakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "controlpanel_upstream_breaker_open",
				Help: "Circuit state per upstream: 0 closed, 0.5 half-open, 1 open",
			},
			[]string{"upstream"},
		),

		VRAMPercent: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "controlpanel_gpu_vram_percent",
				Help: "Last observed GPU VRAM utilization percentage",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "controlpanel_uptime_seconds",
			Help: "Control plane uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProbe records the runtime state a probe resolved to
func (m *Metrics) RecordProbe(service, state string) {
	if m == nil {
		return
	}
	m.ProbeResults.WithLabelValues(service, state).Inc()
}

// RecordLifecycle records one lifecycle command
func (m *Metrics) RecordLifecycle(service, action string, success bool) {
	if m == nil {
		return
	}
	m.LifecycleActions.WithLabelValues(service, action, outcome(success)).Inc()
}

// RecordPipeline records how far a pipeline run got
func (m *Metrics) RecordPipeline(stage string, success bool) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(stage, outcome(success)).Inc()
}

// ObserveUpstream records the duration of one outbound call
func (m *Metrics) ObserveUpstream(upstream, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(upstream, operation).Observe(duration.Seconds())
}

// SetBreakerOpen records an upstream circuit's openness
func (m *Metrics) SetBreakerOpen(upstream string, openness float64) {
	if m == nil {
		return
	}
	m.BreakerOpen.WithLabelValues(upstream).Set(openness)
}

// SetVRAMPercent records the last VRAM reading
func (m *Metrics) SetVRAMPercent(percent float64) {
	if m == nil {
		return
	}
	m.VRAMPercent.Set(percent)
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
