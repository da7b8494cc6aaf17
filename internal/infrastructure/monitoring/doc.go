/*
Package monitoring provides Prometheus metrics for the control plane.

# Metrics

- HTTP request counts and latency per route template, requests in flight
- Probe outcomes per service and runtime state
- Lifecycle commands per service, action and outcome
- Transcription pipeline runs per final stage
- Upstream (docker, whisper, ollama) call latency and circuit breaker state
- Last observed GPU VRAM percentage and process uptime

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	defer metrics.TimeUpstream("whisper", "transcribe")()
*/
package monitoring
