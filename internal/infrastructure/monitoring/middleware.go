package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware counts and times every request by route template, so
// /api/logs/whisper and /api/logs/ollama share one series.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		metrics.InFlight.Inc()
		defer metrics.InFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// TimeUpstream starts timing one outbound call; invoke the returned func when
// the call returns.
//
//	defer metrics.TimeUpstream("whisper", "transcribe")()
func (m *Metrics) TimeUpstream(upstream, operation string) func() {
	start := time.Now()
	return func() {
		m.ObserveUpstream(upstream, operation, time.Since(start))
	}
}
