package tracing

import (
	"github.com/gin-gonic/gin"
)

// Header carries the trace ID in both directions.
const Header = "X-Trace-ID"

const maxInboundTraceID = 128

// Middleware opens a span per request named after the matched route. An
// inbound X-Trace-ID joins the caller's trace; the trace ID is always echoed
// back.
func Middleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if inbound := c.GetHeader(Header); acceptable(inbound) {
			ctx = ContinueTrace(ctx, TraceID(inbound))
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route)
		span.Annotate("path", c.Request.URL.Path)
		span.Annotate("client_ip", c.ClientIP())

		c.Request = c.Request.WithContext(ctx)
		c.Header(Header, string(span.Trace()))

		c.Next()

		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		span.End(c.Writer.Status(), err)
	}
}

// acceptable rejects empty, oversized or non-printable trace IDs so a header
// cannot inject into log lines.
func acceptable(trace string) bool {
	if trace == "" || len(trace) > maxInboundTraceID {
		return false
	}
	for i := 0; i < len(trace); i++ {
		if trace[i] < 0x21 || trace[i] > 0x7e {
			return false
		}
	}
	return true
}
