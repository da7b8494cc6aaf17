package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Payload size limits (in bytes)
const (
	MaxJSONSize = 1 << 20 // 1MB - lifecycle and other small bodies
	// MaxToolPayloadSize fits roughly 150MB of audio once base64 encoded.
	MaxToolPayloadSize = 200 << 20
)

// BodyLimit caps the request body. Reads past the limit fail with
// *http.MaxBytesError, which handlers report as 413.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
