package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsMaxAge is how long browsers may cache a preflight answer.
const corsMaxAge = 12 * time.Hour

// CORS lets the browser console call the API from the listed origins. No
// origins, or a "*" among them, admits every origin. Credentials are never
// allowed: the console carries no cookies.
func CORS(origins ...string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AddAllowHeaders("Accept", "Cache-Control", "X-Requested-With", "X-Trace-ID")
	cfg.AddExposeHeaders("X-Trace-ID", "Retry-After")
	cfg.MaxAge = corsMaxAge

	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
