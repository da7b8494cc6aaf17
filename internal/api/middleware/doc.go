// Package middleware provides the gin middleware in front of the console API.
//
//   - CORS: cross-origin access for the browser console
//   - RateLimit: per-IP token bucket with Retry-After, idle clients evicted after IdleTTL
//   - BodyLimit: request body cap, 413 past the limit
//
// Example Usage:
//
//	router.Use(middleware.CORS(cfg.Server.CORSOrigins...))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
