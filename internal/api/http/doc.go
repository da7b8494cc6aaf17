// Package http serves the console's REST API with gin.
//
// Endpoints:
//   - Banner and liveness: / and /health
//   - Directory: /api/directory
//   - Status: /api/status, /api/gpu
//   - Lifecycle: POST /api/service/:id, POST /api/stack/:id
//   - Logs: /api/logs/:id?lines=N
//   - Tools: /api/tools, POST /api/tools/:name, /api/mcp
//
// Every error response is {"error": "<message>"}; domain errors are mapped
// onto status codes with errors.Is.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Directory: dir, Status: aggregator, ...})
//	handlers.Register(router)
package http
