package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aistack/controlpanel/internal/api/middleware"
	"github.com/aistack/controlpanel/internal/domain/directory"
	"github.com/aistack/controlpanel/internal/domain/lifecycle"
	"github.com/aistack/controlpanel/internal/domain/status"
	"github.com/aistack/controlpanel/internal/domain/telemetry"
	"github.com/aistack/controlpanel/internal/domain/tools"
	"github.com/aistack/controlpanel/internal/infrastructure/resilience"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusSource aggregates the runtime state of every stack.
type StatusSource interface {
	Aggregate(ctx context.Context) status.Aggregated
}

// TelemetrySource reads accelerator and host readings.
type TelemetrySource interface {
	GPU(ctx context.Context) telemetry.GPU
	Host(ctx context.Context) telemetry.Host
}

// Lifecycle starts, stops and restarts backends.
type Lifecycle interface {
	ApplyService(ctx context.Context, action lifecycle.Action, serviceID string) (lifecycle.Result, error)
	ApplyStack(ctx context.Context, action lifecycle.Action, stackID string) (map[string]lifecycle.Result, error)
}

// LogSource fetches container logs.
type LogSource interface {
	Logs(ctx context.Context, container string, lines int) (string, error)
}

// ToolCaller runs tool calls.
type ToolCaller interface {
	Call(ctx context.Context, tool string, rawArgs []byte) (tools.Output, error)
}

// Breaker reports the circuit state of one upstream client.
type Breaker interface {
	Name() string
	BreakerState() resilience.State
}

// Info identifies the running console.
type Info struct {
	Service string
	Version string
}

// Deps collects everything the handlers serve from.
type Deps struct {
	Info      Info
	Directory *directory.Directory
	Status    StatusSource
	Telemetry TelemetrySource
	Lifecycle Lifecycle
	Logs      LogSource
	Tools     ToolCaller
	MCP       MCPSettings
	Breakers  []Breaker
	Logger    *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	info      Info
	dir       *directory.Directory
	status    StatusSource
	telemetry TelemetrySource
	lifecycle Lifecycle
	logs      LogSource
	tools     ToolCaller
	mcp       MCPSettings
	breakers  []Breaker
	logger    *zap.Logger
	started   time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		info:      deps.Info,
		dir:       deps.Directory,
		status:    deps.Status,
		telemetry: deps.Telemetry,
		lifecycle: deps.Lifecycle,
		logs:      deps.Logs,
		tools:     deps.Tools,
		mcp:       deps.MCP,
		breakers:  deps.Breakers,
		logger:    logger,
		started:   time.Now(),
	}
}

// Register mounts every route on the router.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/directory", h.Directory)
	api.GET("/status", h.Status)
	api.GET("/gpu", h.GPU)
	api.POST("/service/:id", middleware.BodyLimit(middleware.MaxJSONSize), h.ServiceAction)
	api.POST("/stack/:id", middleware.BodyLimit(middleware.MaxJSONSize), h.StackAction)
	api.GET("/logs/:id", h.Logs)
	api.GET("/tools", h.ListTools)
	api.POST("/tools/:name", middleware.BodyLimit(middleware.MaxToolPayloadSize), h.CallTool)
	api.GET("/mcp", h.MCP)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": h.info.Service,
		"version": h.info.Version,
	})
}

// Health reports liveness together with the upstream circuit states
func (h *Handlers) Health(c *gin.Context) {
	breakers := make(map[string]string, len(h.breakers))
	for _, b := range h.breakers {
		breakers[b.Name()] = b.BreakerState().String()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"stacks":   len(h.dir.Stacks()),
		"services": len(h.dir.ServiceIDs()),
		"breakers": breakers,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}

// Directory lists the configured stacks and their services
func (h *Handlers) Directory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stacks": h.dir.Stacks()})
}
