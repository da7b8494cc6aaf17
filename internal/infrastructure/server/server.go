package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	api "github.com/aistack/controlpanel/internal/api/http"
	"github.com/aistack/controlpanel/internal/api/middleware"
	"github.com/aistack/controlpanel/internal/domain/directory"
	"github.com/aistack/controlpanel/internal/domain/lifecycle"
	"github.com/aistack/controlpanel/internal/domain/status"
	"github.com/aistack/controlpanel/internal/domain/telemetry"
	"github.com/aistack/controlpanel/internal/domain/tools"
	"github.com/aistack/controlpanel/internal/domain/transcription"
	"github.com/aistack/controlpanel/internal/infrastructure/config"
	"github.com/aistack/controlpanel/internal/infrastructure/logging"
	"github.com/aistack/controlpanel/internal/infrastructure/monitoring"
	"github.com/aistack/controlpanel/internal/infrastructure/tracing"
	"github.com/aistack/controlpanel/internal/providers/docker"
	"github.com/aistack/controlpanel/internal/providers/ollama"
	"github.com/aistack/controlpanel/internal/providers/whisper"
	"github.com/aistack/controlpanel/internal/shared/process"
)

const (
	serviceName = "local-ai-control-panel"
	version     = "0.3.0"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	tracer     *tracing.Tracer
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		Service:     serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing control panel",
		zap.String("port", cfg.Server.Port),
		zap.String("compose_file", cfg.Stack.ComposeFile),
		zap.String("whisper_url", cfg.Whisper.URL),
		zap.String("ollama_url", cfg.Ollama.URL),
	)

	dir, err := loadDirectory(cfg.Stack.DirectoryFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Service directory loaded",
		zap.Int("stacks", len(dir.Stacks())),
		zap.Strings("services", dir.ServiceIDs()),
	)

	// Metrics first; every component below records into them
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	tracer := tracing.New(logger.Logger)

	runner := process.ExecRunner{}

	dockerClient := docker.New(cfg.Stack.DockerSocket, cfg.Stack.ProbeTimeout)
	dockerClient.HTTP().WithMetrics(metrics)

	aggregator := status.NewAggregator(dir, dockerClient, logger.Logger).
		WithMetrics(metrics).
		WithTimeout(cfg.Stack.ProbeTimeout)
	reader := telemetry.NewReader(runner, logger.Logger, telemetry.WithMetrics(metrics))
	controller := lifecycle.NewController(dir, runner, cfg.Stack.ComposeFile, logger.Logger).
		WithMetrics(metrics)

	whisperClient := whisper.New(whisper.Options{
		BaseURL:       cfg.Whisper.URL,
		Timeout:       cfg.Whisper.Timeout,
		HealthTimeout: cfg.Whisper.HealthTimeout,
	})
	whisperClient.HTTP().WithMetrics(metrics)
	ollamaClient := ollama.New(ollama.Options{BaseURL: cfg.Ollama.URL, Timeout: cfg.Ollama.Timeout})
	ollamaClient.HTTP().WithMetrics(metrics)

	pipeline := transcription.NewPipeline(transcription.Config{
		FinetuneModel: cfg.Whisper.FinetuneModel,
		StandardModel: cfg.Whisper.StandardLabel,
		CleanupModel:  cfg.Ollama.Model,
	}, whisperClient, ollamaClient, logger.Logger).WithMetrics(metrics)
	if cfg.Punctuator.Model != "" {
		pipeline.WithPunctuator(ollama.NewPunctuator(ollamaClient, cfg.Punctuator.Model))
		logger.Info("Local punctuation restoration enabled", zap.String("model", cfg.Punctuator.Model))
	}
	dispatcher := tools.NewDispatcher(pipeline, logger.Logger)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.Middleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := api.NewHandlers(api.Deps{
		Info:      api.Info{Service: serviceName, Version: version},
		Directory: dir,
		Status:    aggregator,
		Telemetry: reader,
		Lifecycle: controller,
		Logs:      dockerClient,
		Tools:     dispatcher,
		MCP:       mcpSettings(cfg),
		Breakers:  []api.Breaker{dockerClient.HTTP(), whisperClient.HTTP(), ollamaClient.HTTP()},
		Logger:    logger.Logger,
	})
	handlers.Register(router)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           gzhttp.GzipHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
		// The slowest request is a cleaned transcription: upload, optional
		// punctuation pass, then the cleanup completion.
		WriteTimeout: cfg.Whisper.Timeout + 2*cfg.Ollama.Timeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router:     router,
		httpServer: httpServer,
		tracer:     tracer,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}, nil
}

func loadDirectory(path string) (*directory.Directory, error) {
	if path == "" {
		return directory.Default(), nil
	}
	dir, err := directory.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load service directory: %w", err)
	}
	return dir, nil
}

func mcpSettings(cfg *config.Config) api.MCPSettings {
	env := map[string]string{
		"WHISPER_URL":  cfg.Whisper.URL,
		"OLLAMA_URL":   cfg.Ollama.URL,
		"OLLAMA_MODEL": cfg.Ollama.Model,
	}
	if cfg.Whisper.FinetuneModel != "" {
		env["WHISPER_FINETUNE_MODEL"] = cfg.Whisper.FinetuneModel
	}
	return api.MCPSettings{
		Name:    cfg.MCP.Name,
		Command: cfg.MCP.Command,
		Args:    cfg.MCP.Args,
		Env:     env,
	}
}

// Handler exposes the full handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run starts the HTTP server and blocks until it stops. A server stopped by
// Shutdown returns nil.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	if limit := s.config.Server.MaxConnections; limit > 0 {
		ln = netutil.LimitListener(ln, limit)
	}

	s.logger.Info("Starting HTTP server",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", s.config.Server.MaxConnections),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then flushes spans and logs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Failed to drain HTTP server", zap.Error(err))
		err = fmt.Errorf("failed to shut down http server: %w", err)
	}

	s.tracer.Close()
	_ = s.logger.Close()
	return err
}
