package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration. It is read once at startup
// and never mutated afterwards.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Stack      StackConfig
	Whisper    WhisperConfig
	Ollama     OllamaConfig
	Punctuator PunctuatorConfig
	MCP        MCPConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// MaxConnections caps concurrently accepted connections; 0 disables the cap.
	MaxConnections int `envconfig:"MAX_CONNECTIONS" default:"256"`
	// CORSOrigins lists origins the browser console may be served from.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	File        string `envconfig:"LOG_FILE"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// StackConfig locates the compose project and the container engine.
type StackConfig struct {
	ComposeFile   string        `envconfig:"COMPOSE_FILE" default:"docker-compose.yml"`
	DockerSocket  string        `envconfig:"DOCKER_SOCKET" default:"/var/run/docker.sock"`
	DirectoryFile string        `envconfig:"DIRECTORY_FILE"`
	ProbeTimeout  time.Duration `envconfig:"PROBE_TIMEOUT" default:"10s"`
}

// WhisperConfig holds the transcription backend configuration.
type WhisperConfig struct {
	URL           string        `envconfig:"WHISPER_URL" default:"http://localhost:9000"`
	FinetuneModel string        `envconfig:"WHISPER_FINETUNE_MODEL"`
	Timeout       time.Duration `envconfig:"TRANSCRIBE_TIMEOUT" default:"300s"`
	HealthTimeout time.Duration `envconfig:"HEALTH_TIMEOUT" default:"10s"`
	StandardLabel string        `envconfig:"WHISPER_STANDARD_LABEL" default:"large-v3-turbo"`
}

// OllamaConfig holds the LLM backend configuration used for cleanup.
type OllamaConfig struct {
	URL     string        `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	Model   string        `envconfig:"OLLAMA_MODEL" default:"llama3.2"`
	Timeout time.Duration `envconfig:"CLEANUP_TIMEOUT" default:"120s"`
}

// PunctuatorConfig enables the optional punctuation restoration stage.
// An empty model leaves the stage unavailable.
type PunctuatorConfig struct {
	Model string `envconfig:"PUNCTUATION_MODEL"`
}

// MCPConfig describes how tool-call clients launch the stdio tool server.
// It only feeds the configuration snippets served by the console.
type MCPConfig struct {
	Name    string   `envconfig:"MCP_NAME" default:"local-ai"`
	Command string   `envconfig:"MCP_COMMAND" default:"python"`
	Args    []string `envconfig:"MCP_ARGS" default:"-m,local_ai_mcp.server"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8090",
			Host:           "0.0.0.0",
			MaxConnections: 256,
			CORSOrigins:    []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Stack: StackConfig{
			ComposeFile:  "docker-compose.yml",
			DockerSocket: "/var/run/docker.sock",
			ProbeTimeout: 10 * time.Second,
		},
		Whisper: WhisperConfig{
			URL:           "http://localhost:9000",
			Timeout:       300 * time.Second,
			HealthTimeout: 10 * time.Second,
			StandardLabel: "large-v3-turbo",
		},
		Ollama: OllamaConfig{
			URL:     "http://localhost:11434",
			Model:   "llama3.2",
			Timeout: 120 * time.Second,
		},
		MCP: MCPConfig{
			Name:    "local-ai",
			Command: "python",
			Args:    []string{"-m", "local_ai_mcp.server"},
		},
	}
}
