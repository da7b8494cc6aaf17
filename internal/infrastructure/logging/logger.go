package logging

import (
	"errors"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the optional log file.
const (
	rotateMaxMegabytes = 50
	rotateMaxBackups   = 5
	rotateMaxAgeDays   = 14
)

// Logger is the process-wide zap logger plus whatever it must flush or close
// on shutdown.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
	file  io.Closer
}

// Config selects level, encoding and an optional rotating file.
type Config struct {
	Level string // debug, info, warn or error
	// Development switches stdout to a coloured console encoder with stack
	// traces on errors.
	Development bool
	// File receives a JSON copy of every entry when set.
	File string
	// Service is stamped on every entry.
	Service string
}

// New builds a Logger. An unknown level is an error rather than a silent
// fallback so a typo in LOG_LEVEL is caught at startup.
func New(cfg Config) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	stdout := zapcore.NewCore(stdoutEncoder(cfg.Development), zapcore.Lock(os.Stdout), level)
	if !cfg.Development {
		// Cap identical lines, e.g. a probe failing every refresh.
		stdout = zapcore.NewSamplerWithOptions(stdout, time.Second, 100, 10)
	}
	cores := []zapcore.Core{stdout}

	var file io.Closer
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    rotateMaxMegabytes,
			MaxBackups: rotateMaxBackups,
			MaxAge:     rotateMaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonKeys()), zapcore.AddSync(rotator), level))
		file = rotator
	}

	opts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.Service)))
	}

	return &Logger{
		Logger: zap.New(zapcore.NewTee(cores...), opts...),
		level:  level,
		file:   file,
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// Level reports the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the minimum level of every output at runtime.
func (l *Logger) SetLevel(level string) error {
	return l.level.UnmarshalText([]byte(level))
}

// Close flushes buffered entries and releases the log file.
func (l *Logger) Close() error {
	err := l.Sync()
	// stdout on a terminal or pipe rejects fsync; that is not a failure.
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		err = nil
	}
	if l.file != nil {
		err = errors.Join(err, l.file.Close())
	}
	return err
}

func stdoutEncoder(development bool) zapcore.Encoder {
	if !development {
		return zapcore.NewJSONEncoder(jsonKeys())
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func jsonKeys() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return cfg
}
