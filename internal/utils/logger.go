package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LogFormatConsole renders human-readable log lines.
	LogFormatConsole = "console"
	// LogFormatJSON renders one JSON object per log line.
	LogFormatJSON = "json"
)

// LoggerOptions selects the verbosity and encoding of the application logger.
type LoggerOptions struct {
	Level  string
	Format string
}

// NewApplicationLogger constructs a zap logger configured for human-readable console output.
func NewApplicationLogger() (*zap.Logger, error) {
	return NewLogger(LoggerOptions{Level: "info", Format: LogFormatConsole})
}

// NewLogger constructs a zap logger from the provided options.
func NewLogger(options LoggerOptions) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	levelName := strings.TrimSpace(options.Level)
	if levelName == "" {
		levelName = "info"
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(levelName))); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", options.Level, err)
	}

	config := zap.NewProductionConfig()
	config.Level = level
	config.DisableStacktrace = true
	switch strings.ToLower(strings.TrimSpace(options.Format)) {
	case "", LogFormatConsole:
		config.Encoding = LogFormatConsole
		config.DisableCaller = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.NameKey = ""
		config.EncoderConfig.CallerKey = ""
		config.EncoderConfig.StacktraceKey = ""
	case LogFormatJSON:
		config.Encoding = LogFormatJSON
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unsupported log format %q", options.Format)
	}
	return config.Build()
}
