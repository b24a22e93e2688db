// Package logging builds the zap logger shared by the client and chatd.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zhouzirui/z-chat/internal/config"
)

// New returns a logger for cfg. With a file configured, entries go to a
// rotating JSON file only, so the terminal UI is never written over.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // Megabytes
			MaxBackups: 5,
			MaxAge:     30, // Days
			Compress:   true,
		}

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
		return zap.New(core, zap.AddCaller()), nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level)
	return zap.New(core), nil
}

// NewInteractive is New for the full-screen chat interface: stderr belongs to
// the UI there, so without a log file nothing is logged.
func NewInteractive(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.File == "" {
		if _, err := New(cfg); err != nil {
			return nil, err
		}
		return zap.NewNop(), nil
	}
	return New(cfg)
}
