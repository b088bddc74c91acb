// Package logger builds the process zap logger and the structured fields shared by components.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const service = "interviewer"

// New builds the process logger: console or json encoding, info or debug level.
// Every entry carries the service name so logs from serve and practice can be told apart
// from other processes on the same host.
func New(json bool, debug bool) (*zap.Logger, error) {
	encoding := "console"
	if json {
		encoding = "json"
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	encoder := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            level,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encoder,
		InitialFields:    map[string]any{"service": service},
	}

	return cfg.Build()
}
