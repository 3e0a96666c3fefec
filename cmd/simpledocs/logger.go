package main

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// newZapLogger builds a zap.Logger writing to stderr, colored console
// output in development and JSON otherwise. Stdout stays free for command
// output and the MCP stdio transport.
func newZapLogger(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// newLogger returns the slog front end used by every package, backed by
// zap. The returned sync func flushes buffered entries.
func newLogger(development bool) (*slog.Logger, func(), error) {
	z, err := newZapLogger(development)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(zapslog.NewHandler(z.Core(), zapslog.WithCaller(development)))
	return logger, func() { _ = z.Sync() }, nil
}
