// Package log provides structured logging utilities for lunamint services.
// It wraps the standard library's slog package with additional convenience methods.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger with the specified configuration
func New(service, version, level, format string) *Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithBill returns a logger with bill-specific fields
func (l *Logger) WithBill(serial string, denomination uint64) *Logger {
	return l.WithFields("bill_serial", serial, "denomination", denomination)
}

// WithOwner returns a logger with an owner address field
func (l *Logger) WithOwner(address string) *Logger {
	return l.WithFields("user_address", address)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// Mining-specific logging helpers

// LogMiningProgress logs periodic progress of a nonce search
func (l *Logger) LogMiningProgress(kind string, attempts uint64, hashrate float64) {
	l.Info("mining progress",
		"kind", kind,
		"attempts", attempts,
		"hashrate_hs", hashrate,
	)
}

// LogBillMined logs a successful bill mining round
func (l *Logger) LogBillMined(serial string, denomination uint64, difficulty uint32, nonce uint64, miningTime float64) {
	l.Info("bill mined",
		"bill_serial", serial,
		"denomination", denomination,
		"difficulty", difficulty,
		"nonce", nonce,
		"mining_time_s", miningTime,
	)
}

// LogVerification logs the outcome of a bill verification
func (l *Logger) LogVerification(serial string, valid bool, method string) {
	l.Info("bill verification",
		"bill_serial", serial,
		"valid", valid,
		"method", method,
	)
}
