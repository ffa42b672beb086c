// Package klog wraps zap for the subsystem's structured logging, and
// adapts an arbitrary khost.LogSink into a zapcore.WriteSyncer so the
// surrounding kernel's serial console can double as the logging backend
// (§7 "Logging at the boundary is mandatory for every non-trivial
// failure; logging inside the hot path is discouraged").
package klog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sinkWriter adapts a line-oriented sink (khost.LogSink) to the
// io.Writer-shaped zapcore.WriteSyncer contract zap needs.
type sinkWriter struct {
	write func(line string)
}

func (s sinkWriter) Write(p []byte) (int, error) {
	s.write(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (s sinkWriter) Sync() error { return nil }

// New builds a zap.Logger that writes through write, one log line per
// call, at the given minimum level. Encoding is console-style: this
// subsystem's logs are read by a developer at a serial console, not
// ingested by a log-aggregation pipeline.
func New(write func(line string), level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "" // the host clock, not wall time, is the meaningful timestamp here
	encoder := zapcore.NewConsoleEncoder(cfg)
	core := zapcore.NewCore(encoder, sinkWriter{write: write}, level)
	return zap.New(core)
}

// Nop returns a logger that discards everything, for tests and
// call sites with no configured sink.
func Nop() *zap.Logger { return zap.NewNop() }
