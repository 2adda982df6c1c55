// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports console output for
// interactive CLI runs and JSON output for scheduled export jobs.
//
// Engine packages receive a *zap.Logger through their options and fall back
// to a no-op logger (see OrNop) so they stay quiet in tests.
//
// # Configuration
//
//   - Level: debug, info, warn, error
//   - Format: json or console
//
// # Usage
//
//	log, _ := logger.New(&cfg.Log)
//	log.Info("Export started", zap.String("label", label.String()))
//
//	// In a request handler:
//	l := logger.WithRayID(log, c)
//	l.Error("Handler failed", zap.Error(err))
package logger
