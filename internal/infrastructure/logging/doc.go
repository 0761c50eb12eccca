// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Detection runs log through child loggers that carry run_id and url fields,
// so one run can be followed across its phases.
//
// Example Usage:
//
//	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Server starting", zap.String("port", "3333"))
//	runLog := logger.With(zap.String("run_id", runID))
package logging
