// Package logger provides structured logging for kalikit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. Request and invocation
// identifiers stored on a context are picked up by WithContext.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.Get("process")
//	log.Info("tool exited", logger.Fields(logger.FieldTool, "nm", logger.FieldExitCode, 0))
package logger
