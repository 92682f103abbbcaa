// Package logger provides structured logging for smokedb using zerolog.
//
// It supports JSON and console output, level configuration, trace-aware
// context loggers and component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("store.badger")
//	log.Info("store opened", logger.Fields(logger.FieldStore, "users"))
package logger
