// Package logger builds configured log/slog loggers for the mailroom
// services.
//
// It provides JSON output for production and text output for development,
// static service attributes, and a handler decorator that injects
// context-derived attributes (such as a batch job run id) into every record.
//
// Typical startup wiring:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "mailroom"))
//	logger.SetAsDefault(log)
package logger
