// Package logger provides a structured logging interface for hoopscraper.
//
// It wraps zerolog with a small interface so packages can take a Logger and
// tests can pass NewTestLogger or NewNopLogger instead.
//
// Console output is human readable unless logging.json is set. When
// logging.file is set, JSON lines are also appended to that file.
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//
//	logger.Info("Run started")
//	logger.WithField("player_id", "2544").Warn("Empty shot chart")
//
// Structured Usage:
//
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.InfoWithFields("Players enumerated", map[string]interface{}{
//	    "count": 512,
//	})
//
// Helpers:
//
// LogRequest, LogFetch, LogProgress and LogStateTransition log the events of
// a run with consistent field names.
package logger
