// Package logging builds the slog loggers used across podscribe.
//
// It owns the console and JSON handlers, level parsing, and the file/stdout
// fan-out, plus a handful of attribute helpers so pipeline stages tag their
// lines with the same keys (component, run_id, chunk). A no-op logger is
// provided for tests and for wiring code that runs before configuration is
// loaded.
package logging
