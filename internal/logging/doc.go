// Package logging assembles structured slog loggers and formatting helpers used
// across longrec.
//
// It owns the console and JSON handlers, centralizes level and output plumbing
// (including per-component level overrides), and exposes context-aware helpers
// so pipeline code can tag log lines with the session ID, segment index and
// stream. NewNop provides a discarding logger for tests and wiring code.
package logging
