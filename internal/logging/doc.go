// Package logging assembles structured slog loggers and formatting helpers used
// across imgvault.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so optimizer and batch code can tag log
// lines with asset IDs, operations, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
