// Package logging assembles structured slog loggers and formatting helpers
// used across ladle.
//
// It owns the pretty/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code can automatically tag
// log lines with recipe IDs, stages, owners, and request IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
