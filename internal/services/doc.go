// Package services defines shared utilities consumed by the ingestion
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp recipe IDs, stage names, owners, and request
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent across fetch, structuring, synthesis, and
//     persistence.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform.
package services
