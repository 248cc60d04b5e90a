// Package daemon hosts the long-running ladle process: a lock-file
// guarded lifecycle around the HTTP API server that exposes recipe
// ingestion, lookup, narration voices, and static audio serving.
//
// Exactly one daemon may run per data directory. The lock is taken with
// a non-blocking flock on Start and released on Stop, so a second
// instance fails fast instead of racing the first for the database.
package daemon
