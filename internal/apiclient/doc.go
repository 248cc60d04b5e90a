// Package apiclient is the Go client for the ladle daemon's HTTP API.
// The CLI is its only in-tree consumer, but the surface is kept small
// and typed so other programs can embed it.
//
// A Client carries the caller identity (user or anonymous id) and sends
// it on every request; the daemon scopes reads and guards deletes by it.
package apiclient
