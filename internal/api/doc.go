// Package api defines the JSON wire contract shared by the daemon's HTTP
// server, the Go client, and the CLI. Recipes themselves marshal through
// the recipes package; this package adds the request and envelope shapes
// around them.
package api
