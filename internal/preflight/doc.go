// Package preflight provides the readiness checks ladled runs at startup:
// working directories must be accessible, and the external binaries the
// fetcher shells out to should resolve on PATH.
//
// Directory failures abort startup. Binary checks are advisory: yt-dlp is
// only needed for the video audio-download fallback, so a missing binary
// degrades that path instead of blocking the daemon.
package preflight
