// Package fetch retrieves recipe source content from a URL and classifies
// it as a web page or a video.
//
// Pages are fetched with a browser user agent and reduced to the text a
// model can structure: embedded schema.org Recipe JSON wins when present,
// otherwise a ladder of container heuristics picks the densest content
// block before navigation and ad junk is pruned. Videos resolve through a
// best-effort ladder (transcript API, audio download for deferred
// transcription, watch-page description, placeholder) that degrades
// in-document instead of failing, so downstream stages can still respond.
package fetch
