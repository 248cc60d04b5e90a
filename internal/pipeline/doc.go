// Package pipeline runs the ingestion sequence (fetch, structure, narrate,
// persist) and the lifecycle operations built on the persisted rows.
//
// Processing is idempotent per owner and source URL: replays and insert
// races both resolve to the already-persisted row. Clip files are only
// removed through two guarded paths: the rollback after a failed insert
// (which deletes exactly the clips that insert attempt produced) and the
// post-deletion reference scan (which deletes a file only once no row
// references it).
package pipeline
