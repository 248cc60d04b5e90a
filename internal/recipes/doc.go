// Package recipes provides the persisted recipe model and its SQLite store.
//
// Recipes are owned by exactly one of an authenticated user id or an
// anonymous device id (legacy rows may have neither). A given source URL is
// unique per owner, enforced with partial unique indexes so different owners
// can ingest the same URL independently. Synthesized audio clips are tracked
// in an explicit audio_refs join table: a clip file may be shared by several
// rows (recipe copies), and the join table makes the reference count exact
// instead of relying on substring scans over serialized steps.
package recipes
