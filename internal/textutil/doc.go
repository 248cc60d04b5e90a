// Package textutil provides rune-safe text capping helpers. Provenance
// excerpts, log summaries, and spoken narration all bound their length in
// runes rather than bytes so multibyte characters are never split.
package textutil
