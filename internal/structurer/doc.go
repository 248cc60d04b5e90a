// Package structurer turns raw source text into a structured recipe via
// the configured generation backend.
//
// The model's JSON output is repaired before it is trusted: fence
// stripping, trailing-comma and quote balancing, bracket-deficit closing,
// and a largest-object-span retry. Structuring never hard-fails on model
// or parse problems; it degrades to a minimal recipe carrying an excerpt
// of the input so the user's content is not lost, signalled with
// services.ErrStructuringDegraded. Successful structuring triggers
// narration synthesis inline, so the returned recipe already carries its
// audio addresses.
package structurer
