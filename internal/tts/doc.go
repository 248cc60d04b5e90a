// Package tts synthesizes narration clips for structured recipes through an
// OpenAI-compatible speech endpoint.
//
// Narration never blocks a recipe: every clip (intro, outro, ingredients,
// each step) is synthesized in its own goroutine and a failed clip simply
// leaves its audio address empty. The voice catalogue is fixed and embedded;
// unknown voice preferences resolve to the default voice rather than erroring.
package tts
