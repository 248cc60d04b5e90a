// Package llm abstracts the text-generation backends used to structure
// recipe content.
//
// Three providers implement the Generator strategy: a local Ollama server,
// the OpenAI chat completions API, and the Gemini generateContent API. The
// provider is selected once at startup from configuration via New. Gemini
// additionally implements Transcriber, the optional capability of turning a
// downloaded audio file into text; callers discover it with a type
// assertion rather than runtime provider-name checks.
//
// Each provider declares its own content budget: the input character count
// the structurer may send before truncation. Local models get a small
// budget matched to their context window, hosted models a much larger one.
package llm
