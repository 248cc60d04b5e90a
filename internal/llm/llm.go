package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ladle/internal/config"
)

// Generator is the capability every text-generation backend provides.
type Generator interface {
	// Generate issues one completion call. systemPrompt may be empty.
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
	// Name identifies the backend ("ollama", "openai", "gemini").
	Name() string
	// ContentBudget is the input character ceiling for this backend.
	ContentBudget() int
}

// Transcriber converts a local audio file into text. Only backends with
// audio understanding implement it; callers probe with a type assertion.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// New selects and constructs the configured provider.
func New(cfg *config.Config, opts ...Option) (Generator, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		return NewOllama(cfg.Ollama, opts...), nil
	case "openai":
		return NewOpenAI(cfg.OpenAI, opts...), nil
	case "gemini":
		return NewGemini(cfg.Gemini, opts...), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// Option customizes a provider client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(o *clientOptions) {
		o.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(o *clientOptions) {
		o.retryBaseDelay = baseDelay
		o.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *clientOptions) {
		o.sleeper = sleeper
	}
}

func applyOptions(timeout time.Duration, opts []Option) (clientOptions, *retrier) {
	options := clientOptions{
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.httpClient == nil {
		options.httpClient = &http.Client{Timeout: timeout}
	}
	retry := &retrier{
		maxAttempts: options.retryMaxAttempts,
		baseDelay:   options.retryBaseDelay,
		maxDelay:    options.retryMaxDelay,
		sleeper:     options.sleeper,
	}
	return options, retry
}
