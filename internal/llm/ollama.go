package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ladle/internal/config"
)

// ollamaContentBudget matches the small context window configured on the
// local model (num_ctx 4096).
const ollamaContentBudget = 12000

// Ollama talks to a local Ollama server's generate API. Inference on CPU is
// slow, so the client tolerates a long per-request timeout.
type Ollama struct {
	cfg        config.Ollama
	httpClient *http.Client
	retry      *retrier
}

// NewOllama constructs the local-model backend.
func NewOllama(cfg config.Ollama, opts ...Option) *Ollama {
	timeout := 300 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	options, retry := applyOptions(timeout, opts)
	return &Ollama{
		cfg:        cfg,
		httpClient: options.httpClient,
		retry:      retry,
	}
}

// Name implements Generator.
func (c *Ollama) Name() string { return "ollama" }

// ContentBudget implements Generator.
func (c *Ollama) ContentBudget() int { return ollamaContentBudget }

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate implements Generator. The generate API has no separate system
// role, so the system prompt is prepended to the user prompt.
func (c *Ollama) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("ollama generate: prompt required")
	}

	fullPrompt := prompt
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		fullPrompt = systemPrompt + "\n\n" + prompt
	}

	payload := ollamaGenerateRequest{
		Model:  c.cfg.Model,
		Prompt: fullPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: 0.3,
			NumPredict:  2048,
			NumCtx:      4096,
		},
	}

	return c.retry.do(ctx, "ollama generate", func() (string, error) {
		return c.sendOnce(ctx, payload)
	})
}

func (c *Ollama) sendOnce(ctx context.Context, payload ollamaGenerateRequest) (string, error) {
	endpoint := c.cfg.BaseURL + "/api/generate"
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama generate: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("ollama generate: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: connect to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama generate: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{
			Op:         "ollama generate",
			StatusCode: resp.StatusCode,
			Body:       summarizeSnippet(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded ollamaGenerateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("ollama generate: decode response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("ollama generate: api error: %s", decoded.Error)
	}
	return decoded.Response, nil
}
