package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ladle/internal/config"
)

const geminiContentBudget = 100000

// transcribePrompt is the fixed instruction used for audio transcription.
const transcribePrompt = "Transcribe this audio. Focus on extracting recipe instructions, ingredients, and cooking steps. Write everything spoken clearly."

// Gemini talks to the generateContent API. It is the only backend that also
// implements Transcriber, via the file upload API.
type Gemini struct {
	cfg        config.Gemini
	httpClient *http.Client
	retry      *retrier
}

// NewGemini constructs the Gemini backend.
func NewGemini(cfg config.Gemini, opts ...Option) *Gemini {
	timeout := 180 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	options, retry := applyOptions(timeout, opts)
	return &Gemini{
		cfg:        cfg,
		httpClient: options.httpClient,
		retry:      retry,
	}
}

// Name implements Generator.
func (c *Gemini) Name() string { return "gemini" }

// ContentBudget implements Generator.
func (c *Gemini) ContentBudget() int { return geminiContentBudget }

type geminiPart struct {
	Text     string          `json:"text,omitempty"`
	FileData *geminiFileData `json:"file_data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type geminiFile struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

type geminiUploadResponse struct {
	File geminiFile `json:"file"`
}

// permissiveSafetySettings disables blocking for recipe content, which can
// trip dangerous-content filters (knives, raw meat, alcohol).
func permissiveSafetySettings() []geminiSafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]geminiSafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, geminiSafetySetting{Category: category, Threshold: "BLOCK_NONE"})
	}
	return settings
}

// Generate implements Generator. The generateContent API has no separate
// system role in this form, so the system prompt is prepended.
func (c *Gemini) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("gemini generate: prompt required")
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("gemini generate: api key required")
	}

	fullPrompt := prompt
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		fullPrompt = systemPrompt + "\n\n" + prompt
	}

	payload := geminiGenerateRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: fullPrompt}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: 0.3, MaxOutputTokens: 4096},
		SafetySettings:   permissiveSafetySettings(),
	}

	return c.retry.do(ctx, "gemini generate", func() (string, error) {
		return c.generateOnce(ctx, payload)
	})
}

// Transcribe implements Transcriber: upload the audio file, wait for server
// processing, then ask for a transcription referencing the uploaded file.
func (c *Gemini) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("gemini transcribe: api key required")
	}

	file, err := c.uploadFile(ctx, audioPath)
	if err != nil {
		return "", err
	}

	file, err = c.awaitFileActive(ctx, file)
	if err != nil {
		return "", err
	}

	payload := geminiGenerateRequest{
		Contents: []geminiContent{{Parts: []geminiPart{
			{Text: transcribePrompt},
			{FileData: &geminiFileData{MimeType: audioMimeType(audioPath), FileURI: file.URI}},
		}}},
		GenerationConfig: geminiGenerationConfig{Temperature: 0.2, MaxOutputTokens: 8192},
		SafetySettings:   permissiveSafetySettings(),
	}

	return c.retry.do(ctx, "gemini transcribe", func() (string, error) {
		return c.generateOnce(ctx, payload)
	})
}

func (c *Gemini) generateOnce(ctx context.Context, payload geminiGenerateRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini generate: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("gemini generate: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini generate: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini generate: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{
			Op:         "gemini generate",
			StatusCode: resp.StatusCode,
			Body:       summarizeSnippet(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded geminiGenerateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("gemini generate: decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("gemini generate: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}

	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", nil
}

func (c *Gemini) uploadFile(ctx context.Context, audioPath string) (geminiFile, error) {
	var empty geminiFile

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return empty, fmt.Errorf("gemini transcribe: read audio: %w", err)
	}

	endpoint := fmt.Sprintf("%s/upload/v1beta/files?key=%s&uploadType=media", c.cfg.BaseURL, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return empty, fmt.Errorf("gemini transcribe: new upload request: %w", err)
	}
	req.Header.Set("Content-Type", audioMimeType(audioPath))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("gemini transcribe: upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("gemini transcribe: read upload response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, &httpStatusError{
			Op:         "gemini transcribe upload",
			StatusCode: resp.StatusCode,
			Body:       summarizeSnippet(string(body)),
		}
	}

	var decoded geminiUploadResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("gemini transcribe: decode upload response: %w", err)
	}
	if decoded.File.Name == "" && decoded.File.URI == "" {
		return empty, fmt.Errorf("gemini transcribe: upload returned no file")
	}
	return decoded.File, nil
}

// awaitFileActive polls until the uploaded file leaves PROCESSING. Polling
// is capped so a stuck file cannot hang a request beyond its context.
func (c *Gemini) awaitFileActive(ctx context.Context, file geminiFile) (geminiFile, error) {
	const (
		pollInterval = 2 * time.Second
		maxPolls     = 60
	)

	for poll := 0; file.State == "PROCESSING" && poll < maxPolls; poll++ {
		if err := c.retry.sleep(ctx, pollInterval); err != nil {
			return file, err
		}
		refreshed, err := c.getFile(ctx, file.Name)
		if err != nil {
			return file, err
		}
		file = refreshed
	}

	switch file.State {
	case "FAILED":
		return file, fmt.Errorf("gemini transcribe: audio processing failed")
	case "PROCESSING":
		return file, fmt.Errorf("gemini transcribe: audio processing timed out")
	}
	return file, nil
}

func (c *Gemini) getFile(ctx context.Context, name string) (geminiFile, error) {
	var empty geminiFile

	endpoint := fmt.Sprintf("%s/v1beta/%s?key=%s", c.cfg.BaseURL, name, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, fmt.Errorf("gemini transcribe: new file request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("gemini transcribe: get file: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("gemini transcribe: read file response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, &httpStatusError{
			Op:         "gemini transcribe poll",
			StatusCode: resp.StatusCode,
			Body:       summarizeSnippet(string(body)),
		}
	}

	var decoded geminiFile
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("gemini transcribe: decode file response: %w", err)
	}
	return decoded, nil
}

func audioMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
