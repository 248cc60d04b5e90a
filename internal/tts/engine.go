package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"ladle/internal/config"
)

// speechRequest is the OpenAI-compatible POST /audio/speech payload.
type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// speechClient renders text through an OpenAI-compatible speech endpoint.
// Self-hosted bridges expose the same surface for the neural voice set, so
// one client covers both the hosted and local cases.
type speechClient struct {
	baseURL      string
	apiKey       string
	model        string
	httpClient   *http.Client
	limiter      *rate.Limiter
	retryInitial time.Duration
}

func newSpeechClient(cfg config.TTS, httpClient *http.Client) *speechClient {
	if httpClient == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &speechClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(limit, 1),
		retryInitial: time.Second,
	}
}

// speak synthesizes text in the given voice and returns the clip bytes.
// Requests are paced by the client limiter so a burst of concurrent clips
// does not hammer the endpoint; 429 and server errors are retried.
func (c *speechClient) speak(ctx context.Context, text, voiceID string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Model:          c.model,
		Input:          text,
		Voice:          voiceID,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}

	var clip []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build speech request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("speech request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("speech endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
			if retryableSpeechStatus(resp.StatusCode) {
				return err
			}
			return backoff.Permanent(err)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read speech response: %w", err)
		}
		if len(data) == 0 {
			return fmt.Errorf("speech endpoint returned an empty clip")
		}
		clip = data
		return nil
	}
	if err := backoff.Retry(operation, c.retryPolicy(ctx)); err != nil {
		return nil, err
	}
	return clip, nil
}

func (c *speechClient) retryPolicy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)
}

func retryableSpeechStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
