package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ladle/internal/api"
	"ladle/internal/recipes"
)

const userAgent = "Ladle/0.1.0"

// APIError carries the HTTP status and server-reported message of a
// failed request.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to a ladle daemon over HTTP.
type Client struct {
	baseURL     string
	token       string
	userID      string
	anonymousID string
	httpClient  *http.Client
}

// Option adjusts a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithIdentity sets the caller identity. A user id takes precedence over
// an anonymous id on the server.
func WithIdentity(userID, anonymousID string) Option {
	return func(c *Client) {
		c.userID = userID
		c.anonymousID = anonymousID
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the per-request timeout. Process can block for the
// full fetch-structure-synthesize run, so callers raise it above the
// default 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New builds a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process submits a URL for ingestion and blocks until the recipe is
// ready or the pipeline fails.
func (c *Client) Process(ctx context.Context, rawURL string) (*recipes.Recipe, error) {
	req := api.ProcessRequest{
		URL:             rawURL,
		UserID:          c.userID,
		AnonymousUserID: c.anonymousID,
	}
	var recipe recipes.Recipe
	if err := c.do(ctx, http.MethodPost, "/api/recipes/process", nil, req, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// List returns a page of the caller's recipes, newest first.
func (c *Client) List(ctx context.Context, skip, limit int) (*api.RecipeListResponse, error) {
	query := c.identityQuery()
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var list api.RecipeListResponse
	if err := c.do(ctx, http.MethodGet, "/api/recipes", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Search returns the caller's recipes matching q.
func (c *Client) Search(ctx context.Context, q string, skip, limit int) (*api.RecipeListResponse, error) {
	query := c.identityQuery()
	query.Set("q", q)
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var list api.RecipeListResponse
	if err := c.do(ctx, http.MethodGet, "/api/recipes/search", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Get fetches one recipe by id.
func (c *Client) Get(ctx context.Context, id string) (*recipes.Recipe, error) {
	var recipe recipes.Recipe
	if err := c.do(ctx, http.MethodGet, "/api/recipes/"+url.PathEscape(id), nil, nil, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Delete removes one of the caller's recipes.
func (c *Client) Delete(ctx context.Context, id string) (*api.MessageResponse, error) {
	var msg api.MessageResponse
	if err := c.do(ctx, http.MethodDelete, "/api/recipes/"+url.PathEscape(id), c.identityQuery(), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Save copies an existing recipe into the caller's collection.
func (c *Client) Save(ctx context.Context, recipeID string) (*recipes.Recipe, error) {
	req := api.SaveRequest{
		RecipeID:        recipeID,
		UserID:          c.userID,
		AnonymousUserID: c.anonymousID,
	}
	var recipe recipes.Recipe
	if err := c.do(ctx, http.MethodPost, "/api/recipes/save", nil, req, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Migrate reassigns recipes from an anonymous id to the client's user.
func (c *Client) Migrate(ctx context.Context, anonymousID string) (*api.MigrateResponse, error) {
	query := url.Values{}
	query.Set("anonymous_user_id", anonymousID)
	if c.userID != "" {
		query.Set("user_id", c.userID)
	}
	var resp api.MigrateResponse
	if err := c.do(ctx, http.MethodPost, "/api/recipes/migrate", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Voices lists the narration voice catalogue with sample clips.
func (c *Client) Voices(ctx context.Context) (*api.VoiceListResponse, error) {
	var resp api.VoiceListResponse
	if err := c.do(ctx, http.MethodGet, "/api/voices", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserVoice reports the voice a user's recipes are narrated with.
func (c *Client) UserVoice(ctx context.Context, userID string) (*api.UserVoiceResponse, error) {
	var resp api.UserVoiceResponse
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/voice", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetUserVoice selects the narration voice for a user.
func (c *Client) SetUserVoice(ctx context.Context, userID, voiceID string) (*api.UserVoiceResponse, error) {
	req := api.UserVoiceUpdateRequest{VoiceID: voiceID}
	var resp api.UserVoiceResponse
	if err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(userID)+"/voice", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports the daemon's health. The endpoint answers 200 even when
// degraded; the Status field carries the verdict.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) identityQuery() url.Values {
	query := url.Values{}
	if c.userID != "" {
		query.Set("user_id", c.userID)
	}
	if c.anonymousID != "" {
		query.Set("anonymous_user_id", c.anonymousID)
	}
	return query
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var body api.ErrorResponse
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("server returned status %d", resp.StatusCode)
	}
	return apiErr
}
