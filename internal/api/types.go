package api

import (
	"ladle/internal/recipes"
	"ladle/internal/tts"
)

// ProcessRequest asks the daemon to ingest one URL. The optional identity
// fields are overridden by an X-User-ID header when present.
type ProcessRequest struct {
	URL             string `json:"url"`
	UserID          string `json:"user_id,omitempty"`
	AnonymousUserID string `json:"anonymous_user_id,omitempty"`
}

// SaveRequest copies an existing recipe into the caller's collection.
type SaveRequest struct {
	RecipeID        string `json:"recipe_id"`
	UserID          string `json:"user_id,omitempty"`
	AnonymousUserID string `json:"anonymous_user_id,omitempty"`
}

// RecipeListResponse is the envelope for list and search results.
type RecipeListResponse struct {
	Recipes []*recipes.Recipe `json:"recipes"`
	Total   int               `json:"total"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// MigrateResponse reports how many rows an ownership migration moved.
type MigrateResponse struct {
	Migrated int64 `json:"migrated"`
}

// VoiceListResponse is the voice catalogue envelope.
type VoiceListResponse struct {
	Voices []tts.Voice `json:"voices"`
}

// UserVoiceResponse reports one user's effective voice.
type UserVoiceResponse struct {
	UserID  string `json:"user_id"`
	VoiceID string `json:"voice_id"`
}

// UserVoiceUpdateRequest sets a user's voice preference.
type UserVoiceUpdateRequest struct {
	VoiceID string `json:"voice_id"`
}

// HealthResponse reports daemon component health.
type HealthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	LLMProvider string `json:"llm_provider"`
}

// ErrorResponse is the JSON error body every non-2xx response carries.
type ErrorResponse struct {
	Error string `json:"error"`
}
