package config

import (
	"os"
	"strings"
)

// normalize cleans raw values after decode: environment fallbacks for
// secrets, path expansion, whitespace trimming, and bounds on numeric
// settings. Validation still happens afterwards in Validate.
func (c *Config) normalize() error {
	c.applyEnvironmentFallbacks()

	if err := c.expandPaths(); err != nil {
		return err
	}

	c.normalizePaths()
	c.normalizeLLM()
	c.normalizeProviders()
	c.normalizeTTS()
	c.normalizeFetch()
	c.normalizeNotifications()
	c.normalizeLogging()

	return nil
}

// applyEnvironmentFallbacks fills secrets from the environment when the
// config file leaves them blank. Environment values never override explicit
// file values.
func (c *Config) applyEnvironmentFallbacks() {
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = strings.TrimSpace(os.Getenv("TTS_API_KEY"))
	}
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = strings.TrimSpace(os.Getenv("LADLE_API_TOKEN"))
	}
	if c.Fetch.TranscriptAPIKey == "" {
		c.Fetch.TranscriptAPIKey = strings.TrimSpace(os.Getenv("TRANSCRIPT_API_KEY"))
	}
}

func (c *Config) expandPaths() error {
	for _, field := range []*string{
		&c.Paths.DataDir,
		&c.Paths.StaticDir,
		&c.Paths.LogDir,
	} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

func (c *Config) normalizePaths() {
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	origins := make([]string, 0, len(c.Paths.CORSOrigins))
	for _, origin := range c.Paths.CORSOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	c.Paths.CORSOrigins = origins
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
}

func (c *Config) normalizeProviders() {
	c.Ollama.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ollama.BaseURL), "/")
	c.Ollama.Model = strings.TrimSpace(c.Ollama.Model)
	if c.Ollama.TimeoutSeconds <= 0 {
		c.Ollama.TimeoutSeconds = DefaultOllamaTimeout
	}

	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	c.OpenAI.Model = strings.TrimSpace(c.OpenAI.Model)
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = DefaultOpenAITimeout
	}

	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = DefaultGeminiTimeout
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.BaseURL = strings.TrimRight(strings.TrimSpace(c.TTS.BaseURL), "/")
	c.TTS.Model = strings.TrimSpace(c.TTS.Model)
	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = DefaultTTSTimeout
	}
	if c.TTS.RequestsPerSecond <= 0 {
		c.TTS.RequestsPerSecond = DefaultTTSRequestsPerSecond
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultFetchUserAgent
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = DefaultFetchTimeout
	}
	c.Fetch.TranscriptAPIURL = strings.TrimRight(strings.TrimSpace(c.Fetch.TranscriptAPIURL), "/")
	c.Fetch.TranscriptAPIKey = strings.TrimSpace(c.Fetch.TranscriptAPIKey)
	c.Fetch.YtDlpBinary = strings.TrimSpace(c.Fetch.YtDlpBinary)
	if c.Fetch.YtDlpBinary == "" {
		c.Fetch.YtDlpBinary = DefaultYtDlpBinary
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = DefaultNotificationTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}
