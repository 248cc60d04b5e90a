package config

// Default configuration values.
const (
	DefaultDataDir   = "~/.local/share/ladle"
	DefaultStaticDir = "~/.local/share/ladle/static"
	DefaultLogDir    = "~/.local/share/ladle/logs"
	DefaultAPIBind   = "127.0.0.1:7920"

	DefaultLLMProvider = "ollama"

	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2:3b"
	DefaultOllamaTimeout = 300

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAITimeout = 120

	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultGeminiTimeout = 180

	DefaultTTSBaseURL           = "http://localhost:5050/v1"
	DefaultTTSModel             = "tts-1"
	DefaultTTSTimeout           = 60
	DefaultTTSRequestsPerSecond = 2.0

	DefaultFetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultFetchTimeout   = 30
	DefaultYtDlpBinary    = "yt-dlp"

	DefaultNotificationTimeout = 10

	DefaultLogFormat = "auto"
	DefaultLogLevel  = "info"
)

// Default returns a Config populated with defaults. Callers typically layer
// file values and environment fallbacks on top via Load.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     DefaultDataDir,
			StaticDir:   DefaultStaticDir,
			LogDir:      DefaultLogDir,
			APIBind:     DefaultAPIBind,
			CORSOrigins: []string{"*"},
		},
		LLM: LLM{
			Provider: DefaultLLMProvider,
		},
		Ollama: Ollama{
			BaseURL:        DefaultOllamaBaseURL,
			Model:          DefaultOllamaModel,
			TimeoutSeconds: DefaultOllamaTimeout,
		},
		OpenAI: OpenAI{
			BaseURL:        DefaultOpenAIBaseURL,
			Model:          DefaultOpenAIModel,
			TimeoutSeconds: DefaultOpenAITimeout,
		},
		Gemini: Gemini{
			BaseURL:        DefaultGeminiBaseURL,
			Model:          DefaultGeminiModel,
			TimeoutSeconds: DefaultGeminiTimeout,
		},
		TTS: TTS{
			BaseURL:           DefaultTTSBaseURL,
			Model:             DefaultTTSModel,
			TimeoutSeconds:    DefaultTTSTimeout,
			RequestsPerSecond: DefaultTTSRequestsPerSecond,
		},
		Fetch: Fetch{
			UserAgent:      DefaultFetchUserAgent,
			TimeoutSeconds: DefaultFetchTimeout,
			YtDlpBinary:    DefaultYtDlpBinary,
		},
		Notifications: Notifications{
			RequestTimeout: DefaultNotificationTimeout,
			IngestComplete: true,
			IngestFailed:   true,
		},
		Logging: Logging{
			Format: DefaultLogFormat,
			Level:  DefaultLogLevel,
		},
	}
}
