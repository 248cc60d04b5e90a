package config

import (
	"errors"
	"fmt"
)

// Validate checks that the configuration is complete enough to run the
// daemon. Provider credentials are only required for the selected provider;
// TTS credentials are optional because local speech servers commonly run
// without auth.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validatePaths,
		c.validateLLM,
		c.validateTTS,
		c.validateFetch,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.StaticDir == "" {
		return errors.New("paths.static_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case "ollama":
		if c.Ollama.BaseURL == "" {
			return errors.New("ollama.base_url must be set when llm.provider is \"ollama\"")
		}
		if c.Ollama.Model == "" {
			return errors.New("ollama.model must be set when llm.provider is \"ollama\"")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key (or OPENAI_API_KEY) is required when llm.provider is \"openai\"")
		}
		if c.OpenAI.Model == "" {
			return errors.New("openai.model must be set when llm.provider is \"openai\"")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return errors.New("gemini.api_key (or GEMINI_API_KEY) is required when llm.provider is \"gemini\"")
		}
		if c.Gemini.Model == "" {
			return errors.New("gemini.model must be set when llm.provider is \"gemini\"")
		}
	default:
		return fmt.Errorf("llm.provider must be one of \"ollama\", \"openai\", or \"gemini\" (got %q)", c.LLM.Provider)
	}
	return nil
}

func (c *Config) validateTTS() error {
	if c.TTS.BaseURL == "" {
		return errors.New("tts.base_url must be set")
	}
	if c.TTS.Model == "" {
		return errors.New("tts.model must be set")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return errors.New("fetch.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "pretty", "json":
	default:
		return fmt.Errorf("logging.format must be one of \"auto\", \"pretty\", or \"json\" (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of \"debug\", \"info\", \"warn\", or \"error\" (got %q)", c.Logging.Level)
	}
	return nil
}
