package brain

import (
	"github.com/abelbrown/viralengine/internal/config"
	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/metrics"
)

// FromConfig builds a manager holding every enabled provider, each behind
// a circuit breaker.
func FromConfig(cfg config.GeneratorConfig, m *metrics.Metrics) *ProviderManager {
	pm := NewProviderManager()
	settings := func(ms config.ModelSettings) Settings {
		return Settings{
			APIKey:    ms.APIKey,
			Model:     ms.Model,
			Endpoint:  ms.Endpoint,
			Timeout:   cfg.Timeout,
			MaxTokens: cfg.MaxTokens,
		}
	}

	if cfg.Claude.Enabled {
		pm.AddProvider(Guard(NewHTTPProvider(ClaudeConfig(settings(cfg.Claude))), m))
	}
	if cfg.OpenAI.Enabled {
		pm.AddProvider(Guard(NewHTTPProvider(OpenAIConfig(settings(cfg.OpenAI))), m))
	}
	if cfg.Gemini.Enabled {
		pm.AddProvider(Guard(NewGeminiProvider(settings(cfg.Gemini)), m))
	}
	pm.SetPreferred(cfg.Preferred)

	logging.Debug("providers configured", "available", pm.ListAvailable(), "preferred", cfg.Preferred)
	return pm
}
