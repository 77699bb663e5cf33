package ai

import (
	"context"

	"github.com/suPer8Hu/devassist/internal/config"
)

// DefaultRegistry registers every provider this service knows about, bound
// to the endpoints and keys in cfg.
func DefaultRegistry(cfg config.Config) *Registry {
	reg := NewRegistry()

	reg.Register("echo", "", func(ctx context.Context, model string) (Provider, error) {
		return EchoProvider{}, nil
	})
	reg.Register("openai", "gpt-4o", func(ctx context.Context, model string) (Provider, error) {
		return NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model), nil
	})
	reg.Register("openrouter", cfg.OpenRouterModel, func(ctx context.Context, model string) (Provider, error) {
		return NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("ollama", cfg.OllamaModel, func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	reg.Register("gemini", defaultGeminiModel, func(ctx context.Context, model string) (Provider, error) {
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, model)
	})
	return reg
}
