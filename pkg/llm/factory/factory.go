package factory

import (
	"fmt"

	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/llm/anthropic"
	"github.com/BearPays/code-review-assistant-back/pkg/llm/ollama"
	"github.com/BearPays/code-review-assistant-back/pkg/llm/openai"

	"github.com/openai/openai-go/option"
)

type Config struct {
	Provider string // "openai", "anthropic", "ollama", "openai_compatible"
	Model    string
	APIKey   string
	BaseURL  string // ollama host or an OpenAI compatible router
}

// NewLLMProvider builds a tool-calling capable provider for the configured backend.
func NewLLMProvider(cfg Config) (llm.ToolCaller, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an api key")
		}
		return openai.NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	case "openai_compatible":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai_compatible provider requires a base url")
		}
		return openai.NewOpenAIProvider(cfg.APIKey, cfg.Model, option.WithBaseURL(cfg.BaseURL)), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		return anthropic.NewAnthropicProvider(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
